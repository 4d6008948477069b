package commands

import (
	"connectfill/internal/components/telemetry"
	"connectfill/internal/config"
	"connectfill/lib/serviceutil"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	dumpHttp   *string
)

var rootCmd = &cobra.Command{
	Use:   "connectfill",
	Short: "connectfill closes the gap on Linux.do Connect trust level requirements.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file, a .local sibling is merged on top.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug records.")
	dumpHttp = rootCmd.PersistentFlags().String("dump-http", "", "Write every HTTP exchange (credentials redacted) into this directory.")
}

func loadConfig() config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if *dumpHttp != "" {
		cfg.HTTP.DumpDir = *dumpHttp
	}
	return cfg
}

// setupTracing installs the otlp exporter when one is configured. The
// returned func flushes pending spans and must run before the process
// exits.
func setupTracing(ctx context.Context, cfg config.Config) func() {
	shutdown, err := telemetry.SetupOtel(ctx, "connectfill", cfg.Telemetry.Otlp)
	if err != nil {
		serviceutil.Fatal("failed to setup otel", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("failed to flush spans", "err", err)
		}
	}
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
