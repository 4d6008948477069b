package commands

import (
	"connectfill/internal/app"
	"connectfill/internal/config"
	"connectfill/lib/serviceutil"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
)

var browse *bool

func init() {
	browse = runCmd.Flags().Bool("browse", false, "Visit every topic in a browser before reporting reading time.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--browse]",
	Short: "Logs in, reads the Connect requirements and acts on topics until they are met.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if cmd.Flags().Changed("browse") {
			cfg.Browser.Enabled = *browse
		}

		err := cfg.Validate()
		if errors.Is(err, config.ErrMissingCredentials) {
			serviceutil.Fatal("set LINUXDO_USERNAME and LINUXDO_PASSWORD or fill credentials in the config", err)
		}
		if err != nil {
			serviceutil.Fatal("invalid config", err)
		}

		ctx := serviceutil.SignalContext(cmd.Context())
		flush := setupTracing(ctx, cfg)
		report, err := app.New(&cfg, app.Deps{}).Run(ctx)
		flush()
		if err != nil {
			serviceutil.Fatal("run failed", err)
		}
		slog.Info("run complete", "state", report.State, "remaining", report.Remaining.String())
	},
}
