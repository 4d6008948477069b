package commands

import (
	"connectfill/internal/app"
	"connectfill/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(quotaCmd)
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Prints the outstanding Connect requirements without acting on them.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := serviceutil.SignalContext(cmd.Context())
		flush := setupTracing(ctx, cfg)
		_, err := app.New(&cfg, app.Deps{}).Quota(ctx)
		flush()
		if err != nil {
			serviceutil.Fatal("failed to read requirements", err)
		}
	},
}
