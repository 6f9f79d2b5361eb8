package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"veriscan/internal/bootstrap/logging"
)

var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or migrate the scan database schema",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()
		if err := deps.App.InitSchema(ctx); err != nil {
			return err
		}
		logging.Info(ctx, "database initialized", slog.String("dsn", deps.App.Config.Database.DSN))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
