package cmd

import (
	"github.com/spf13/cobra"

	"github.com/textlens/textlens/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			if err := db.Migrate(cfg.PostgresURL()); err != nil {
				return err
			}
			logger.Info("migrations applied", "database", cfg.PostgresDBName)
			return nil
		},
	}
}
