package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dosada05/tennis-tournament/config"
	"github.com/Dosada05/tennis-tournament/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Applies the embedded schema. Only the postgres and sqlite store drivers keep a schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.DriverPostgres && cfg.StoreDriver != config.DriverSQLite {
				return fmt.Errorf("store driver %q has no schema to migrate", cfg.StoreDriver)
			}

			conn, err := db.Connect(cfg.StoreDriver, cfg.DatabaseURL, 5*time.Second)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.Migrate(cmd.Context(), conn, cfg.StoreDriver); err != nil {
				return err
			}
			logger.Info("schema applied", slog.String("driver", cfg.StoreDriver))
			return nil
		},
	}
}
