package main

import (
	"fmt"

	"business-directory/internal/common/config"
	"business-directory/internal/storage/postgres"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Directory.Store != config.StorePostgres {
			return fmt.Errorf("migrate needs directory.store=%s, got %q", config.StorePostgres, cfg.Directory.Store)
		}

		a := newApp(cfg)
		defer a.Close()

		if err := a.openPostgres(cmd.Context()); err != nil {
			return err
		}
		if err := postgres.New(a.pg.DB).Migrate(cmd.Context()); err != nil {
			return err
		}
		a.logger.Info("schema applied", nil)
		return nil
	},
}
