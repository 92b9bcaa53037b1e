package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from storage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Search.Enabled {
			return fmt.Errorf("search.enabled is false")
		}

		a := newApp(cfg)
		defer a.Close()

		svc, _, err := a.directory(cmd.Context())
		if err != nil {
			return err
		}
		n, err := svc.Reindex(cmd.Context(), a.index)
		if err != nil {
			return err
		}
		a.logger.Info("reindex complete", map[string]interface{}{"indexed": n})
		return nil
	},
}
