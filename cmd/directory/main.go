// Command directory runs the business directory API, its lead worker and
// maintenance tasks.
package main

import (
	"fmt"
	"os"

	"business-directory/internal/common/config"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "directory",
	Short:         "Business directory service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (defaults to ./configs/config.yaml)")
	rootCmd.AddCommand(serveCmd, leadWorkerCmd, reindexCmd, migrateCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
