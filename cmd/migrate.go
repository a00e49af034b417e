package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Run database migrations to set up or update the database schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// New migrates on open.
		db, err := database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint: errcheck

		log.Info("Database migrations completed successfully", "type", cfg.Database.Type)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
