package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  `Display statistics about users and links.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint: errcheck

		stats, err := db.GetUserStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get database stats: %w", err)
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("Metric", "Value").
			Row("Total users", humanize.Comma(stats.TotalUsers)).
			Row("Admins", humanize.Comma(stats.AdminUsers)).
			Row("Banned users", humanize.Comma(stats.BannedUsers)).
			Row("Total links", humanize.Comma(stats.TotalLinks))
		fmt.Println(t)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
