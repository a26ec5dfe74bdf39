/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tripdesk/apiserver/internal/db"
)

var (
	migrationsURL string
	downSteps     int
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		if err := db.MigrateUp(migrationsURL, db.PostgresURL(cfg.Database)); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		logger.Info("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		if err := db.MigrateDown(migrationsURL, db.PostgresURL(cfg.Database), downSteps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		logger.Info("migrations rolled back", "steps", downSteps)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)

	migrateCmd.PersistentFlags().StringVar(&migrationsURL, "source", db.DefaultMigrationsURL, "migrations source URL")
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back (0 rolls back all)")
}
