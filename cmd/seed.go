/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tripdesk/apiserver/internal/seed"
	"github.com/tripdesk/apiserver/internal/server"
	"github.com/tripdesk/apiserver/internal/services"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
	seedUserEmail     string
	seedUserPassword  string
	seedCatalog       bool
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the bootstrap accounts and destination catalog",
	Long: `Creates the administrator, a regular test user and the default destination
catalog. Existing records are left untouched, so the command can be rerun.

	tripdesk seed --admin-password secret123
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedAdminPassword == "" {
			return errors.New("--admin-password is required")
		}
		cfg, logger := loadRuntime()
		ctx := cmd.Context()

		repos, err := server.OpenRepositories(ctx, cfg)
		if err != nil {
			return err
		}
		defer repos.Close()

		seeder := seed.New(
			services.NewUserService(repos.Users, repos.Travelers, repos.Tx, logger),
			repos.Users,
			services.NewDestinationService(repos.Destinations, repos.TripRequests, logger),
			logger,
		)

		accounts := []seed.Account{{Name: "Admin", Email: seedAdminEmail, Password: seedAdminPassword, IsAdmin: true}}
		if seedUserEmail != "" && seedUserPassword != "" {
			accounts = append(accounts, seed.Account{Name: "Test User", Email: seedUserEmail, Password: seedUserPassword})
		}
		catalog := seed.DefaultDestinations
		if !seedCatalog {
			catalog = nil
		}

		sum, err := seeder.Run(ctx, accounts, catalog)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d users and %d destinations\n", sum.Users, sum.Destinations)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@example.com", "administrator email")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "", "administrator password")
	seedCmd.Flags().StringVar(&seedUserEmail, "user-email", "user@example.com", "regular test user email")
	seedCmd.Flags().StringVar(&seedUserPassword, "user-password", "", "regular test user password; the user is skipped when empty")
	seedCmd.Flags().BoolVar(&seedCatalog, "destinations", true, "load the default destination catalog")
}
