/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tripdesk/apiserver/config"
	"github.com/tripdesk/apiserver/internal/logging"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tripdesk",
	Short: "Trip request management API",
	Long: `tripdesk serves the trip request API and its maintenance tasks.

	tripdesk migrate up
	tripdesk seed
	tripdesk server
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			return os.Setenv(config.ConfigFileEnv, configFile)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides "+config.ConfigFileEnv+")")
}

// loadRuntime reads the configuration and builds the process logger.
func loadRuntime() (config.Config, *slog.Logger) {
	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger
}
