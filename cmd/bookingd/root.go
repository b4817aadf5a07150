package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trainer-booking-backend/config"
	"trainer-booking-backend/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bookingd",
	Short: "Trainer availability and booking service.",
	Long: `bookingd computes bookable slots from trainer availability and admits
bookings without double-booking, over a JSON HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultPath, "config file path (env CONFIG_PATH)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
}

// loadConfig reads the config named by --config and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", cfgFile, err)
	}
	log := logging.New(cfg.Logging)
	log.Info("configuration loaded", zap.String("path", cfgFile))
	return cfg, log, nil
}
