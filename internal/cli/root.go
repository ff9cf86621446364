// Package cli implements the creditd command tree.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "creditd",
	Short: "Storage credit pricing and ledger service",
	Long: `creditd prices uploads and payments in storage credits (winc), holds
credit balances, and settles upload reservations and crypto top-ups.

Configuration is read from ~/.credits/config.toml (or $CREDITS_HOME) and
CREDITS_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", daemon.DefaultConfigPath(), "Path to config.toml")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadEnv reads configuration and builds the logger for one command.
func loadEnv() (daemon.Config, *zap.Logger, error) {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return daemon.Config{}, nil, err
	}
	logger, err := daemon.NewLogger(cfg.Log)
	if err != nil {
		return daemon.Config{}, nil, err
	}
	return cfg, logger, nil
}

// withStack opens the component stack around fn.
func withStack(fn func(s *stack) error) error {
	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, err := openStack(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
