package main

import (
	"github.com/legit-games/dataset-iam/config"
	"github.com/legit-games/dataset-iam/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "datasec",
	Short:         "Dataset access-control service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func configureLogging(cfg *config.AppConfig) (*zap.Logger, error) {
	return logging.New(cfg.Env, cfg.Log.Level)
}
