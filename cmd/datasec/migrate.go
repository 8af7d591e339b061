package main

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/legit-games/dataset-iam/config"
	"github.com/legit-games/dataset-iam/logging"
	"github.com/legit-games/dataset-iam/migrate"
	"github.com/legit-games/dataset-iam/seed"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status|version|redo|reset|up-to N|down-to N]",
	Short: "Apply or inspect schema migrations",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := migrationOptions(args)
		if err != nil {
			return err
		}
		return migrate.Run(opts)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [up|down|status|version|redo|reset|up-to N|down-to N]",
	Short: "Load seed data (system roles)",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := migrationOptions(args)
		if err != nil {
			return err
		}
		return seed.Run(opts)
	},
}

// migrationOptions builds goose options from config, falling back to the
// MIGRATE_* environment variables when no database is configured.
func migrationOptions(args []string) (migrate.Options, error) {
	cfg := config.GetConfig()
	logger, err := configureLogging(cfg)
	if err != nil {
		return migrate.Options{}, err
	}
	opts := migrate.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN, Command: "up"}
	if opts.DSN == "" {
		opts = migrate.OptionsFromEnv()
	}
	opts.Logger = logging.NewGooseLogger(logger)
	if len(args) > 0 {
		opts.Command = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return opts, errors.Wrapf(err, "target version %q", args[1])
		}
		opts.Target = n
	}
	if opts.DSN == "" {
		return opts, errors.New("database.dsn is not set (DATASEC_DATABASE__DSN or MIGRATE_DSN)")
	}
	return opts, nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
