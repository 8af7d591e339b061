package seed

import (
	"embed"
	"strings"

	"github.com/legit-games/dataset-iam/migrate"
	"github.com/pressly/goose/v3"
)

// seedFS holds embedded SQL seed files in seed/sql.
//
//go:embed sql/*.sql
var seedFS embed.FS

// Run applies seed data; versions are tracked apart from schema migrations.
func Run(opts migrate.Options) error {
	if !hasValidSeedFiles(opts.Logger) {
		return nil
	}
	return migrate.RunFS(seedFS, "seed_migrations", opts)
}

// hasValidSeedFiles checks for goose files named like 0001_name.sql.
func hasValidSeedFiles(logger goose.Logger) bool {
	entries, err := seedFS.ReadDir("sql")
	if err != nil {
		if logger != nil {
			logger.Printf("no seed SQL directory found, skipping seed")
		}
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		if idx := strings.Index(name, "_"); idx > 0 {
			return true
		}
	}
	if logger != nil {
		logger.Printf("no valid seed SQL files found (files must be named like 0001_name.sql), skipping seed")
	}
	return false
}
