package main

import (
	"errors"
	"flag"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"github.com/scau009/dwlite-sub002/internal/logger"
	"github.com/scau009/dwlite-sub002/migrations"
)

// databaseURL prefers the flag, then RULES_POSTGRES_URL, then DATABASE_URL.
func databaseURL(flagValue string) string {
	for _, v := range []string{flagValue, os.Getenv("RULES_POSTGRES_URL"), os.Getenv("DATABASE_URL")} {
		if v != "" {
			return v
		}
	}
	return ""
}

func main() {
	var dbURL string
	var command string

	flag.StringVar(&dbURL, "database", "", "Database URL (defaults to RULES_POSTGRES_URL or DATABASE_URL)")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, version, force")
	flag.Parse()

	dbURL = databaseURL(dbURL)
	if dbURL == "" {
		logger.Fatal("database URL is required, use -database or RULES_POSTGRES_URL")
	}

	logger.Info("connecting to database")

	// Migrations are embedded in the binary
	m, err := migrations.NewFromURL(dbURL)
	if err != nil {
		logger.Fatal("failed to create migration instance", "error", err)
	}
	defer m.Close()

	// Execute command
	switch command {
	case "up":
		logger.Info("running migrations up")
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to run, database is up to date")
			return
		}
		if err != nil {
			logger.Fatal("failed to run migrations", "error", err)
		}
		logger.Info("migrations completed")

	case "down":
		logger.Info("rolling back migrations")
		err = m.Down()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("failed to roll back migrations", "error", err)
		}
		logger.Info("rollback completed")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			logger.Fatal("failed to get version", "error", err)
		}
		logger.Info("current version", "version", version, "dirty", dirty)

	case "force":
		if flag.NArg() < 1 {
			logger.Fatal("force requires a version number: -command force <version>")
		}
		version, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			logger.Fatal("invalid version number", "error", err)
		}
		if err := m.Force(version); err != nil {
			logger.Fatal("failed to force version", "error", err)
		}
		logger.Info("forced version", "version", version)

	default:
		logger.Fatal("unknown command, use up, down, version or force", "command", command)
	}
}
