package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/migrations"
)

func main() {
	down := flag.Bool("down", false, "Roll back the most recent migration instead of applying pending ones")
	version := flag.Bool("version", false, "Print the current schema version and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	source, err := iofs.New(migrations.Postgres, "postgres")
	if err != nil {
		logger.Fatalw("Failed to open embedded migrations", "error", err)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)
	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.Postgres.GetURL())
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Errorw("Failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			logger.Fatalw("Failed to read schema version", "error", err)
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return
	case *down:
		logger.Info("Rolling back the last migration...")
		err = m.Steps(-1)
	default:
		logger.Info("Running database migrations...")
		err = m.Up()
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatalw("Migration failed", "error", err)
	}

	logger.Info("Migration completed successfully")
}
