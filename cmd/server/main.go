// Package main implements the rehostd API server: it accepts rehost task
// submissions, serves task status lookups and owns the database migrations.
// Task execution lives in the separate worker binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rehostd/rehostd/internal/config"
	"github.com/rehostd/rehostd/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, status) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		fmt.Fprintf(os.Stderr, "rehostd-server: %v\n", err)
		os.Exit(1)
	}
}

func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	db, err := openDatabase(cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database connection", "error", closeErr)
		}
	}()

	if migrateCmd != "" {
		return runMigrationCommand(db, migrateCmd, log)
	}

	// The server applies pending migrations on startup; workers expect the
	// schema to already be in place.
	if err := migrateUp(db, log); err != nil {
		return err
	}

	app := newApplication(cfg, db, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.serve(ctx)
}
