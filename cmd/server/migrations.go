package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// migrationsDir is resolved relative to the process working directory.
const migrationsDir = "migrations"

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct{}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

// Fatalf deliberately does not exit; the error is returned to main, which
// owns process exit.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
}

func configureGoose() error {
	goose.SetLogger(&slogGooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// migrateUp applies all pending migrations.
func migrateUp(db *sql.DB, log *slog.Logger) error {
	if err := configureGoose(); err != nil {
		return err
	}
	log.Info("applying pending migrations", "dir", migrationsDir)
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// runMigrationCommand executes one explicit migration command and returns.
// Used by the -migrate flag for operational tasks.
func runMigrationCommand(db *sql.DB, command string, log *slog.Logger) error {
	if err := configureGoose(); err != nil {
		return err
	}
	log.Info("running migration command", "command", command, "dir", migrationsDir)

	switch command {
	case "up":
		return goose.Up(db, migrationsDir)
	case "down":
		return goose.Down(db, migrationsDir)
	case "status":
		return goose.Status(db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q (want up, down or status)", command)
	}
}
