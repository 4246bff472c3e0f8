package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rehostd/rehostd/internal/config"
	"github.com/rehostd/rehostd/internal/platform/postgres"
	"github.com/rehostd/rehostd/internal/store"
)

const serverShutdownTimeout = 10 * time.Second

// application holds the server's wired dependencies.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	db        *sql.DB
	taskStore store.TaskStore
}

func newApplication(cfg *config.Config, db *sql.DB, log *slog.Logger) *application {
	return &application{
		config:    cfg,
		logger:    log,
		db:        db,
		taskStore: postgres.NewTaskStore(db),
	}
}

// serve runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (app *application) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("server shutdown completed")
	return nil
}
