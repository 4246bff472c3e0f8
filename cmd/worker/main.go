// Package main implements the rehostd worker: it claims queued tasks from
// Postgres, fetches the remote media, uploads it to object storage and
// records the terminal state. Workers scale horizontally; the database's
// atomic claim is the only coordination between them.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/rehostd/rehostd/internal/config"
	"github.com/rehostd/rehostd/internal/media"
	"github.com/rehostd/rehostd/internal/metrics"
	"github.com/rehostd/rehostd/internal/notify"
	"github.com/rehostd/rehostd/internal/platform/logger"
	"github.com/rehostd/rehostd/internal/platform/postgres"
	"github.com/rehostd/rehostd/internal/storage"
	"github.com/rehostd/rehostd/internal/worker"
)

const dbPingTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rehostd-worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	db, err := openDatabase(cfg.Database, cfg.Worker.Count, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database connection", "error", closeErr)
		}
	}()

	taskStore := postgres.NewTaskStore(db)

	provider, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage provider: %w", err)
	}
	log.Info("storage provider ready", "provider", cfg.Storage.Provider)

	fetcher, err := media.NewHTTPFetcher(media.HTTPFetcherConfig{
		DownloadDir: cfg.Worker.DownloadDir,
		MaxFileSize: cfg.Fetch.MaxFileSize,
		UserAgent:   cfg.Fetch.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	notifier := notify.NewWebhookNotifier(notify.Config{
		Timeout:     cfg.Webhook.Timeout,
		MaxAttempts: cfg.Webhook.MaxAttempts,
	})

	executor := worker.NewExecutor(fetcher, provider, cfg.Worker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Worker.Count; i++ {
		loop := worker.NewLoop(fmt.Sprintf("worker-%d", i), taskStore, executor, notifier, cfg.Worker, log)
		g.Go(func() error { return loop.Run(ctx) })
	}

	reaper := worker.NewReaper(taskStore, cfg.Worker, log)
	g.Go(func() error { return reaper.Run(ctx) })

	g.Go(func() error { return serveOps(ctx, cfg.Server.Port, db, log) })

	log.Info("worker started", "loops", cfg.Worker.Count)
	return g.Wait()
}

// openDatabase establishes the connection pool sized for the loop count and
// verifies connectivity.
func openDatabase(cfg config.DatabaseConfig, loops int, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Each loop holds at most one connection during a claim; a couple extra
	// cover the reaper and health checks.
	db.SetMaxOpenConns(loops + 2)
	db.SetMaxIdleConns(loops)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connection established", "url", maskDatabaseURL(cfg.URL))
	return db, nil
}

// serveOps exposes the worker's metrics and health endpoints.
func serveOps(ctx context.Context, port int, db *sql.DB, log *slog.Logger) error {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		pingCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("ops endpoint listening", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ops endpoint failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// maskDatabaseURL masks the password in a database URL for safe logging.
func maskDatabaseURL(dbURL string) string {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	if parsed.User != nil {
		parsed.User = url.UserPassword(parsed.User.Username(), "****")
		return parsed.String()
	}
	return dbURL
}
