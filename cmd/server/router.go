package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rehostd/rehostd/internal/api"
	apiMiddleware "github.com/rehostd/rehostd/internal/api/middleware"
	"github.com/rehostd/rehostd/internal/metrics"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.taskStore, app.logger)
	healthHandler := api.NewHealthHandler(app.db)

	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", taskHandler.CreateTask)
		r.Get("/tasks/{id}", taskHandler.GetTask)
	})

	r.Get("/healthz", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
