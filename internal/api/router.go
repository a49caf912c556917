package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Priya8975/feature-materializer/internal/online"
	"github.com/Priya8975/feature-materializer/internal/registry"
	"github.com/Priya8975/feature-materializer/internal/store"
)

// NewRouter creates and configures the HTTP router for the online lookup
// service. The offline store is optional; without it the snapshot inspection
// endpoints return 503.
func NewRouter(reg *registry.Registry, lookup *online.Lookup, pgStore *store.PostgresStore) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	featureHandler := NewFeatureHandler(reg, lookup)
	snapshotHandler := NewSnapshotHandler(pgStore)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/features", func(r chi.Router) {
			r.Get("/", featureHandler.ListSpecs)
			r.Get("/{entity}", featureHandler.Lookup)
		})

		r.Get("/snapshots/{entity}", snapshotHandler.EntitySnapshots)
	})

	return r
}
