package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blindfoldanimeshka/neuro-search-project-sub001/internal/service"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/health"
	"github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/middleware"
)

// RouterConfig carries the transport-level settings the router needs.
type RouterConfig struct {
	Environment    string
	AllowedOrigins []string
	EnablePprof    bool
	PprofCIDRs     []string
}

// NewRouter creates a chi router with all search index routes registered.
func NewRouter(
	catalog *service.Catalog,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Environment:    cfg.Environment,
	}))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Tracing("search-index"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("search_index"))

	// Operational endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	if cfg.EnablePprof {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	h := NewHandler(catalog, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", h.Search)
		// Suggestions change slowly; let clients cache them briefly.
		r.With(middleware.CacheControl(60)).Get("/search/suggest", h.Suggest)

		r.Route("/products", func(r chi.Router) {
			r.Get("/{source}/{id}", h.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)
				r.Post("/", h.AddProduct)
				r.Post("/batch", h.AddProducts)
				r.Patch("/{source}/{id}", h.UpdateProduct)
				r.Delete("/", h.RemoveProducts)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", h.Stats)
			r.Get("/health", h.Integrity)
			r.Get("/export", h.Export)
			r.Post("/clear", h.Clear)
			r.Post("/reindex", h.Reindex)

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)
				r.Post("/import", h.Import)
			})
		})
	})

	return r
}
