package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/freightcrm/lead-assignment-engine/internal/api/handler"
	apimw "github.com/freightcrm/lead-assignment-engine/internal/api/middleware"
	"github.com/freightcrm/lead-assignment-engine/internal/engine"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	eng *engine.Engine,
	queue repository.QueueStore,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)            // recover panics, return 500
	r.Use(chimw.RealIP)               // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)        // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	ah := handler.NewAssignmentHandler(eng, logger)
	qh := handler.NewQueueHandler(queue, logger)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/assignments/process", ah.Process)

		r.Get("/queue", qh.List)
		r.Get("/queue/{id}", qh.GetByID)
		r.Post("/queue/{id}/retry", qh.Retry)

		// JSON queue snapshot
		r.Get("/metrics", qh.Snapshot)
	})

	return r
}
