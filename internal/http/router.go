// Package httpapi assembles the public router from the module handlers.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reqtrace/internal/platform/middleware"
	"reqtrace/pkg/platform/httputil"
)

const requestTimeout = 30 * time.Second

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of a backing resource.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Logger *slog.Logger

	Requirements Registrar
	Catalog      Registrar
	Stats        Registrar
	Transfer     Registrar

	// Optional backends surfaced through /healthz. A nil entry is skipped.
	Checks map[string]HealthChecker
}

// New builds the service router: the API under /api, prometheus metrics
// under /metrics and a readiness probe under /healthz.
func New(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Actor)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/api", func(api chi.Router) {
		for _, reg := range []Registrar{deps.Requirements, deps.Catalog, deps.Stats, deps.Transfer} {
			if reg != nil {
				reg.Register(api)
			}
		}
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthHandler(deps.Checks))

	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := map[string]string{}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(r.Context()); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status":  http.StatusText(status),
			"details": report,
		})
	}
}
