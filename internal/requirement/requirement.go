// Package requirement ties the requirement module together: records, the
// relationship graph, per-requirement change logs, and their HTTP surface.
package requirement

import (
	"log/slog"

	"reqtrace/internal/requirement/graph"
	"reqtrace/internal/requirement/handler"
	"reqtrace/internal/requirement/service"
	"reqtrace/internal/requirement/store"
)

// Service exposes requirement orchestration.
type Service = service.Service

// Handler wires HTTP endpoints to the requirement service.
type Handler = handler.Handler

// Graph maintains parent/child relationships.
type Graph = graph.Graph

// NewService constructs the requirement service over a store and graph.
func NewService(st store.Store, g *graph.Graph, opts ...service.Option) *Service {
	return service.New(st, g, opts...)
}

// NewHandler constructs an HTTP handler for requirement routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
