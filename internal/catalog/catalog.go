// Package catalog manages the project, group and chapter registries that
// requirements are organized under.
package catalog

import (
	"log/slog"

	"reqtrace/internal/catalog/handler"
	"reqtrace/internal/catalog/service"
	"reqtrace/internal/catalog/store"
)

// Service exposes catalog orchestration.
type Service = service.Service

// Handler wires HTTP endpoints to the catalog service.
type Handler = handler.Handler

// NewService constructs the catalog service.
func NewService(st store.Store, purger service.RequirementPurger, opts ...service.Option) *Service {
	return service.New(st, purger, opts...)
}

// NewHandler constructs an HTTP handler for catalog routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
