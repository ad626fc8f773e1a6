package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"reqtrace/internal/catalog"
	catalogservice "reqtrace/internal/catalog/service"
	catalogstore "reqtrace/internal/catalog/store"
	"reqtrace/internal/events"
	httpapi "reqtrace/internal/http"
	"reqtrace/internal/platform/config"
	"reqtrace/internal/platform/httpserver"
	"reqtrace/internal/platform/logger"
	"reqtrace/internal/platform/postgres"
	"reqtrace/internal/platform/redis"
	"reqtrace/internal/requirement"
	"reqtrace/internal/requirement/graph"
	reqmetrics "reqtrace/internal/requirement/metrics"
	reqservice "reqtrace/internal/requirement/service"
	reqstore "reqtrace/internal/requirement/store"
	"reqtrace/internal/stats"
	"reqtrace/internal/transfer"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal module packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db           *sql.DB
		requirements reqstore.Store
		containers   catalogstore.Store
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("schema bootstrap failed", "error", err)
			os.Exit(1)
		}
		requirements = reqstore.NewPostgres(db)
		containers = catalogstore.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		requirements = reqstore.NewInMemory()
		containers = catalogstore.NewInMemory()
	}

	cache, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		publisher = kafka
	}
	defer publisher.Close()

	statsOpts := []stats.Option{
		stats.WithLogger(log),
		stats.WithMetrics(stats.NewMetrics()),
	}
	if cache != nil {
		statsOpts = append(statsOpts, stats.WithCache(cache.Client, cfg.StatsCacheTTL))
	}
	statsService := stats.NewService(requirements, statsOpts...)

	g := graph.New(requirements,
		graph.WithLogger(log),
		graph.WithCycleRejection(cfg.RejectCycles),
	)
	reqService := requirement.NewService(requirements, g,
		reqservice.WithLogger(log),
		reqservice.WithMetrics(reqmetrics.New()),
		reqservice.WithPublisher(publisher),
		reqservice.WithStatsInvalidator(statsService),
	)
	catalogService := catalog.NewService(containers, reqService,
		catalogservice.WithLogger(log),
	)
	transferService := transfer.NewService(reqService, reqService, catalogService,
		transfer.WithLogger(log),
	)

	checks := map[string]httpapi.HealthChecker{}
	if db != nil {
		checks["postgres"] = pingChecker{db}
	}
	if cache != nil {
		checks["redis"] = cache
	}

	router := httpapi.New(httpapi.Deps{
		Logger:       log,
		Requirements: requirement.NewHandler(reqService, log),
		Catalog:      catalog.NewHandler(catalogService, log),
		Stats:        stats.NewHandler(statsService, log),
		Transfer:     transfer.NewHandler(transferService, log),
		Checks:       checks,
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting reqtrace", "addr", cfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error("server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

type pingChecker struct {
	db *sql.DB
}

func (c pingChecker) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
