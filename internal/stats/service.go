package stats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"reqtrace/internal/requirement/models"
	"reqtrace/internal/requirement/store"
	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
)

const cacheKeyPrefix = "reqtrace:stats:"

// RequirementLister supplies the requirement set a snapshot is computed
// from.
type RequirementLister interface {
	List(ctx context.Context, f store.Filter) ([]*models.Requirement, error)
}

// Service computes and caches dashboard snapshots. The cache layer is
// optional; without Redis every call recomputes. Concurrent requests for the
// same project share one computation.
type Service struct {
	lister  RequirementLister
	cache   *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics
	group   singleflight.Group
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCache enables snapshot caching in Redis.
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = client
		s.ttl = ttl
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService constructs a stats service.
func NewService(lister RequirementLister, opts ...Option) *Service {
	s := &Service{
		lister: lister,
		ttl:    5 * time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the dashboard rollup for a project, from cache when
// fresh.
func (s *Service) Snapshot(ctx context.Context, projectID domain.ProjectID) (*Snapshot, error) {
	if projectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "project_id is required")
	}

	if cached := s.fromCache(ctx, projectID); cached != nil {
		return cached, nil
	}

	v, err, _ := s.group.Do(projectID.String(), func() (any, error) {
		start := time.Now()
		requirements, err := s.lister.List(ctx, store.Filter{ProjectID: &projectID})
		if err != nil {
			return nil, err
		}
		snapshot := Compute(requirements)
		if s.metrics != nil {
			s.metrics.ObserveCompute(start)
		}
		s.toCache(ctx, projectID, &snapshot)
		return &snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate drops the cached snapshot for a project. Called after every
// mutation that can shift the aggregates.
func (s *Service) Invalidate(ctx context.Context, projectID domain.ProjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKeyPrefix+projectID.String()).Err(); err != nil {
		s.logger.WarnContext(ctx, "invalidate stats cache",
			"project_id", projectID.String(), "error", err)
	}
}

func (s *Service) fromCache(ctx context.Context, projectID domain.ProjectID) *Snapshot {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKeyPrefix+projectID.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "read stats cache",
				"project_id", projectID.String(), "error", err)
		}
		if s.metrics != nil {
			s.metrics.IncrementCacheMisses()
		}
		return nil
	}
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		s.logger.WarnContext(ctx, "decode cached stats",
			"project_id", projectID.String(), "error", err)
		return nil
	}
	if s.metrics != nil {
		s.metrics.IncrementCacheHits()
	}
	return &snapshot
}

func (s *Service) toCache(ctx context.Context, projectID domain.ProjectID, snapshot *Snapshot) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+projectID.String(), raw, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "write stats cache",
			"project_id", projectID.String(), "error", err)
	}
}
