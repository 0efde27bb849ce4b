package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/servisfon/transfer-api/internal/dto"
	"github.com/servisfon/transfer-api/internal/models"
	appErrors "github.com/servisfon/transfer-api/pkg/errors"
)

const dashboardCachePrefix = "dashboard:summary"

type statusCounter interface {
	CountByStatus(ctx context.Context, scope models.VisibilityScope) (map[models.TransferStatus]int, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService aggregates visible transfer counts per status, cached
// per scope with a short TTL.
type DashboardService struct {
	repo   statusCounter
	cache  summaryCache
	logger *zap.Logger
	ttl    time.Duration
}

// NewDashboardService constructs the service. cache may be nil, in which
// case every call recomputes.
func NewDashboardService(repo statusCounter, cache summaryCache, logger *zap.Logger, ttl time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger, ttl: ttl}
}

// Summary returns per-status counts for the actor's visible records.
func (s *DashboardService) Summary(ctx context.Context, actor *models.User) (*dto.DashboardSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	scope := models.ScopeFor(actor)
	key := cacheKeyForScope(scope)

	if s.cache != nil {
		var cached dto.DashboardSummary
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	counts, err := s.repo.CountByStatus(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to aggregate transfers")
	}

	summary := &dto.DashboardSummary{ByStatus: make(map[models.TransferStatus]int, len(models.StatusOrder))}
	for _, status := range models.StatusOrder {
		summary.ByStatus[status] = counts[status]
		summary.Total += counts[status]
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.ttl); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// Invalidate drops every cached summary. Called after each transfer write.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, dashboardCachePrefix+":*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func cacheKeyForScope(scope models.VisibilityScope) string {
	return fmt.Sprintf("%s:f=%s:t=%s", dashboardCachePrefix, scope.BranchFrom, scope.BranchTo)
}
