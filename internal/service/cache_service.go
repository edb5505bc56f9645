package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// RecapCacheKey is the cache key of a class recap for one term.
func RecapCacheKey(classID string, term models.Term) string {
	return fmt.Sprintf("recap:%s:%s:%s", classID, term.Semester, term.AcademicYear)
}

// RecapCachePattern matches every cached recap of a class.
func RecapCachePattern(classID string) string {
	return fmt.Sprintf("recap:%s:*", classID)
}

// RecapVersionKey is the key of the counter bumped whenever a class recap is
// invalidated. RecapCachePattern does not match it.
func RecapVersionKey(classID string) string {
	return "recap-version:" + classID
}

// CacheService orchestrates cache operations and related metrics. Cache
// failures are logged and reported as misses so callers fall back to the
// database.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores the value in cache using the default TTL when ttl is not positive.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateClassRecaps bumps the recap version of the given classes and
// drops every cached recap they have.
func (s *CacheService) InvalidateClassRecaps(ctx context.Context, classIDs ...string) {
	if !s.Enabled() {
		return
	}
	seen := make(map[string]struct{}, len(classIDs))
	for _, id := range classIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.repo.Incr(ctx, RecapVersionKey(id)); err != nil {
			s.logger.Warn("recap version bump failed", zap.String("class_id", id), zap.Error(err))
		}
		_ = s.Invalidate(ctx, RecapCachePattern(id))
	}
}

// RecapVersion reads the invalidation counter of a class. ok is false when
// caching is off or the counter cannot be read.
func (s *CacheService) RecapVersion(ctx context.Context, classID string) (version int64, ok bool) {
	if !s.Enabled() {
		return 0, false
	}
	err := s.repo.Get(ctx, RecapVersionKey(classID), &version)
	switch {
	case err == nil:
		return version, true
	case errors.Is(err, appErrors.ErrCacheMiss):
		return 0, true
	default:
		s.logger.Warn("recap version read failed", zap.String("class_id", classID), zap.Error(err))
		return 0, false
	}
}

// StoreRecap caches a recap built from data read at version. Nothing is kept
// when the class was invalidated while the recap was being built, so a stale
// snapshot never outlives a grade write.
func (s *CacheService) StoreRecap(ctx context.Context, classID string, version int64, key string, value interface{}, ttl time.Duration) bool {
	if current, ok := s.RecapVersion(ctx, classID); !ok || current != version {
		return false
	}
	s.Set(ctx, key, value, ttl)
	if current, ok := s.RecapVersion(ctx, classID); !ok || current != version {
		if err := s.repo.Delete(ctx, key); err != nil {
			s.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}
