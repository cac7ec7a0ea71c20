package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/pricing"
)

// ReferenceStore is a price store that can also report staleness
type ReferenceStore interface {
	pricing.PriceStore
	CountStale(ctx context.Context, now time.Time) (int, error)
}

// CachedPriceStore puts a Redis read-through cache in front of the vehicle
// scope listing the resolver runs for every price lookup. Cached scopes are
// keyed by a per-scope generation that upserts bump, so a fill racing with an
// upsert lands under the old generation and is never served.
type CachedPriceStore struct {
	inner  ReferenceStore
	cache  *CacheService
	logger *logging.Logger
}

// NewCachedPriceStore wraps inner with cache
func NewCachedPriceStore(inner ReferenceStore, cache *CacheService) *CachedPriceStore {
	return &CachedPriceStore{
		inner:  inner,
		cache:  cache,
		logger: logging.GetGlobalLogger().WithComponent("price-cache"),
	}
}

func (s *CachedPriceStore) generationKey(scope models.PriceKey) string {
	return s.cache.GenerateCacheKey(CacheKeyGeneration, string(CacheKeyPriceScope), scope.VehicleScope().String())
}

func (s *CachedPriceStore) scopeKey(scope models.PriceKey, gen int64) string {
	return s.cache.GenerateCacheKey(CacheKeyPriceScope, scope.VehicleScope().String(), strconv.FormatInt(gen, 10))
}

// GetReference reads the row from the underlying store
func (s *CachedPriceStore) GetReference(ctx context.Context, key models.PriceKey) (*models.PriceReference, error) {
	return s.inner.GetReference(ctx, key)
}

// ListVehicleReferences serves the scope from Redis when present. Cache
// failures fall back to the underlying store.
func (s *CachedPriceStore) ListVehicleReferences(ctx context.Context, scope models.PriceKey) ([]*models.PriceReference, error) {
	gen, err := s.cache.Generation(ctx, s.generationKey(scope))
	if err != nil {
		s.logger.WithError(err).Warn("Price cache generation unavailable")
		return s.inner.ListVehicleReferences(ctx, scope)
	}
	key := s.scopeKey(scope, gen)

	var cached []*models.PriceReference
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Price cache read failed")
	} else if hit {
		return cached, nil
	}

	rows, err := s.inner.ListVehicleReferences(ctx, scope)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, rows); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Price cache write failed")
	}
	return rows, nil
}

// UpsertReference writes through and moves the scope to a new generation
func (s *CachedPriceStore) UpsertReference(ctx context.Context, ref *models.PriceReference) (*models.PriceReference, error) {
	stored, err := s.inner.UpsertReference(ctx, ref)
	if err != nil {
		return nil, err
	}

	key := s.generationKey(ref.PriceKey)
	if _, err := s.cache.BumpGeneration(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Price cache invalidation failed")
	}
	return stored, nil
}

// CountStale counts stale rows in the underlying store
func (s *CachedPriceStore) CountStale(ctx context.Context, now time.Time) (int, error) {
	return s.inner.CountStale(ctx, now)
}
