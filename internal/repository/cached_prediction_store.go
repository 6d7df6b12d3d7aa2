package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PriceDrop/internal/domain/models"
	domrepo "PriceDrop/internal/domain/repository"
	pkgcache "PriceDrop/pkg/cache"
	applogger "PriceDrop/pkg/logger"
)

var _ domrepo.PredictionStore = (*CachedPredictionStore)(nil)

const latestKeyPrefix = "prediction:latest"

// CachedPredictionStore fronts a PredictionStore with a read-through cache of
// the latest row per product. The backing store stays the source of truth:
// cache errors are logged and the call falls through.
type CachedPredictionStore struct {
	next  domrepo.PredictionStore
	cache pkgcache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedPredictionStore(next domrepo.PredictionStore, cache pkgcache.Service, ttl time.Duration, l *applogger.Logger) *CachedPredictionStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedPredictionStore{next: next, cache: cache, ttl: ttl, l: l}
}

func latestKey(productID string) string {
	return pkgcache.GenerateKey(latestKeyPrefix, productID)
}

// Append writes through to the backing store and drops the cached latest
// row. Concurrent appends may finish out of creation order, so the next read
// refills the key from the store instead of trusting the last writer.
func (s *CachedPredictionStore) Append(ctx context.Context, p *models.Prediction) error {
	if err := s.next.Append(ctx, p); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, latestKey(p.ProductID)); err != nil {
		s.l.Warn("prediction cache invalidate failed",
			applogger.String("product_id", p.ProductID),
			applogger.Error(err),
		)
	}
	return nil
}

func (s *CachedPredictionStore) MostRecent(ctx context.Context, productID string) (*models.Prediction, error) {
	var cached models.Prediction
	err := s.cache.Get(ctx, latestKey(productID), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, pkgcache.ErrCacheMiss) {
		s.l.Warn("prediction cache read failed",
			applogger.String("product_id", productID),
			applogger.Error(err),
		)
	}

	p, err := s.next.MostRecent(ctx, productID)
	if err != nil || p == nil {
		return p, err
	}
	if err := s.cache.Set(ctx, latestKey(productID), p, s.ttl); err != nil {
		s.l.Debug("prediction cache fill failed",
			applogger.String("product_id", productID),
			applogger.Error(err),
		)
	}
	return p, nil
}

// Health checks the backing store, then the cache when it can report.
func (s *CachedPredictionStore) Health(ctx context.Context) error {
	if err := s.next.Health(ctx); err != nil {
		return err
	}
	if hc, ok := s.cache.(pkgcache.HealthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}
