package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceDrop/internal/domain/models"
	"PriceDrop/internal/repository/memory"
	pkgcache "PriceDrop/pkg/cache"
)

type countingStore struct {
	*memory.PredictionStore
	reads int
}

func (s *countingStore) MostRecent(ctx context.Context, productID string) (*models.Prediction, error) {
	s.reads++
	return s.PredictionStore.MostRecent(ctx, productID)
}

type brokenCache struct{ pkgcache.Service }

func (brokenCache) Get(context.Context, string, interface{}) error { return errors.New("redis down") }
func (brokenCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("redis down")
}
func (brokenCache) Delete(context.Context, ...string) error { return errors.New("redis down") }

func TestCachedPredictionStore_AppendInvalidatesLatest(t *testing.T) {
	inner := &countingStore{PredictionStore: memory.NewPredictionStore()}
	c := pkgcache.NewMemoryCache()
	defer c.Close()
	s := NewCachedPredictionStore(inner, c, time.Hour, nil)
	ctx := context.Background()

	created := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, &models.Prediction{
		ID: "a", ProductID: "p1", Probability: 0.7, ModelVersion: "v1.0",
		Features: models.FeatureVector{CurrentPrice: 900, Avg30: ptr(950)}, CreatedAt: created,
	}))
	_, err := s.MostRecent(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, &models.Prediction{
		ID: "b", ProductID: "p1", Probability: 0.3, ModelVersion: "v1.0",
		Features: models.FeatureVector{CurrentPrice: 880}, CreatedAt: created.Add(time.Minute),
	}))
	ok, err := c.Exists(ctx, latestKey("p1"))
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 2; i++ {
		got, err := s.MostRecent(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "b", got.ID)
		assert.True(t, created.Add(time.Minute).Equal(got.CreatedAt))
	}
	assert.Equal(t, 2, inner.reads)

	first, err := inner.PredictionStore.MostRecent(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "b", first.ID)
}

func TestCachedPredictionStore_OutOfOrderAppendKeepsNewest(t *testing.T) {
	inner := memory.NewPredictionStore()
	c := pkgcache.NewMemoryCache()
	defer c.Close()
	s := NewCachedPredictionStore(inner, c, time.Hour, nil)
	ctx := context.Background()

	t0 := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, &models.Prediction{ID: "newer", ProductID: "p1", CreatedAt: t0.Add(time.Second)}))
	require.NoError(t, s.Append(ctx, &models.Prediction{ID: "older", ProductID: "p1", CreatedAt: t0}))

	backing, err := inner.MostRecent(ctx, "p1")
	require.NoError(t, err)
	got, err := s.MostRecent(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "newer", backing.ID)
	assert.Equal(t, backing.ID, got.ID)
}

func TestCachedPredictionStore_MissFillsCache(t *testing.T) {
	inner := &countingStore{PredictionStore: memory.NewPredictionStore()}
	ctx := context.Background()
	require.NoError(t, inner.Append(ctx, &models.Prediction{ID: "a", ProductID: "p1", CreatedAt: time.Now()}))

	c := pkgcache.NewMemoryCache()
	defer c.Close()
	s := NewCachedPredictionStore(inner, c, time.Hour, nil)

	for i := 0; i < 3; i++ {
		got, err := s.MostRecent(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "a", got.ID)
	}
	assert.Equal(t, 1, inner.reads)
}

func TestCachedPredictionStore_NoneIsNotCached(t *testing.T) {
	inner := &countingStore{PredictionStore: memory.NewPredictionStore()}
	c := pkgcache.NewMemoryCache()
	defer c.Close()
	s := NewCachedPredictionStore(inner, c, time.Hour, nil)

	for i := 0; i < 2; i++ {
		got, err := s.MostRecent(context.Background(), "p1")
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, 2, inner.reads)
}

func TestCachedPredictionStore_CacheFailureFallsThrough(t *testing.T) {
	inner := &countingStore{PredictionStore: memory.NewPredictionStore()}
	s := NewCachedPredictionStore(inner, brokenCache{}, time.Hour, nil)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, &models.Prediction{ID: "a", ProductID: "p1", CreatedAt: time.Now()}))
	got, err := s.MostRecent(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, 1, inner.reads)
}

func TestCachedPredictionStore_AppendErrorSkipsCache(t *testing.T) {
	inner := memory.NewPredictionStore()
	inner.Err = errors.New("pg down")
	c := pkgcache.NewMemoryCache()
	defer c.Close()
	s := NewCachedPredictionStore(inner, c, time.Hour, nil)

	err := s.Append(context.Background(), &models.Prediction{ID: "a", ProductID: "p1"})
	assert.ErrorContains(t, err, "pg down")

	ok, err := c.Exists(context.Background(), latestKey("p1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

type unhealthyCache struct{ pkgcache.Service }

func (unhealthyCache) Health(context.Context) error { return errors.New("dial tcp: refused") }

func TestCachedPredictionStore_HealthIncludesCache(t *testing.T) {
	inner := memory.NewPredictionStore()

	s := NewCachedPredictionStore(inner, brokenCache{}, time.Hour, nil)
	assert.NoError(t, s.Health(context.Background()))

	s = NewCachedPredictionStore(inner, unhealthyCache{}, time.Hour, nil)
	err := s.Health(context.Background())
	assert.ErrorContains(t, err, "cache: dial tcp: refused")

	inner.Err = errors.New("pg down")
	assert.ErrorContains(t, s.Health(context.Background()), "pg down")
}
