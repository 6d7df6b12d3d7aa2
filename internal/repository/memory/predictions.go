package memory

import (
	"context"
	"sync"

	"PriceDrop/internal/domain/models"
	domrepo "PriceDrop/internal/domain/repository"
)

var _ domrepo.PredictionStore = (*PredictionStore)(nil)

// PredictionStore is an append-only in-process prediction log.
type PredictionStore struct {
	mu   sync.RWMutex
	rows map[string][]models.Prediction
	// Err, when set, is returned by Append.
	Err error
}

func NewPredictionStore() *PredictionStore {
	return &PredictionStore{rows: make(map[string][]models.Prediction)}
}

func (s *PredictionStore) Append(_ context.Context, p *models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	row := *p
	row.Features = cloneFeatures(p.Features)
	s.rows[p.ProductID] = append(s.rows[p.ProductID], row)
	return nil
}

// MostRecent picks the latest created_at; on ties the later append wins.
func (s *PredictionStore) MostRecent(_ context.Context, productID string) (*models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.rows[productID]
	if len(rows) == 0 {
		return nil, nil
	}
	best := 0
	for i := 1; i < len(rows); i++ {
		if !rows[i].CreatedAt.Before(rows[best].CreatedAt) {
			best = i
		}
	}
	out := rows[best]
	out.Features = cloneFeatures(out.Features)
	return &out, nil
}

// Count returns how many predictions were appended for productID.
func (s *PredictionStore) Count(productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[productID])
}

func (s *PredictionStore) Health(context.Context) error { return nil }

func cloneFeatures(f models.FeatureVector) models.FeatureVector {
	c := f
	for _, p := range []**float64{
		&c.Avg7, &c.Avg30, &c.Avg90, &c.Vol30, &c.Slope30, &c.Slope90,
		&c.PriceChange30, &c.DaysSinceRelease, &c.Storage, &c.SoldCountAvg30,
	} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return c
}
