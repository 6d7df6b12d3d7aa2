// Package memory holds in-process stores used for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"PriceDrop/internal/domain/models"
	domrepo "PriceDrop/internal/domain/repository"
	xutil "PriceDrop/pkg/util"
)

var _ domrepo.HistoryStore = (*HistoryStore)(nil)

// HistoryStore keeps price observations per product, sorted by date.
type HistoryStore struct {
	mu     sync.RWMutex
	points map[string][]models.PricePoint
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{points: make(map[string][]models.PricePoint)}
}

// Add inserts observations, keeping each product's series ordered by date.
func (s *HistoryStore) Add(points ...models.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := make(map[string]struct{})
	for _, p := range points {
		s.points[p.ProductID] = append(s.points[p.ProductID], p)
		touched[p.ProductID] = struct{}{}
	}
	for id := range touched {
		series := s.points[id]
		sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}
}

func (s *HistoryStore) Range(_ context.Context, productID string, from, to time.Time) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.points[productID]
	out := make([]models.PricePoint, 0, len(series))
	for _, p := range series {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *HistoryStore) Health(context.Context) error { return nil }

type seedPoint struct {
	ProductID        string   `json:"product_id"`
	Date             string   `json:"date"`
	ListingPrice     float64  `json:"listing_price"`
	Storage          *float64 `json:"storage"`
	Condition        string   `json:"condition"`
	SoldCount        *int64   `json:"sold_count"`
	DaysSinceRelease *float64 `json:"days_since_release"`
}

// LoadJSON reads a JSON array of observations. Dates are YYYY-MM-DD, RFC 3339
// or unix seconds.
func (s *HistoryStore) LoadJSON(r io.Reader) (int, error) {
	var raw []seedPoint
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return 0, fmt.Errorf("decode history seed: %w", err)
	}
	points := make([]models.PricePoint, 0, len(raw))
	for i, sp := range raw {
		if sp.ProductID == "" {
			return 0, fmt.Errorf("history seed row %d: product_id is required", i)
		}
		d, ok := xutil.ParseTime(sp.Date)
		if !ok {
			return 0, fmt.Errorf("history seed row %d: invalid date %q", i, sp.Date)
		}
		points = append(points, models.PricePoint{
			ProductID:        sp.ProductID,
			Date:             d,
			ListingPrice:     sp.ListingPrice,
			Storage:          sp.Storage,
			Condition:        models.Condition(sp.Condition),
			SoldCount:        sp.SoldCount,
			DaysSinceRelease: sp.DaysSinceRelease,
		})
	}
	s.Add(points...)
	return len(points), nil
}
