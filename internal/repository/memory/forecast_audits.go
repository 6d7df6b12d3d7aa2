package memory

import (
	"context"
	"sync"

	"PriceDrop/internal/domain/models"
	domrepo "PriceDrop/internal/domain/repository"
)

var _ domrepo.ForecastAuditStore = (*ForecastAuditStore)(nil)

// ForecastAuditStore keeps forecast audit rows in insertion order.
type ForecastAuditStore struct {
	mu   sync.RWMutex
	rows []models.ForecastAudit
	// Err, when set, is returned by Append.
	Err error
}

func NewForecastAuditStore() *ForecastAuditStore {
	return &ForecastAuditStore{}
}

func (s *ForecastAuditStore) Append(_ context.Context, a *models.ForecastAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	row := *a
	row.Output = append([]byte(nil), a.Output...)
	s.rows = append(s.rows, row)
	return nil
}

// ByRequestID returns the rows recorded for requestID.
func (s *ForecastAuditStore) ByRequestID(requestID string) []models.ForecastAudit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ForecastAudit
	for _, r := range s.rows {
		if r.RequestID == requestID {
			out = append(out, r)
		}
	}
	return out
}

func (s *ForecastAuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *ForecastAuditStore) Health(context.Context) error { return nil }
