package repository

import (
	"context"
	"time"

	"PriceDrop/internal/domain/models"
)

// HistoryStore provides read-only access to price observations.
type HistoryStore interface {
	// Range returns the observations for productID with from <= date <= to,
	// ordered by date ascending.
	Range(ctx context.Context, productID string, from, to time.Time) ([]models.PricePoint, error)
	Health(ctx context.Context) error
}

// PredictionStore is append-only persistence of prediction results.
type PredictionStore interface {
	Append(ctx context.Context, p *models.Prediction) error
	// MostRecent returns the latest prediction by creation time, or
	// (nil, nil) when the product has none.
	MostRecent(ctx context.Context, productID string) (*models.Prediction, error)
	Health(ctx context.Context) error
}

// ForecastAuditStore records one row per forecast request.
type ForecastAuditStore interface {
	Append(ctx context.Context, a *models.ForecastAudit) error
	Health(ctx context.Context) error
}

// PredictionPublisher announces newly created predictions to downstream consumers.
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, p *models.Prediction) error
	Close() error
}

type Metrics interface {
	RecordPrediction(source models.Source)
	RecordFallback(reason string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordProbability(source models.Source, probability float64)
}
