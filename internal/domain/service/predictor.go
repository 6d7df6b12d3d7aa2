package service

import (
	"context"

	"PriceDrop/internal/domain/models"
)

// DropPredictor asks an external model for a price-drop probability.
// Implementations make a single bounded attempt and never retry.
type DropPredictor interface {
	Predict(ctx context.Context, features models.FeatureVector, threshold float64) (models.ModelPrediction, error)
}

// Forecaster sends catalog features to the forecast model. Like
// DropPredictor it makes a single bounded attempt.
type Forecaster interface {
	Forecast(ctx context.Context, in models.ForecastFeatures, horizonDays int) (models.ForecastOutput, error)
}
