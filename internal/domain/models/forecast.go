package models

import (
	"encoding/json"
	"time"
)

// ForecastStatus is the outcome recorded for one forecast request.
type ForecastStatus string

const (
	ForecastSuccess ForecastStatus = "success"
	ForecastTimeout ForecastStatus = "timeout"
	ForecastFailed  ForecastStatus = "error"
)

// ForecastFeatures are the catalog attributes the forecast model scores.
type ForecastFeatures struct {
	ModelName         string   `json:"model_name" validate:"required,max=128"`
	StorageGB         *float64 `json:"storage_gb" validate:"required,gte=0"`
	MonthsSinceLaunch *float64 `json:"months_since_launch" validate:"required,gte=0"`
	CurrentPriceINR   *float64 `json:"current_price_inr" validate:"required,gt=0"`
}

// ForecastOutput is a successful forecast model reply. Body is the reply
// object as received.
type ForecastOutput struct {
	Body         json.RawMessage
	ModelVersion string
	Confidence   *float64
}

// ForecastResult is returned to the caller of a forecast request.
type ForecastResult struct {
	RequestID    string          `json:"request_id"`
	ProductID    string          `json:"product_id"`
	UserID       string          `json:"user_id"`
	ModelVersion string          `json:"model_version"`
	HorizonDays  int             `json:"horizon_days,omitempty"`
	LatencyMS    int64           `json:"latency_ms"`
	PredictedAt  time.Time       `json:"predicted_at"`
	Prediction   json.RawMessage `json:"prediction"`
}

// ForecastAudit is the row written for every forecast request that reached
// the model, whatever the outcome.
type ForecastAudit struct {
	ID           string
	RequestID    string
	UserID       string
	ProductID    string
	ModelVersion string
	Input        ForecastFeatures
	HorizonDays  int
	Output       json.RawMessage
	Confidence   *float64
	LatencyMS    int64
	Status       ForecastStatus
	Error        string
	CreatedAt    time.Time
}
