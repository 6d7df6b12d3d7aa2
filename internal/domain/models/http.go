package models

// Requests for prediction HTTP endpoints.

type PredictDownRequest struct {
	ProductID string `param:"productId" json:"product_id" validate:"required,max=128"`
	// Threshold is parsed by the handler; empty means the configured default.
	Threshold string `query:"threshold" json:"threshold" validate:"omitempty,numeric"`
}

type LatestPredictionRequest struct {
	ProductID string `param:"productId" json:"product_id" validate:"required,max=128"`
}

// ForecastRequest is the body of POST /api/v1/predict. An empty RequestID is
// generated by the server.
type ForecastRequest struct {
	RequestID   string            `json:"request_id" validate:"omitempty,max=128"`
	ProductID   string            `json:"product_id" validate:"required,max=128"`
	UserID      string            `json:"user_id" validate:"required,max=128"`
	Features    *ForecastFeatures `json:"features" validate:"required"`
	HorizonDays int               `json:"horizon_days" validate:"omitempty,min=1,max=365"`
}
