package models

import "time"

// Source tells where a prediction result came from.
type Source string

const (
	SourceCache     Source = "cache"
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
)

// FeatureVector is the engineered feature snapshot sent to the model.
// Nil pointers mean "unknown" and serialize as JSON null.
type FeatureVector struct {
	CurrentPrice     float64  `json:"current_price"`
	Avg7             *float64 `json:"avg7"`
	Avg30            *float64 `json:"avg30"`
	Avg90            *float64 `json:"avg90"`
	Vol30            *float64 `json:"vol30"`
	Slope30          *float64 `json:"slope30"`
	Slope90          *float64 `json:"slope90"`
	PriceChange30    *float64 `json:"price_change_30"`
	DayOfWeek        int      `json:"day_of_week"`
	Month            int      `json:"month"`
	DaysSinceRelease *float64 `json:"days_since_release"`
	Storage          *float64 `json:"storage"`
	ConditionEncoded int      `json:"condition_encoded"`
	SoldCountAvg30   *float64 `json:"sold_count_avg30"`
}

// Prediction is a persisted drop-probability result. Rows are append-only;
// the current prediction for a product is the most recently created one.
type Prediction struct {
	ID             string        `json:"id"`
	ProductID      string        `json:"product_id"`
	Probability    float64       `json:"probability"`
	WillGoDown     bool          `json:"will_go_down"`
	Threshold      float64       `json:"threshold"`
	ModelVersion   string        `json:"model_version"`
	Features       FeatureVector `json:"features"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// PredictionResult is the response of one orchestration run.
type PredictionResult struct {
	ProductID    string        `json:"product_id"`
	Probability  float64       `json:"probability"`
	WillGoDown   bool          `json:"will_go_down"`
	Threshold    float64       `json:"threshold"`
	ModelVersion string        `json:"model_version"`
	Features     FeatureVector `json:"features"`
	TopFeatures  []string      `json:"top_features,omitempty"`
	Source       Source        `json:"source"`
	CreatedAt    time.Time     `json:"created_at"`
	// Persisted is false when the result could not be written to the
	// prediction store and will be recomputed on the next request.
	Persisted bool `json:"persisted"`
}

// ModelPrediction is a successful answer from the external model.
type ModelPrediction struct {
	Probability  float64
	WillGoDown   bool
	ModelVersion string
	TopFeatures  []string
}
