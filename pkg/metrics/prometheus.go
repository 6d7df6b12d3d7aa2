package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"PriceDrop/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	probability *prometheus.HistogramVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricedrop_predictions_total",
				Help: "Predictions served, by source",
			},
			[]string{"source"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricedrop_model_fallbacks_total",
				Help: "Model calls that fell back to the heuristic, by reason",
			},
			[]string{"reason"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricedrop_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricedrop_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		probability: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricedrop_drop_probability",
				Help:    "Distribution of served drop probabilities",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"source"},
		),
	}
}

// RecordPrediction counts a served prediction.
func (r *Recorder) RecordPrediction(source models.Source) {
	r.predictions.WithLabelValues(string(source)).Inc()
}

// RecordFallback counts a heuristic fallback.
func (r *Recorder) RecordFallback(reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordProbability(source models.Source, probability float64) {
	r.probability.WithLabelValues(string(source)).Observe(probability)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordPrediction(models.Source)           {}
func (Nop) RecordFallback(string)                    {}
func (Nop) RecordError(string)                       {}
func (Nop) RecordLatency(string, float64)            {}
func (Nop) RecordProbability(models.Source, float64) {}
