package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceDrop/internal/domain/models"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRecorder_CountsBySourceAndReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordPrediction(models.SourceModel)
	r.RecordPrediction(models.SourceModel)
	r.RecordPrediction(models.SourceHeuristic)
	r.RecordFallback("timeout")
	r.RecordError("persist")
	r.RecordLatency("predict_down", 0.02)
	r.RecordProbability(models.SourceModel, 0.7)

	assert.Equal(t, 2.0, counterValue(t, reg, "pricedrop_predictions_total", "source", "model"))
	assert.Equal(t, 1.0, counterValue(t, reg, "pricedrop_predictions_total", "source", "heuristic"))
	assert.Equal(t, 1.0, counterValue(t, reg, "pricedrop_model_fallbacks_total", "reason", "timeout"))
	assert.Equal(t, 1.0, counterValue(t, reg, "pricedrop_errors_total", "type", "persist"))
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
