package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestEstimateDrop_Bands(t *testing.T) {
	tests := []struct {
		name      string
		current   float64
		avg30     float64
		threshold float64
		wantP     float64
		wantDown  bool
	}{
		{"well above average", 1000, 950, 0.5, 0.8, true},
		{"exactly 3 percent above", 103, 100, 0.5, 0.8, true},
		{"slightly above", 101, 100, 0.5, 0.6, true},
		{"at average", 100, 100, 0.5, 0.6, true},
		{"slightly below", 98, 100, 0.5, 0.4, false},
		{"exactly 3 percent below", 97, 100, 0.5, 0.4, false},
		{"well below", 90, 100, 0.5, 0.2, false},
		{"high threshold", 1000, 950, 0.9, 0.8, false},
		{"threshold equal to probability", 98, 100, 0.4, 0.4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateDrop(tt.current, f(tt.avg30), tt.threshold)
			assert.Equal(t, tt.wantP, got.Probability)
			assert.Equal(t, tt.wantDown, got.WillGoDown)
			assert.Equal(t, got.Probability >= tt.threshold, got.WillGoDown)
		})
	}
}

func TestEstimateDrop_Degenerate(t *testing.T) {
	for _, threshold := range []float64{0, 0.3, 0.5, 0.51, 1} {
		want := threshold <= 0.5

		got := EstimateDrop(1000, nil, threshold)
		assert.Equal(t, 0.5, got.Probability)
		assert.Equal(t, want, got.WillGoDown, "unknown avg30, threshold %v", threshold)

		got = EstimateDrop(1000, f(0), threshold)
		assert.Equal(t, 0.5, got.Probability)
		assert.Equal(t, want, got.WillGoDown, "zero avg30, threshold %v", threshold)

		got = EstimateDrop(0, f(950), threshold)
		assert.Equal(t, 0.5, got.Probability)
		assert.Equal(t, want, got.WillGoDown, "zero current price, threshold %v", threshold)
	}
}

func TestModelVersionIsDistinct(t *testing.T) {
	assert.Equal(t, "heuristic-v1", ModelVersion)
	assert.Equal(t, []string{"current_price", "avg30"}, TopFeatures)
}
