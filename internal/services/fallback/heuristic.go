// Package fallback scores price-drop probability without the external model.
package fallback

// ModelVersion tags predictions produced by the heuristic.
const ModelVersion = "heuristic-v1"

// TopFeatures lists the inputs the heuristic looks at.
var TopFeatures = []string{"current_price", "avg30"}

// Estimate is a heuristic drop probability.
type Estimate struct {
	Probability float64
	WillGoDown  bool
}

// EstimateDrop bands the ratio of current price to its 30-day average: a price
// above its own recent average is scored as more likely to revert downward.
// Unknown or zero inputs yield 0.5.
func EstimateDrop(currentPrice float64, avg30 *float64, threshold float64) Estimate {
	if currentPrice == 0 || avg30 == nil || *avg30 == 0 {
		return Estimate{Probability: 0.5, WillGoDown: threshold <= 0.5}
	}

	ratio := currentPrice / *avg30
	var p float64
	switch {
	case ratio >= 1.03:
		p = 0.8
	case ratio >= 1.0:
		p = 0.6
	case ratio >= 0.97:
		p = 0.4
	default:
		p = 0.2
	}
	return Estimate{Probability: p, WillGoDown: p >= threshold}
}
