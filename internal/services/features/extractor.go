// Package features derives the price-history feature vector fed to the model.
package features

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"PriceDrop/internal/domain/models"
)

const (
	// LookbackDays is the trailing history window used for feature computation.
	LookbackDays = 365

	day = 24 * time.Hour
)

// Cutoff returns the start of a trailing window of n days ending at evalAt.
func Cutoff(evalAt time.Time, days int) time.Time {
	return evalAt.Add(-time.Duration(days) * day)
}

// Extract computes the feature vector for a product's price history as of evalAt.
// Points outside the trailing LookbackDays window are ignored. It returns false
// when no point falls inside the window.
func Extract(history []models.PricePoint, evalAt time.Time) (models.FeatureVector, bool) {
	return ExtractWindow(history, evalAt, LookbackDays)
}

// ExtractWindow is Extract with a configurable lookback in days.
func ExtractWindow(history []models.PricePoint, evalAt time.Time, lookbackDays int) (models.FeatureVector, bool) {
	pts := restrict(history, Cutoff(evalAt, lookbackDays), evalAt)
	if len(pts) == 0 {
		return models.FeatureVector{}, false
	}

	latest := pts[len(pts)-1]
	w30 := Since(pts, evalAt, 30)
	utc := evalAt.UTC()

	return models.FeatureVector{
		CurrentPrice:     latest.ListingPrice,
		Avg7:             RollingAvg(Since(pts, evalAt, 7)),
		Avg30:            RollingAvg(w30),
		Avg90:            RollingAvg(Since(pts, evalAt, 90)),
		Vol30:            Volatility(w30),
		Slope30:          Slope(w30),
		Slope90:          Slope(Since(pts, evalAt, 90)),
		PriceChange30:    PriceChange(latest.ListingPrice, w30),
		DayOfWeek:        int(utc.Weekday()),
		Month:            int(utc.Month()),
		DaysSinceRelease: clone(latest.DaysSinceRelease),
		Storage:          clone(latest.Storage),
		ConditionEncoded: latest.Condition.Ordinal(),
		SoldCountAvg30:   SoldCountAvg(w30),
	}, true
}

// Since returns the points dated on or after evalAt minus the given number of days.
// pts must be sorted by date ascending.
func Since(pts []models.PricePoint, evalAt time.Time, days int) []models.PricePoint {
	cutoff := Cutoff(evalAt, days)
	i := sort.Search(len(pts), func(i int) bool { return !pts[i].Date.Before(cutoff) })
	return pts[i:]
}

// RollingAvg is the arithmetic mean of listing prices, nil for an empty window.
func RollingAvg(window []models.PricePoint) *float64 {
	if len(window) == 0 {
		return nil
	}
	return ptr(stat.Mean(prices(window), nil))
}

// Volatility is the sample standard deviation (n-1) of listing prices,
// nil with fewer than two points.
func Volatility(window []models.PricePoint) *float64 {
	if len(window) < 2 {
		return nil
	}
	return ptr(stat.StdDev(prices(window), nil))
}

// Slope is the OLS slope of price against days since the Unix epoch.
// It is nil with fewer than two points and 0 when every point shares one instant.
func Slope(window []models.PricePoint) *float64 {
	if len(window) < 2 {
		return nil
	}
	xs := make([]float64, len(window))
	for i, p := range window {
		xs[i] = epochDays(p.Date)
	}
	if stat.Variance(xs, nil) == 0 {
		return ptr(0)
	}
	_, beta := stat.LinearRegression(xs, prices(window), nil, false)
	return ptr(beta)
}

// PriceChange is the relative change from the first price in the window to current.
func PriceChange(current float64, window []models.PricePoint) *float64 {
	if len(window) == 0 {
		return nil
	}
	first := window[0].ListingPrice
	if first == 0 {
		return ptr(0)
	}
	return ptr((current - first) / first)
}

// SoldCountAvg averages the sold counts of points that report a positive count.
func SoldCountAvg(window []models.PricePoint) *float64 {
	sold := make([]float64, 0, len(window))
	for _, p := range window {
		if p.SoldCount != nil && *p.SoldCount > 0 {
			sold = append(sold, float64(*p.SoldCount))
		}
	}
	if len(sold) == 0 {
		return nil
	}
	return ptr(stat.Mean(sold, nil))
}

func restrict(history []models.PricePoint, from, to time.Time) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(history))
	for _, p := range history {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func prices(window []models.PricePoint) []float64 {
	out := make([]float64, len(window))
	for i, p := range window {
		out[i] = p.ListingPrice
	}
	return out
}

func epochDays(t time.Time) float64 {
	return float64(t.UnixMilli()) / float64(day.Milliseconds())
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(*v)
}

func ptr(v float64) *float64 { return &v }
