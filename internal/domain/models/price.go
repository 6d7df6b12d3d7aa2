package models

import "time"

// Condition is the listing condition category of a price observation.
type Condition string

const (
	ConditionPoor    Condition = "poor"
	ConditionFair    Condition = "fair"
	ConditionGood    Condition = "good"
	ConditionLikeNew Condition = "like_new"
	ConditionNew     Condition = "new"
)

// Ordinal maps the condition to its 0..4 encoding. Empty or unrecognized
// conditions encode as 0, the same as poor.
func (c Condition) Ordinal() int {
	switch c {
	case ConditionNew:
		return 4
	case ConditionLikeNew:
		return 3
	case ConditionGood:
		return 2
	case ConditionFair:
		return 1
	default:
		return 0
	}
}

// PricePoint is one immutable listing-price observation for a product.
type PricePoint struct {
	ProductID        string
	Date             time.Time
	ListingPrice     float64
	Storage          *float64
	Condition        Condition
	SoldCount        *int64
	DaysSinceRelease *float64
}
