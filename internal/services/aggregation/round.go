package aggregation

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds half away from zero to the given decimal places.
// Non-finite input is returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func ptr(v float64) *float64 { return &v }

// ratio returns num/den rounded to 2 places, or nil when den is zero.
func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	return ptr(Round(num/den, 2))
}
