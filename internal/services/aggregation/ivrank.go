package aggregation

import (
	"math"

	"MarketPulse/internal/domain/models"
)

// IVRank places current within the history range as 0..100.
// Nil for empty history, 50 when the range is degenerate.
func IVRank(history []float64, current float64) *int {
	if len(history) == 0 {
		return nil
	}
	lo, hi := history[0], history[0]
	for _, v := range history[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	rank := 50
	if hi > lo {
		rank = int(math.Round((current - lo) / (hi - lo) * 100))
	}
	return &rank
}

// IVRanks computes the rank per underlying, omitting ones without history.
func IVRanks(iv map[string]models.IVRecord, underlyings []string) map[string]int {
	out := make(map[string]int, len(underlyings))
	for _, u := range underlyings {
		rec, ok := iv[u]
		if !ok {
			continue
		}
		if r := IVRank(rec.History, rec.IV); r != nil {
			out[u] = *r
		}
	}
	return out
}
