package aggregation

import (
	"testing"

	"MarketPulse/internal/domain/models"
)

func TestIVRank(t *testing.T) {
	if got := IVRank(nil, 0.2); got != nil {
		t.Fatalf("expected nil for empty history, got %d", *got)
	}
	if got := IVRank([]float64{0.2, 0.2, 0.2}, 0.2); got == nil || *got != 50 {
		t.Fatalf("degenerate range rank = %v, want 50", got)
	}
	if got := IVRank([]float64{0.1, 0.15, 0.2, 0.3}, 0.3); got == nil || *got != 100 {
		t.Fatalf("rank at max = %v, want 100", got)
	}
	if got := IVRank([]float64{0.1, 0.2, 0.3}, 0.15); got == nil || *got != 25 {
		t.Fatalf("rank = %v, want 25", got)
	}
}

func TestIVRanksOmitsMissing(t *testing.T) {
	iv := map[string]models.IVRecord{
		"SPY": {Symbol: "SPY", IV: 0.2, History: []float64{0.1, 0.2}},
		"QQQ": {Symbol: "QQQ", IV: 0.3, History: []float64{0.3}},
	}
	got := IVRanks(iv, []string{"SPY", "QQQ", "IWM"})
	if len(got) != 2 {
		t.Fatalf("expected 2 ranks, got %v", got)
	}
	if got["SPY"] != 100 || got["QQQ"] != 50 {
		t.Fatalf("unexpected ranks %v", got)
	}
	if _, ok := got["IWM"]; ok {
		t.Fatalf("IWM should be omitted")
	}
}
