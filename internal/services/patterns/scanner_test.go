package patterns

import (
	"errors"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

func bar(i int, o, h, l, c float64) models.Bar {
	return models.Bar{Time: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), Open: o, High: h, Low: l, Close: c}
}

// range-bound bars around 100 with highs at 102.
func rangeBars(n int) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		c := 100.0
		if i%2 == 1 {
			c = 99
		}
		out[i] = bar(i, c, 102, 97, c)
	}
	return out
}

func types(sigs []models.PatternSignal) map[string]float64 {
	out := make(map[string]float64, len(sigs))
	for _, s := range sigs {
		out[s.Type] = s.Confidence
	}
	return out
}

func TestBreakoutScenario(t *testing.T) {
	bars := rangeBars(24)
	bars = append(bars, bar(24, 101, 106, 100, 105))
	if !Breakout(bars, 20) {
		t.Fatalf("expected breakout on 25 bars")
	}
	res := New(DefaultConfig()).Scan([]Input{{Symbol: "AAPL", Daily: bars}})
	if got := types(res.Signals); got[TypeBreakout] != ConfidenceBreakout {
		t.Fatalf("expected Breakout20D at 0.7, got %v", res.Signals)
	}

	for i := 0; i < 4; i++ {
		bars = append(bars, bar(25+i, 101, 103, 100, 101))
	}
	if Breakout(bars, 20) {
		t.Fatalf("expected no breakout after bars below the prior high")
	}
	res = New(DefaultConfig()).Scan([]Input{{Symbol: "AAPL", Daily: bars}})
	if _, ok := types(res.Signals)[TypeBreakout]; ok {
		t.Fatalf("unexpected breakout signal %v", res.Signals)
	}
}

func TestInsideDay(t *testing.T) {
	bars := rangeBars(22)
	bars = append(bars, bar(22, 100, 101, 98, 100))
	res := New(DefaultConfig()).Scan([]Input{{Symbol: "MSFT", Daily: bars}})
	if got := types(res.Signals); got[TypeInsideDay] != ConfidenceInsideDay {
		t.Fatalf("expected InsideDay, got %v", res.Signals)
	}
}

func TestPullback(t *testing.T) {
	bars := make([]models.Bar, 0, 23)
	for i := 0; i < 21; i++ {
		c := 90 + float64(i)
		bars = append(bars, bar(i, c, c+0.5, c-0.5, c))
	}
	// 110 close then a 2% drop that stays above SMA20
	bars = append(bars, bar(21, 110, 111, 109, 110), bar(22, 108, 109, 107, 107.8))
	if !Pullback(bars, 20, -0.01) {
		t.Fatalf("expected pullback")
	}
	res := New(DefaultConfig()).Scan([]Input{{Symbol: "NVDA", Daily: bars}})
	if got := types(res.Signals); got[TypePullback] != ConfidencePullback {
		t.Fatalf("expected Pullback>MA20, got %v", res.Signals)
	}
}

func TestIntradayUpAndCombined(t *testing.T) {
	daily := rangeBars(24)
	daily = append(daily, bar(24, 101, 106, 100, 105))
	intraday := make([]models.Bar, 0, 8)
	for i, c := range []float64{5, 3, 4, 4, 5, 6, 6, 7} {
		intraday = append(intraday, bar(i, c, c, c, c))
	}
	res := New(DefaultConfig()).Scan([]Input{{Symbol: "TSLA", Daily: daily, Intraday: intraday}})
	got := types(res.Signals)
	if got[TypeIntradayUp] != ConfidenceIntradayUp {
		t.Fatalf("expected IntradayUp, got %v", res.Signals)
	}
	if got[TypeBreakoutIntradayUp] != ConfidenceBreakoutIntradayUp {
		t.Fatalf("expected combined signal, got %v", res.Signals)
	}

	intraday = append(intraday, bar(8, 6, 6, 6, 6))
	res = New(DefaultConfig()).Scan([]Input{{Symbol: "TSLA", Intraday: intraday}})
	if len(res.Signals) != 0 {
		t.Fatalf("expected no signals after a lower close, got %v", res.Signals)
	}
}

func TestScanSkipsShortAndCountsErrors(t *testing.T) {
	res := New(DefaultConfig()).Scan([]Input{
		{Symbol: "SHORT", Daily: rangeBars(21)},
		{Symbol: "FAIL", Err: errors.New("upstream down")},
	})
	if len(res.Signals) != 0 || res.Errors != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestScanTruncatesToMaxSignals(t *testing.T) {
	daily := rangeBars(24)
	daily = append(daily, bar(24, 101, 106, 100, 105))
	inputs := make([]Input, 20)
	for i := range inputs {
		inputs[i] = Input{Symbol: string(rune('A' + i)), Daily: daily}
	}
	res := New(DefaultConfig()).Scan(inputs)
	if len(res.Signals) != 12 {
		t.Fatalf("expected 12 signals, got %d", len(res.Signals))
	}
	if res.Signals[0].Symbol != "A" {
		t.Fatalf("expected symbol iteration order, got %v", res.Signals[0])
	}
}
