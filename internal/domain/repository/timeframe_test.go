package repository

import "testing"

func TestNormalizeTimeframe(t *testing.T) {
	cases := []struct {
		in   string
		def  Timeframe
		want Timeframe
	}{
		{"", TFDaily, TFDaily},
		{"5m", TFDaily, TF5m},
		{"hourly", TF5m, TFHourly},
		{"1h", TF5m, TFHourly},
		{"weekly", TF5m, TFWeekly},
		{"3m", TFDaily, TFDaily},
		{"bogus", TF5m, TF5m},
	}
	for _, c := range cases {
		if got := NormalizeTimeframe(c.in, c.def); got != c.want {
			t.Fatalf("NormalizeTimeframe(%q, %q) = %q, want %q", c.in, c.def, got, c.want)
		}
	}
}

func TestIsIntraday(t *testing.T) {
	if !TF15m.IsIntraday() || !TFHourly.IsIntraday() {
		t.Fatalf("expected intraday")
	}
	if TFDaily.IsIntraday() || TFWeekly.IsIntraday() {
		t.Fatalf("expected non-intraday")
	}
}
