package aggregation

import (
	"testing"

	"MarketPulse/internal/domain/models"
)

func TestTrend(t *testing.T) {
	p := DefaultTrendPolicy()
	cases := []struct {
		name  string
		ticks map[string]models.Tick
		want  models.Trend
	}{
		{"empty", nil, models.Trend{Bias: BiasNeutral}},
		{"up", map[string]models.Tick{"A": tick(101, 100), "B": tick(100.5, 100)}, models.Trend{Bias: BiasUp, Strength: 0.75}},
		{"down clamped", map[string]models.Tick{"A": tick(50, 100)}, models.Trend{Bias: BiasDown, Strength: 1}},
		{"flat", map[string]models.Tick{"A": tick(100.01, 100), "B": tick(99.99, 100)}, models.Trend{Bias: BiasNeutral}},
		{"skip zero prev close", map[string]models.Tick{"A": tick(10, 0)}, models.Trend{Bias: BiasNeutral}},
	}
	for _, c := range cases {
		got := Trend(c.ticks, p)
		if got != c.want {
			t.Fatalf("%s: trend = %+v, want %+v", c.name, got, c.want)
		}
	}
}

func TestTrendPolicyIsConfigurable(t *testing.T) {
	ticks := map[string]models.Tick{"A": tick(100.03, 100)}
	if got := Trend(ticks, DefaultTrendPolicy()); got.Bias != BiasNeutral {
		t.Fatalf("default threshold: bias = %q", got.Bias)
	}
	loose := TrendPolicy{Clamp: 0.02, Threshold: 0.0001, FullStrength: 0.0002}
	got := Trend(ticks, loose)
	if got.Bias != BiasUp || got.Strength != 1 {
		t.Fatalf("custom policy: trend = %+v", got)
	}
}
