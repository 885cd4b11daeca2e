package aggregation

import (
	"math"

	"MarketPulse/internal/domain/models"
)

const (
	BiasUp      = "up"
	BiasDown    = "down"
	BiasNeutral = "neutral"
)

// TrendPolicy holds the fixed constants of the trend calculation.
type TrendPolicy struct {
	// Clamp bounds each per-symbol return to [-Clamp, Clamp].
	Clamp float64 `yaml:"clamp"`
	// Threshold is the mean return above which bias is up (below -Threshold, down).
	Threshold float64 `yaml:"threshold"`
	// FullStrength is the mean absolute return that maps to strength 1.
	FullStrength float64 `yaml:"full_strength"`
}

func DefaultTrendPolicy() TrendPolicy {
	return TrendPolicy{Clamp: 0.02, Threshold: 0.0005, FullStrength: 0.01}
}

func (p TrendPolicy) withDefaults() TrendPolicy {
	def := DefaultTrendPolicy()
	if p.Clamp <= 0 {
		p.Clamp = def.Clamp
	}
	if p.Threshold <= 0 {
		p.Threshold = def.Threshold
	}
	if p.FullStrength <= 0 {
		p.FullStrength = def.FullStrength
	}
	return p
}

// Trend averages clamped per-symbol returns. Symbols with prevClose <= 0 are skipped.
func Trend(ticks map[string]models.Tick, p TrendPolicy) models.Trend {
	p = p.withDefaults()
	var sum float64
	n := 0
	for _, t := range ticks {
		if t.PrevClose <= 0 {
			continue
		}
		ret := (t.Last - t.PrevClose) / t.PrevClose
		sum += math.Max(-p.Clamp, math.Min(p.Clamp, ret))
		n++
	}
	if n == 0 {
		return models.Trend{Bias: BiasNeutral}
	}
	mean := sum / float64(n)

	bias := BiasNeutral
	if mean > p.Threshold {
		bias = BiasUp
	} else if mean < -p.Threshold {
		bias = BiasDown
	}
	strength := math.Min(1, math.Abs(mean)/p.FullStrength)
	return models.Trend{Bias: bias, Strength: Round(strength, 2)}
}
