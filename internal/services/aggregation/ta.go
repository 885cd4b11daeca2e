package aggregation

import (
	"math"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
)

const TradingDaysPerYear = 252

// SMA is the mean of the last n values, nil when fewer than n exist.
func SMA(values []float64, n int) *float64 {
	if n <= 0 || len(values) < n {
		return nil
	}
	var s float64
	for _, v := range values[len(values)-n:] {
		s += v
	}
	return ptr(s / float64(n))
}

// ATR is the simple average of the last n true ranges; needs n+1 bars.
func ATR(bars []models.Bar, n int) *float64 {
	if n <= 0 || len(bars) < n+1 {
		return nil
	}
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		h, l, pc := bars[i].High, bars[i].Low, bars[i-1].Close
		trs = append(trs, math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc))))
	}
	return SMA(trs, n)
}

// LogReturns computes r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized volatility of the last window returns
// using the provided number of bars per year. Returns 0 on insufficient data.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// HV is annualized close-to-close volatility over n returns; needs n+1 closes.
func HV(closes []float64, n int, barsPerYear float64) *float64 {
	if n <= 1 || len(closes) < n+1 {
		return nil
	}
	return ptr(RealizedVolatility(LogReturns(closes), n, barsPerYear))
}

// BarsPerYear returns the approximate number of regular-session bars per year.
func BarsPerYear(tf repository.Timeframe) float64 {
	switch tf {
	case repository.TF1m:
		return TradingDaysPerYear * 390
	case repository.TF5m:
		return TradingDaysPerYear * 78
	case repository.TF15m:
		return TradingDaysPerYear * 26
	case repository.TF30m:
		return TradingDaysPerYear * 13
	case repository.TFHourly:
		return TradingDaysPerYear * 7
	case repository.TFWeekly:
		return 52
	default:
		return TradingDaysPerYear
	}
}

func closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// CoreStats summarizes one underlying's recent bars.
type CoreStats struct {
	Last        float64
	Change      float64
	ATR14       *float64
	ATRPct      *float64
	HV20        *float64
	SMA20       *float64
	SMA50       *float64
	AboveSMA20  bool
	AboveSMA50  bool
	Breakout20D bool
}

// ComputeCoreStats returns nil for fewer than 20 bars.
func ComputeCoreStats(bars []models.Bar, barsPerYear float64) *CoreStats {
	if len(bars) < 20 {
		return nil
	}
	cl := closes(bars)
	last := cl[len(cl)-1]
	cs := &CoreStats{
		Last:   last,
		Change: last - cl[len(cl)-2],
		ATR14:  ATR(bars, 14),
		HV20:   HV(cl, 20, barsPerYear),
		SMA20:  SMA(cl, 20),
		SMA50:  SMA(cl, 50),
	}
	if cs.ATR14 != nil && last != 0 {
		cs.ATRPct = ptr(*cs.ATR14 / last)
	}
	cs.AboveSMA20 = cs.SMA20 != nil && last > *cs.SMA20
	cs.AboveSMA50 = cs.SMA50 != nil && last > *cs.SMA50

	prior := cl[max(0, len(cl)-21) : len(cl)-1]
	hi := math.Inf(-1)
	for _, c := range prior {
		hi = math.Max(hi, c)
	}
	cs.Breakout20D = last >= hi
	return cs
}

// MAStats counts symbols at or above their n-bar SMA.
type MAStats struct {
	Above    int
	Below    int
	Short    int // symbols with fewer than n bars
	PctAbove float64
}

func PctAboveMA(bars map[string][]models.Bar, n int) MAStats {
	var st MAStats
	for _, bs := range bars {
		cl := closes(bs)
		sma := SMA(cl, n)
		if sma == nil {
			st.Short++
			continue
		}
		if cl[len(cl)-1] >= *sma {
			st.Above++
		} else {
			st.Below++
		}
	}
	st.PctAbove = Round(float64(st.Above)/max(1, float64(st.Above+st.Below))*100, 1)
	return st
}
