package patterns

import (
	"math"

	"MarketPulse/internal/domain/models"
)

const (
	TypeBreakout           = "Breakout20D"
	TypeInsideDay          = "InsideDay"
	TypePullback           = "Pullback>MA20"
	TypeIntradayUp         = "IntradayUp"
	TypeBreakoutIntradayUp = "Breakout+IntradayUp"
)

// Fixed per-rule confidence scores.
const (
	ConfidenceBreakout           = 0.70
	ConfidenceInsideDay          = 0.55
	ConfidencePullback           = 0.60
	ConfidenceIntradayUp         = 0.60
	ConfidenceBreakoutIntradayUp = 0.80
)

type Config struct {
	BreakoutLookback int     `yaml:"breakout_lookback"`
	SMAWindow        int     `yaml:"sma_window"`
	PullbackReturn   float64 `yaml:"pullback_return"`
	IntradayRun      int     `yaml:"intraday_run"`
	MinBars          int     `yaml:"min_bars"`
	MaxSignals       int     `yaml:"max_signals"`
}

func DefaultConfig() Config {
	return Config{
		BreakoutLookback: 20,
		SMAWindow:        20,
		PullbackReturn:   -0.01,
		IntradayRun:      6,
		MinBars:          22,
		MaxSignals:       12,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BreakoutLookback <= 0 {
		c.BreakoutLookback = def.BreakoutLookback
	}
	if c.SMAWindow <= 0 {
		c.SMAWindow = def.SMAWindow
	}
	if c.PullbackReturn == 0 {
		c.PullbackReturn = def.PullbackReturn
	}
	if c.IntradayRun <= 1 {
		c.IntradayRun = def.IntradayRun
	}
	// daily rules need the lookback plus the current and previous bar
	if c.MinBars < max(c.BreakoutLookback, c.SMAWindow)+1 {
		c.MinBars = max(def.MinBars, max(c.BreakoutLookback, c.SMAWindow)+2)
	}
	if c.MaxSignals <= 0 {
		c.MaxSignals = def.MaxSignals
	}
	return c
}

// Input carries one symbol's bars, oldest first. Err marks a failed history fetch.
type Input struct {
	Symbol   string
	Daily    []models.Bar
	Intraday []models.Bar
	Err      error
}

type Result struct {
	Signals []models.PatternSignal
	Errors  int
	Skipped int
}

// Scanner classifies recent bars into pattern signals. It holds no state.
type Scanner struct {
	cfg Config
}

func New(cfg Config) *Scanner {
	return &Scanner{cfg: cfg.withDefaults()}
}

func (s *Scanner) Config() Config { return s.cfg }

// Scan evaluates every input in order. Failed inputs are counted and skipped;
// inputs without enough daily or intraday bars are skipped. Output is capped at MaxSignals.
func (s *Scanner) Scan(inputs []Input) Result {
	res := Result{Signals: make([]models.PatternSignal, 0)}
	for _, in := range inputs {
		if in.Err != nil {
			res.Errors++
			continue
		}
		sigs, ok := s.scanSymbol(in)
		if !ok {
			res.Skipped++
			continue
		}
		res.Signals = append(res.Signals, sigs...)
		if len(res.Signals) >= s.cfg.MaxSignals {
			res.Signals = res.Signals[:s.cfg.MaxSignals]
			break
		}
	}
	return res
}

func (s *Scanner) scanSymbol(in Input) ([]models.PatternSignal, bool) {
	hasDaily := len(in.Daily) >= s.cfg.MinBars
	hasIntraday := len(in.Intraday) >= s.cfg.IntradayRun
	if !hasDaily && !hasIntraday {
		return nil, false
	}

	var out []models.PatternSignal
	emit := func(typ string, conf float64) {
		out = append(out, models.PatternSignal{Symbol: in.Symbol, Type: typ, Confidence: conf})
	}

	breakout := false
	if hasDaily {
		breakout = Breakout(in.Daily, s.cfg.BreakoutLookback)
		if breakout {
			emit(TypeBreakout, ConfidenceBreakout)
		}
		if InsideDay(in.Daily) {
			emit(TypeInsideDay, ConfidenceInsideDay)
		}
		if Pullback(in.Daily, s.cfg.SMAWindow, s.cfg.PullbackReturn) {
			emit(TypePullback, ConfidencePullback)
		}
	}
	if hasIntraday && NonDecreasing(in.Intraday, s.cfg.IntradayRun) {
		emit(TypeIntradayUp, ConfidenceIntradayUp)
		if breakout {
			emit(TypeBreakoutIntradayUp, ConfidenceBreakoutIntradayUp)
		}
	}
	return out, true
}

// Breakout reports whether the last close is at or above the highest high of
// the n bars before it.
func Breakout(bars []models.Bar, n int) bool {
	if n <= 0 || len(bars) < n+1 {
		return false
	}
	hi := math.Inf(-1)
	for _, b := range bars[len(bars)-n-1 : len(bars)-1] {
		hi = math.Max(hi, b.High)
	}
	return bars[len(bars)-1].Close >= hi
}

// InsideDay reports whether the last bar's range sits strictly inside the previous bar's.
func InsideDay(bars []models.Bar) bool {
	if len(bars) < 2 {
		return false
	}
	last, prev := bars[len(bars)-1], bars[len(bars)-2]
	return last.High < prev.High && last.Low > prev.Low
}

// Pullback reports a close above its n-bar SMA after a one-bar return below minReturn.
func Pullback(bars []models.Bar, n int, minReturn float64) bool {
	if n <= 0 || len(bars) < max(n, 2) {
		return false
	}
	var sum float64
	for _, b := range bars[len(bars)-n:] {
		sum += b.Close
	}
	sma := sum / float64(n)
	last, prev := bars[len(bars)-1], bars[len(bars)-2]
	if prev.Close <= 0 {
		return false
	}
	return last.Close > sma && last.Close/prev.Close-1 < minReturn
}

// NonDecreasing reports whether the last k closes never fall.
func NonDecreasing(bars []models.Bar, k int) bool {
	if k < 2 || len(bars) < k {
		return false
	}
	run := bars[len(bars)-k:]
	for i := 1; i < len(run); i++ {
		if run[i].Close < run[i-1].Close {
			return false
		}
	}
	return true
}
