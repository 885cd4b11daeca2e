package repository

// Timeframe is an insights resolution token.
type Timeframe string

const (
	TF1m     Timeframe = "1m"
	TF5m     Timeframe = "5m"
	TF15m    Timeframe = "15m"
	TF30m    Timeframe = "30m"
	TFHourly Timeframe = "hourly"
	TFDaily  Timeframe = "daily"
	TFWeekly Timeframe = "weekly"
)

// Timeframes lists every accepted token in ascending resolution.
var Timeframes = []Timeframe{TF1m, TF5m, TF15m, TF30m, TFHourly, TFDaily, TFWeekly}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF30m, TFHourly, TFDaily, TFWeekly:
		return true
	default:
		return false
	}
}

// IsIntraday reports whether bars for tf come from the intraday history.
func (tf Timeframe) IsIntraday() bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF30m, TFHourly:
		return true
	default:
		return false
	}
}

// SummaryDefault is the fallback timeframe for summary queries.
func SummaryDefault() Timeframe { return TFDaily }

// PatternsDefault is the fallback timeframe for pattern queries.
func PatternsDefault() Timeframe { return TF5m }

// NormalizeTimeframe converts raw string to a valid timeframe, or def.
func NormalizeTimeframe(s string, def Timeframe) Timeframe {
	if s == "" {
		return def
	}
	tf := Timeframe(s)
	switch s {
	case "1h", "60m":
		tf = TFHourly
	case "1d", "day":
		tf = TFDaily
	case "1w", "week":
		tf = TFWeekly
	}
	if IsValidTimeframe(tf) {
		return tf
	}
	return def
}
