package models

import (
	"encoding/json"
	"math"
	"time"
)

// Data source markers carried in Meta.
const (
	DataSourceLive  = "live"
	DataSourceCache = "cache"
	DataSourceError = "error"
)

// Meta describes where and when an insights payload was produced.
type Meta struct {
	Session    string    `json:"session"`
	DataSource string    `json:"data_source"`
	Timeframe  string    `json:"tf,omitempty"`
	Timestamp  time.Time `json:"ts"`
	Error      string    `json:"error,omitempty"`
}

type Breadth struct {
	Advancers int `json:"advancers"`
	Decliners int `json:"decliners"`
	Unchanged int `json:"unchanged"`
}

type Volume struct {
	Total float64 `json:"total"`
	Up    float64 `json:"up"`
	Down  float64 `json:"down"`
}

type Trend struct {
	Bias     string  `json:"bias"`
	Strength float64 `json:"strength"`
}

type Vola struct {
	ATRPct *float64 `json:"atr_pct"`
	HV20   *float64 `json:"hv20"`
}

type SMAs struct {
	SMA20 *float64 `json:"sma20"`
	SMA50 *float64 `json:"sma50"`
}

// Summary is the breadth/volume/trend/IV payload for one timeframe.
type Summary struct {
	Timeframe string            `json:"timeframe"`
	UpdatedAt time.Time         `json:"updated_at"`
	Breadth   Breadth           `json:"breadth"`
	Volume    Volume            `json:"volume"`
	Thrust    float64           `json:"thrust"`
	Trend     Trend             `json:"trend"`
	IVRank    map[string]int    `json:"iv_rank"`
	TRIN      *float64          `json:"trin"`
	Vola      map[string]Vola   `json:"vola,omitempty"`
	SMAs      map[string]SMAs   `json:"smas,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Meta      Meta              `json:"meta"`
}

type NewsSentiment struct {
	Score  float64 `json:"score"`
	Sample int     `json:"sample"`
}

// UOAEntry is one symbol's call/put skew. Ratio is +Inf when only calls printed.
type UOAEntry struct {
	Symbol string
	Side   OptionSide
	Ratio  float64
	Call   float64
	Put    float64
	Note   string
}

// MarshalJSON encodes an infinite ratio as null with infinite=true.
func (u UOAEntry) MarshalJSON() ([]byte, error) {
	out := struct {
		Symbol   string     `json:"symbol"`
		Side     OptionSide `json:"side"`
		Ratio    *float64   `json:"ratio"`
		Infinite bool       `json:"infinite,omitempty"`
		Call     float64    `json:"call"`
		Put      float64    `json:"put"`
		Note     string     `json:"note"`
	}{Symbol: u.Symbol, Side: u.Side, Call: u.Call, Put: u.Put, Note: u.Note}
	if math.IsInf(u.Ratio, 1) {
		out.Infinite = true
	} else {
		r := u.Ratio
		out.Ratio = &r
	}
	return json.Marshal(out)
}

type Sentiment struct {
	PutCallVolRatio *float64        `json:"put_call_vol_ratio"`
	PutCallOIRatio  *float64        `json:"put_call_oi_ratio"`
	DarkPoolScore   *float64        `json:"dark_pool_score"`
	NewsSentiment   *NewsSentiment  `json:"news_sentiment"`
	OptionsUOA      []UOAEntry      `json:"options_uoa"`
	FlipZones       json.RawMessage `json:"flipZones,omitempty"`
	Meta            Meta            `json:"meta"`
}

type PatternSignal struct {
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

type Patterns struct {
	Timeframe string          `json:"timeframe"`
	Patterns  []PatternSignal `json:"patterns"`
	Errors    int             `json:"errors,omitempty"`
	Meta      Meta            `json:"meta"`
}

type AboveBelow struct {
	Above int `json:"above"`
	Below int `json:"below"`
}

// BreadthMA is the share of a universe trading at or above its moving average.
type BreadthMA struct {
	Universe int        `json:"universe"`
	MA       int        `json:"ma"`
	PctAbove float64    `json:"pct_above"`
	Counts   AboveBelow `json:"counts"`
	Errors   int        `json:"errors"`
	Meta     Meta       `json:"meta"`
}

// CachedInsight is one entry of the insights cache.
type CachedInsight struct {
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// CacheMeta lists what the insights cache currently holds.
type CacheMeta struct {
	LastUpdated *time.Time `json:"lastUpdated"`
	Available   []string   `json:"available"`
}

// Insight event types delivered by the fanout.
const (
	EventInsightsUpdate = "insights:update"
	EventSummary        = "summary"
	EventSentiment      = "sentiment"
	EventPatterns       = "patterns"
)

// InsightEvent is the push payload sent to subscribers.
type InsightEvent struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	TS      time.Time `json:"ts"`
	Payload any       `json:"payload"`
}
