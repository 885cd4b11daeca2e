package models

import "time"

// OptionSide is the side of an options order-flow print.
type OptionSide string

const (
	SideCall OptionSide = "CALL"
	SidePut  OptionSide = "PUT"
)

// TradeSide is the aggressor side of a dark-pool print.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Tick is the latest quote state for a symbol. UpVolume and DownVolume are
// cumulative counters, never reset by a quote update.
type Tick struct {
	Symbol     string
	Last       float64
	PrevClose  float64
	Volume     float64
	UpVolume   float64
	DownVolume float64
	Timestamp  time.Time
}

// Change returns last minus previous close.
func (t Tick) Change() float64 { return t.Last - t.PrevClose }

// IVRecord holds the current implied volatility and its trailing history, oldest first.
type IVRecord struct {
	Symbol    string
	IV        float64
	History   []float64
	Timestamp time.Time
}

type OrderFlowPrint struct {
	Symbol    string
	Side      OptionSide
	Size      float64
	Notional  float64
	OIDelta   float64 // open-interest delta, zero when the feed does not carry it
	Timestamp time.Time
}

// NewsScore is a sentiment score in [-1, 1]; Symbol is empty for market-wide news.
type NewsScore struct {
	Symbol    string
	Score     float64
	Timestamp time.Time
}

type DarkPoolPrint struct {
	Symbol    string
	Notional  float64
	Side      TradeSide
	Timestamp time.Time
}

// Bar is an OHLCV record supplied by a history provider.
type Bar struct {
	Time   time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Trade is a single print from a realtime trade stream.
type Trade struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}
