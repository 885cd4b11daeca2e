package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"MarketPulse/pkg/util"
)

// EventKind tags an inbound event envelope.
type EventKind string

const (
	KindQuote     EventKind = "quote"
	KindIV        EventKind = "iv"
	KindOrderFlow EventKind = "order-flow"
	KindNews      EventKind = "news"
	KindDarkPool  EventKind = "dark-pool"
)

// Envelope is the wire form of one inbound event, shared by HTTP and Kafka.
type Envelope struct {
	Kind EventKind       `json:"kind" validate:"required"`
	Data json.RawMessage `json:"data" validate:"required"`
}

// EventTime accepts RFC3339 strings, unix seconds or unix milliseconds.
// The zero value means "not supplied".
type EventTime struct {
	time.Time
}

func (t *EventTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, ok := util.ParseTime(s); ok {
		t.Time = parsed
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		t.Time = util.UnixAuto(int64(f))
		return nil
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (t EventTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time)
}

type QuoteEvent struct {
	Symbol     string    `json:"symbol" validate:"required"`
	Last       *float64  `json:"last" validate:"required,finite,gte=0"`
	PrevClose  *float64  `json:"prevClose,omitempty" validate:"omitempty,finite,gte=0"`
	Volume     *float64  `json:"volume,omitempty" validate:"omitempty,finite,gte=0"`
	DeltaVolUp float64   `json:"deltaVolUp,omitempty" validate:"finite,gte=0"`
	DeltaVolDn float64   `json:"deltaVolDn,omitempty" validate:"finite,gte=0"`
	TS         EventTime `json:"ts"`
}

type IVEvent struct {
	Symbol string    `json:"symbol" validate:"required"`
	IV     *float64  `json:"iv" validate:"required,finite,gte=0"`
	TS     EventTime `json:"ts"`
}

type OrderFlowEvent struct {
	Symbol   string    `json:"symbol" validate:"required"`
	Side     string    `json:"side" validate:"required,oneof=CALL PUT"`
	Size     *float64  `json:"size,omitempty" default:"1" validate:"omitempty,finite,gte=0"`
	Notional float64   `json:"notional,omitempty" validate:"finite,gte=0"`
	OIDelta  float64   `json:"oiDelta,omitempty" validate:"finite"`
	TS       EventTime `json:"ts"`
}

type NewsEvent struct {
	Symbol string    `json:"symbol,omitempty"`
	Score  *float64  `json:"score" validate:"required,finite,gte=-1,lte=1"`
	TS     EventTime `json:"ts"`
}

type DarkPoolEvent struct {
	Symbol   string    `json:"symbol" validate:"required"`
	Notional *float64  `json:"notional" validate:"required,finite,gte=0"`
	Side     string    `json:"side,omitempty" default:"BUY" validate:"oneof=BUY SELL"`
	TS       EventTime `json:"ts"`
}
