package tradier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	xhttp "MarketPulse/pkg/http"
	"MarketPulse/pkg/logger"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
	sessionMinutes = 390
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client reads daily history, intraday time-and-sales and the market clock
// from the Tradier REST API.
type Client struct {
	http *xhttp.Client
	log  *logger.Logger
	loc  *time.Location
	now  func() time.Time
}

type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(cfg Config, log *logger.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*3600)
	}
	c := &Client{
		http: xhttp.NewClient(
			xhttp.WithTimeout(cfg.Timeout),
			xhttp.WithBaseURL(cfg.BaseURL),
			xhttp.WithHeader("Authorization", "Bearer "+cfg.Token),
			xhttp.WithHeader("Accept", "application/json"),
		),
		log: log,
		loc: loc,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type historyDay struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Empty collections come back as {"history": "null"}.
type historyResponse struct {
	History json.RawMessage `json:"history"`
}

type historyBody struct {
	Day json.RawMessage `json:"day"`
}

// DailyBars returns up to n daily bars, oldest first.
func (c *Client) DailyBars(ctx context.Context, symbol string, n int) ([]models.Bar, error) {
	if n <= 0 {
		return nil, nil
	}
	end := c.now().In(c.loc)
	// calendar days covering n sessions plus holidays
	start := end.AddDate(0, 0, -(n*7/5 + 10))

	var resp historyResponse
	if err := c.get(ctx, "markets/history", map[string][]string{
		"symbol":   {symbol},
		"interval": {"daily"},
		"start":    {start.Format(dateLayout)},
		"end":      {end.Format(dateLayout)},
	}, &resp); err != nil {
		return nil, fmt.Errorf("tradier history %s: %w", symbol, err)
	}

	var body historyBody
	if err := unwrap(resp.History, &body); err != nil {
		return nil, fmt.Errorf("tradier history %s: %w", symbol, err)
	}
	days, err := oneOrMany[historyDay](body.Day)
	if err != nil {
		return nil, fmt.Errorf("tradier history %s: %w", symbol, err)
	}
	bars := make([]models.Bar, 0, len(days))
	for _, d := range days {
		ts, err := time.ParseInLocation(dateLayout, d.Date, c.loc)
		if err != nil {
			continue
		}
		bars = append(bars, models.Bar{Time: ts, Symbol: symbol, Open: d.Open, High: d.High, Low: d.Low, Close: d.Close, Volume: d.Volume})
	}
	return lastN(bars, n), nil
}

type salesPoint struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type timesalesResponse struct {
	Series json.RawMessage `json:"series"`
}

type seriesBody struct {
	Data json.RawMessage `json:"data"`
}

// IntradayBars returns up to n bars at tf, oldest first. 30m and hourly bars
// are resampled from 15min time and sales.
func (c *Client) IntradayBars(ctx context.Context, symbol string, tf domrepo.Timeframe, n int) ([]models.Bar, error) {
	interval, group, minutes, err := intervalFor(tf)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	end := c.now().In(c.loc)
	sessions := (n*minutes)/sessionMinutes + 1
	start := end.AddDate(0, 0, -(sessions*7/5 + 3))

	var resp timesalesResponse
	if err := c.get(ctx, "markets/timesales", map[string][]string{
		"symbol":         {symbol},
		"interval":       {interval},
		"start":          {start.Format(dateTimeLayout)},
		"end":            {end.Format(dateTimeLayout)},
		"session_filter": {"open"},
	}, &resp); err != nil {
		return nil, fmt.Errorf("tradier timesales %s: %w", symbol, err)
	}

	var body seriesBody
	if err := unwrap(resp.Series, &body); err != nil {
		return nil, fmt.Errorf("tradier timesales %s: %w", symbol, err)
	}
	points, err := oneOrMany[salesPoint](body.Data)
	if err != nil {
		return nil, fmt.Errorf("tradier timesales %s: %w", symbol, err)
	}
	bars := make([]models.Bar, 0, len(points))
	for _, p := range points {
		ts, err := time.ParseInLocation("2006-01-02T15:04:05", p.Time, c.loc)
		if err != nil {
			continue
		}
		bars = append(bars, models.Bar{Time: ts, Symbol: symbol, Open: p.Open, High: p.High, Low: p.Low, Close: p.Close, Volume: p.Volume})
	}
	if group > 1 {
		bars = resample(bars, time.Duration(minutes)*time.Minute)
	}
	return lastN(bars, n), nil
}

type clockResponse struct {
	Clock struct {
		State string `json:"state"`
	} `json:"clock"`
}

// Session returns the upper-cased clock state (OPEN, CLOSED, PREMARKET, POSTMARKET).
func (c *Client) Session(ctx context.Context) (string, error) {
	var resp clockResponse
	if err := c.get(ctx, "markets/clock", nil, &resp); err != nil {
		return "", fmt.Errorf("tradier clock: %w", err)
	}
	if resp.Clock.State == "" {
		return "", fmt.Errorf("tradier clock: empty state")
	}
	return strings.ToUpper(resp.Clock.State), nil
}

func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	start := time.Now()
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         path,
		QueryParams: query,
	}, dest)
	c.log.Debug("tradier request",
		logger.String("path", path),
		logger.Duration("took", time.Since(start)),
		logger.Bool("ok", err == nil),
	)
	return err
}

// intervalFor maps a timeframe onto a timesales interval and the number of
// source bars per output bar.
func intervalFor(tf domrepo.Timeframe) (interval string, group, minutes int, err error) {
	switch tf {
	case domrepo.TF1m:
		return "1min", 1, 1, nil
	case domrepo.TF5m:
		return "5min", 1, 5, nil
	case domrepo.TF15m:
		return "15min", 1, 15, nil
	case domrepo.TF30m:
		return "15min", 2, 30, nil
	case domrepo.TFHourly:
		return "15min", 4, 60, nil
	default:
		return "", 0, 0, fmt.Errorf("tradier: %q is not an intraday timeframe", tf)
	}
}

// resample merges bars into buckets of width d aligned to the hour.
func resample(bars []models.Bar, d time.Duration) []models.Bar {
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		bucket := b.Time.Truncate(d)
		if n := len(out); n > 0 && out[n-1].Time.Equal(bucket) {
			cur := &out[n-1]
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		b.Time = bucket
		out = append(out, b)
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`"null"`))
}

// unwrap decodes an envelope object, leaving dst untouched when it is null.
func unwrap(raw json.RawMessage, dst interface{}) error {
	if isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// oneOrMany decodes a Tradier collection, which is an array, a single object
// or the string "null" when empty.
func oneOrMany[T any](raw json.RawMessage) ([]T, error) {
	if isNull(raw) {
		return nil, nil
	}
	raw = bytes.TrimSpace(raw)
	if raw[0] == '[' {
		var many []T
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return many, nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return []T{one}, nil
}

func lastN(bars []models.Bar, n int) []models.Bar {
	if len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}

var (
	_ domrepo.BarSource   = (*Client)(nil)
	_ domrepo.MarketClock = (*Client)(nil)
)
