package state

import (
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
)

const (
	DefaultRingCapacity = 2000
	DefaultIVHistoryCap = 252
)

// QuoteUpdate is a normalized quote. Nil PrevClose/Volume keep the stored values.
type QuoteUpdate struct {
	Symbol       string
	Last         float64
	PrevClose    *float64
	Volume       *float64
	UpVolDelta   float64
	DownVolDelta float64
	Timestamp    time.Time
}

// Snapshot is a point-in-time copy of the store. Each collection is copied under
// its own lock; there is no atomicity across collections.
type Snapshot struct {
	Ticks     map[string]models.Tick
	IV        map[string]models.IVRecord
	OrderFlow []models.OrderFlowPrint
	News      []models.NewsScore
	DarkPool  []models.DarkPoolPrint
	Now       time.Time
}

// Stats reports collection sizes.
type Stats struct {
	Symbols   int `json:"symbols"`
	IVSymbols int `json:"iv_symbols"`
	OrderFlow int `json:"order_flow"`
	News      int `json:"news"`
	DarkPool  int `json:"dark_pool"`
}

// Store holds the latest tick per symbol, IV history per symbol and the
// order-flow, news and dark-pool rings. It performs no validation.
type Store struct {
	ticksMu sync.RWMutex
	ticks   map[string]models.Tick

	ivMu       sync.RWMutex
	iv         map[string]models.IVRecord
	historyCap int

	orderFlow *Ring[models.OrderFlowPrint]
	news      *Ring[models.NewsScore]
	darkPool  *Ring[models.DarkPoolPrint]

	now func() time.Time
}

type Option func(*Store)

// WithRingCapacity sets the capacity of the three event rings.
func WithRingCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.orderFlow = NewRing[models.OrderFlowPrint](n)
			s.news = NewRing[models.NewsScore](n)
			s.darkPool = NewRing[models.DarkPoolPrint](n)
		}
	}
}

// WithIVHistoryCap sets how many IV values are retained per symbol.
func WithIVHistoryCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyCap = n
		}
	}
}

// WithClock overrides the time source used for Snapshot.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		ticks:      make(map[string]models.Tick),
		iv:         make(map[string]models.IVRecord),
		historyCap: DefaultIVHistoryCap,
		orderFlow:  NewRing[models.OrderFlowPrint](DefaultRingCapacity),
		news:       NewRing[models.NewsScore](DefaultRingCapacity),
		darkPool:   NewRing[models.DarkPoolPrint](DefaultRingCapacity),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyQuote updates or creates the tick for u.Symbol. On the first update a
// missing PrevClose defaults to Last. Up/down volume deltas accumulate.
func (s *Store) ApplyQuote(u QuoteUpdate) models.Tick {
	s.ticksMu.Lock()
	defer s.ticksMu.Unlock()

	cur, ok := s.ticks[u.Symbol]
	if !ok {
		cur = models.Tick{Symbol: u.Symbol, PrevClose: u.Last}
	}
	cur.Last = u.Last
	if u.PrevClose != nil {
		cur.PrevClose = *u.PrevClose
	}
	if u.Volume != nil {
		cur.Volume = *u.Volume
	}
	cur.UpVolume += u.UpVolDelta
	cur.DownVolume += u.DownVolDelta
	cur.Timestamp = u.Timestamp
	s.ticks[u.Symbol] = cur
	return cur
}

// ApplyIV appends iv to the symbol's history, trimming the oldest values past the cap.
func (s *Store) ApplyIV(symbol string, iv float64, ts time.Time) models.IVRecord {
	s.ivMu.Lock()
	defer s.ivMu.Unlock()

	prev := s.iv[symbol].History
	start := 0
	if len(prev)+1 > s.historyCap {
		start = len(prev) + 1 - s.historyCap
	}
	// new slice every time so records already returned stay unchanged
	hist := make([]float64, 0, len(prev)-start+1)
	hist = append(hist, prev[start:]...)
	hist = append(hist, iv)

	rec := models.IVRecord{Symbol: symbol, IV: iv, History: hist, Timestamp: ts}
	s.iv[symbol] = rec
	return rec
}

func (s *Store) AppendOrderFlow(p models.OrderFlowPrint) { s.orderFlow.Push(p) }

func (s *Store) AppendNews(n models.NewsScore) { s.news.Push(n) }

func (s *Store) AppendDarkPool(p models.DarkPoolPrint) { s.darkPool.Push(p) }

// Tick returns the latest tick for symbol.
func (s *Store) Tick(symbol string) (models.Tick, bool) {
	s.ticksMu.RLock()
	defer s.ticksMu.RUnlock()
	t, ok := s.ticks[symbol]
	return t, ok
}

// Snapshot copies every collection, IV histories included. Later writes never
// mutate the result and callers may modify it freely.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{Now: s.now()}

	s.ticksMu.RLock()
	snap.Ticks = make(map[string]models.Tick, len(s.ticks))
	for k, v := range s.ticks {
		snap.Ticks[k] = v
	}
	s.ticksMu.RUnlock()

	s.ivMu.RLock()
	snap.IV = make(map[string]models.IVRecord, len(s.iv))
	for k, v := range s.iv {
		v.History = append([]float64(nil), v.History...)
		snap.IV[k] = v
	}
	s.ivMu.RUnlock()

	snap.OrderFlow = s.orderFlow.Items()
	snap.News = s.news.Items()
	snap.DarkPool = s.darkPool.Items()
	return snap
}

func (s *Store) Stats() Stats {
	s.ticksMu.RLock()
	symbols := len(s.ticks)
	s.ticksMu.RUnlock()

	s.ivMu.RLock()
	ivSymbols := len(s.iv)
	s.ivMu.RUnlock()

	return Stats{
		Symbols:   symbols,
		IVSymbols: ivSymbols,
		OrderFlow: s.orderFlow.Len(),
		News:      s.news.Len(),
		DarkPool:  s.darkPool.Len(),
	}
}
