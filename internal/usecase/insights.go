package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	domsvc "MarketPulse/internal/domain/service"
	"MarketPulse/internal/service/broadcast"
	insightscache "MarketPulse/internal/service/insights"
	"MarketPulse/internal/services/aggregation"
	"MarketPulse/internal/services/patterns"
	"MarketPulse/internal/state"
	"MarketPulse/pkg/logger"
)

const (
	recomputeLockKey = "insights:recompute"
	sessionUnknown   = "UNKNOWN"
	fetchParallelism = 8
	volaBars         = 120
	intradayBars     = 60
)

var ErrNoBarSource = errors.New("no bar source configured")

// Locker is the distributed lock used to elect one recomputing replica per interval.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type InsightsConfig struct {
	BreadthUniverse   []string
	IVUniverse        []string
	SentimentUniverse []string
	PatternUniverse   []string
	VolaUnderlyings   []string
	SummaryTimeframes []domrepo.Timeframe
	PatternTimeframes []domrepo.Timeframe
	UOATopN           int
	Trend             aggregation.TrendPolicy
	Timeout           time.Duration
	LockTTL           time.Duration
}

// RecomputeResult reports one Recompute run.
type RecomputeResult struct {
	Skipped bool
	Keys    []string
	Meta    models.CacheMeta
}

// InsightsUseCase computes insights from the state store and optional bar
// history, maintains the insights cache and notifies subscribers.
type InsightsUseCase struct {
	store    *state.Store
	scanner  *patterns.Scanner
	bars     domrepo.BarSource
	clock    domrepo.MarketClock
	cache    domsvc.InsightsStore
	notifier domsvc.Notifier
	locker   Locker
	metrics  domrepo.Metrics
	log      *logger.Logger
	cfg      InsightsConfig
	now      func() time.Time
}

type InsightsOption func(*InsightsUseCase)

// WithBarSource enables bar-driven blocks (vola, smas, patterns, breadth_ma).
func WithBarSource(b domrepo.BarSource) InsightsOption {
	return func(uc *InsightsUseCase) { uc.bars = b }
}

func WithMarketClock(c domrepo.MarketClock) InsightsOption {
	return func(uc *InsightsUseCase) { uc.clock = c }
}

// WithLocker guards Recompute with a distributed lock.
func WithLocker(l Locker) InsightsOption {
	return func(uc *InsightsUseCase) { uc.locker = l }
}

func WithInsightsClock(now func() time.Time) InsightsOption {
	return func(uc *InsightsUseCase) { uc.now = now }
}

func NewInsightsUseCase(
	store *state.Store,
	scanner *patterns.Scanner,
	cache domsvc.InsightsStore,
	notifier domsvc.Notifier,
	metrics domrepo.Metrics,
	log *logger.Logger,
	cfg InsightsConfig,
	opts ...InsightsOption,
) *InsightsUseCase {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Second
	}
	if cfg.UOATopN <= 0 {
		cfg.UOATopN = aggregation.DefaultUOATopN
	}
	if len(cfg.SummaryTimeframes) == 0 {
		cfg.SummaryTimeframes = []domrepo.Timeframe{domrepo.SummaryDefault()}
	}
	if len(cfg.PatternTimeframes) == 0 {
		cfg.PatternTimeframes = []domrepo.Timeframe{domrepo.PatternsDefault()}
	}
	uc := &InsightsUseCase{
		store:    store,
		scanner:  scanner,
		cache:    cache,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Summary computes breadth, volume, trend, TRIN and IV rank from live state,
// plus per-underlying volatility and SMAs when a bar source is configured.
func (uc *InsightsUseCase) Summary(ctx context.Context, tfRaw string) (*models.Summary, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("insights_summary", time.Since(start).Seconds()) }()

	tf := domrepo.NormalizeTimeframe(tfRaw, domrepo.SummaryDefault())
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	snap := uc.store.Snapshot()
	sum := aggregation.Summarize(snap, uc.cfg.Trend, uc.cfg.IVUniverse)
	sum.Timeframe = string(tf)
	sum.Meta = uc.meta(ctx, string(tf))

	if uc.bars == nil || len(uc.cfg.VolaUnderlyings) == 0 {
		return &sum, nil
	}

	results := uc.fetchBars(ctx, uc.cfg.VolaUnderlyings, tf, volaBars)
	bpy := aggregation.BarsPerYear(domrepo.TFDaily)
	if tf.IsIntraday() {
		bpy = aggregation.BarsPerYear(tf)
	}
	sum.Vola = make(map[string]models.Vola, len(results))
	sum.SMAs = make(map[string]models.SMAs, len(results))
	sum.Errors = map[string]string{}
	for _, r := range results {
		if r.err != nil {
			sum.Errors[r.symbol] = r.err.Error()
			continue
		}
		cs := aggregation.ComputeCoreStats(r.bars, bpy)
		if cs == nil {
			sum.Errors[r.symbol] = fmt.Sprintf("insufficient history: %d bars", len(r.bars))
			continue
		}
		sum.Vola[r.symbol] = models.Vola{ATRPct: cs.ATRPct, HV20: cs.HV20}
		sum.SMAs[r.symbol] = models.SMAs{SMA20: cs.SMA20, SMA50: cs.SMA50}
	}
	if len(sum.Errors) == len(results) {
		uc.degrade(&sum.Meta, "bars unavailable")
	}
	if len(sum.Errors) == 0 {
		sum.Errors = nil
	}
	return &sum, nil
}

// Sentiment computes put/call ratios, dark-pool score, news sentiment and the
// UOA ranking from live state. Flip zones come from the insights cache.
func (uc *InsightsUseCase) Sentiment(ctx context.Context) (*models.Sentiment, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("insights_sentiment", time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	snap := uc.store.Snapshot()
	snap.OrderFlow = aggregation.FilterOrderFlow(snap.OrderFlow, uc.cfg.SentimentUniverse)
	s := aggregation.Sentiment(snap, uc.cfg.UOATopN)
	if e, ok := uc.cache.Get(insightscache.KeyFlipZones); ok {
		s.FlipZones = e.Payload
	}
	s.Meta = uc.meta(ctx, "")
	return &s, nil
}

// Patterns scans the pattern universe. Without a bar source the result is empty
// and marked degraded.
func (uc *InsightsUseCase) Patterns(ctx context.Context, tfRaw string) (*models.Patterns, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("insights_patterns", time.Since(start).Seconds()) }()

	tf := domrepo.NormalizeTimeframe(tfRaw, domrepo.PatternsDefault())
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	out := &models.Patterns{
		Timeframe: string(tf),
		Patterns:  []models.PatternSignal{},
		Meta:      uc.meta(ctx, string(tf)),
	}
	if uc.bars == nil {
		uc.degrade(&out.Meta, ErrNoBarSource.Error())
		return out, nil
	}

	cfg := uc.scanner.Config()
	daily := uc.fetchBars(ctx, uc.cfg.PatternUniverse, domrepo.TFDaily, cfg.MinBars+5)
	var intraday []barResult
	if tf.IsIntraday() {
		intraday = uc.fetchBars(ctx, uc.cfg.PatternUniverse, tf, max(cfg.IntradayRun, intradayBars))
	}

	inputs := make([]patterns.Input, len(daily))
	for i, d := range daily {
		in := patterns.Input{Symbol: d.symbol, Daily: d.bars, Err: d.err}
		if intraday != nil {
			if intraday[i].err != nil && in.Err == nil {
				in.Err = intraday[i].err
			}
			in.Intraday = intraday[i].bars
		}
		inputs[i] = in
	}

	res := uc.scanner.Scan(inputs)
	out.Patterns = res.Signals
	out.Errors = res.Errors
	if len(inputs) > 0 && res.Errors == len(inputs) {
		uc.degrade(&out.Meta, "bars unavailable")
	}
	return out, nil
}

// BreadthMA reports the share of the breadth universe closing at or above SMA(ma).
func (uc *InsightsUseCase) BreadthMA(ctx context.Context, ma int) (*models.BreadthMA, error) {
	if ma < 5 || ma > 200 {
		return nil, fmt.Errorf("%w: ma must be between 5 and 200", ErrValidation)
	}
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("insights_breadth_ma", time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	out := &models.BreadthMA{
		Universe: len(uc.cfg.BreadthUniverse),
		MA:       ma,
		Meta:     uc.meta(ctx, string(domrepo.TFDaily)),
	}
	if uc.bars == nil {
		uc.degrade(&out.Meta, ErrNoBarSource.Error())
		return out, nil
	}

	bars := make(map[string][]models.Bar, len(uc.cfg.BreadthUniverse))
	for _, r := range uc.fetchBars(ctx, uc.cfg.BreadthUniverse, domrepo.TFDaily, ma+5) {
		if r.err != nil {
			out.Errors++
			continue
		}
		bars[r.symbol] = r.bars
	}
	st := aggregation.PctAboveMA(bars, ma)
	out.PctAbove = st.PctAbove
	out.Counts = models.AboveBelow{Above: st.Above, Below: st.Below}
	if out.Universe > 0 && out.Errors == out.Universe {
		uc.degrade(&out.Meta, "bars unavailable")
	}
	return out, nil
}

// Recompute refreshes every configured summary and pattern timeframe plus
// sentiment, writes them to the insights cache and notifies subscribers.
// With a locker, only the replica holding the lock for this interval recomputes.
func (uc *InsightsUseCase) Recompute(ctx context.Context) (RecomputeResult, error) {
	if uc.locker != nil {
		ok, err := uc.locker.TryLock(ctx, recomputeLockKey, uc.cfg.LockTTL)
		switch {
		case err != nil:
			uc.log.Warn("recompute lock unavailable, computing locally", logger.Error(err))
		case !ok:
			return RecomputeResult{Skipped: true}, nil
		}
	}

	start := time.Now()
	partial := make(map[string]json.RawMessage)
	var events []models.InsightEvent

	for _, tf := range uc.cfg.SummaryTimeframes {
		sum, err := uc.Summary(ctx, string(tf))
		if err != nil {
			return RecomputeResult{}, fmt.Errorf("summary %s: %w", tf, err)
		}
		if err := put(partial, insightscache.SummaryKey(tf), sum); err != nil {
			return RecomputeResult{}, err
		}
		events = append(events, broadcast.NewEvent(models.EventSummary, sum, uc.now()))
	}

	sent, err := uc.Sentiment(ctx)
	if err != nil {
		return RecomputeResult{}, fmt.Errorf("sentiment: %w", err)
	}
	// flip zones are owned by ETL pushes
	sent.FlipZones = nil
	if err := put(partial, insightscache.KeySentiment, sent); err != nil {
		return RecomputeResult{}, err
	}
	events = append(events, broadcast.NewEvent(models.EventSentiment, sent, uc.now()))

	if uc.bars != nil {
		for _, tf := range uc.cfg.PatternTimeframes {
			p, err := uc.Patterns(ctx, string(tf))
			if err != nil {
				return RecomputeResult{}, fmt.Errorf("patterns %s: %w", tf, err)
			}
			if err := put(partial, insightscache.PatternsKey(tf), p); err != nil {
				return RecomputeResult{}, err
			}
			events = append(events, broadcast.NewEvent(models.EventPatterns, p, uc.now()))
		}
	}

	meta, err := uc.cache.Set(ctx, partial)
	if err != nil {
		return RecomputeResult{}, fmt.Errorf("cache set: %w", err)
	}
	for _, evt := range events {
		uc.notifier.Notify(evt)
	}
	uc.metrics.RecordLatency("insights_recompute", time.Since(start).Seconds())

	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	return RecomputeResult{Keys: keys, Meta: meta}, nil
}

// Push stores an externally computed partial snapshot and broadcasts it.
func (uc *InsightsUseCase) Push(ctx context.Context, partial map[string]json.RawMessage) (models.CacheMeta, error) {
	meta, err := uc.cache.Set(ctx, partial)
	if err != nil {
		return meta, err
	}
	n := uc.notifier.Notify(broadcast.NewEvent(models.EventInsightsUpdate, partial, uc.now()))
	uc.log.Info("insights pushed",
		logger.Strings("available", meta.Available),
		logger.Int("subscribers", n),
	)
	return meta, nil
}

// Announce broadcasts entries loaded from the shared mirror as one
// insights:update keyed like an ETL push.
func (uc *InsightsUseCase) Announce(entries []models.CachedInsight) int {
	if len(entries) == 0 {
		return 0
	}
	payload := make(map[string]json.RawMessage, len(entries))
	for _, e := range entries {
		payload[e.Key] = e.Payload
	}
	return uc.notifier.Notify(broadcast.NewEvent(models.EventInsightsUpdate, payload, uc.now()))
}

// Cached returns a cached entry by key (legacy key spellings accepted).
func (uc *InsightsUseCase) Cached(key string) (models.CachedInsight, bool) {
	return uc.cache.Get(insightscache.NormalizeKey(key))
}

func (uc *InsightsUseCase) CacheMeta() models.CacheMeta {
	return uc.cache.Meta()
}

func (uc *InsightsUseCase) meta(ctx context.Context, tf string) models.Meta {
	m := models.Meta{
		Session:    sessionUnknown,
		DataSource: models.DataSourceLive,
		Timeframe:  tf,
		Timestamp:  uc.now(),
	}
	if uc.clock == nil {
		return m
	}
	s, err := uc.clock.Session(ctx)
	if err != nil {
		uc.metrics.RecordError("market_clock")
		uc.degrade(&m, "clock: "+err.Error())
		return m
	}
	m.Session = s
	return m
}

func (uc *InsightsUseCase) degrade(m *models.Meta, reason string) {
	m.DataSource = models.DataSourceError
	if m.Error == "" {
		m.Error = reason
	} else {
		m.Error += "; " + reason
	}
}

type barResult struct {
	symbol string
	bars   []models.Bar
	err    error
}

// fetchBars loads bars for every symbol concurrently. Results keep the order of symbols.
func (uc *InsightsUseCase) fetchBars(ctx context.Context, symbols []string, tf domrepo.Timeframe, n int) []barResult {
	out := make([]barResult, len(symbols))
	sem := make(chan struct{}, fetchParallelism)
	var wg sync.WaitGroup

	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				out[i] = barResult{symbol: sym, err: ctx.Err()}
				return
			}
			var (
				bars []models.Bar
				err  error
			)
			if tf.IsIntraday() {
				bars, err = uc.bars.IntradayBars(ctx, sym, tf, n)
			} else {
				bars, err = uc.bars.DailyBars(ctx, sym, n)
			}
			if err != nil {
				uc.metrics.RecordError("bars")
				uc.log.Debug("bar fetch failed", logger.String("symbol", sym), logger.Error(err))
			}
			out[i] = barResult{symbol: sym, bars: bars, err: err}
		}(i, sym)
	}
	wg.Wait()
	return out
}

func put(partial map[string]json.RawMessage, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	partial[key] = b
	return nil
}
