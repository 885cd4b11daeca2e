package usecase

import (
	"context"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/state"
	"MarketPulse/pkg/logger"
)

// Hydrator reloads cached insights from a shared mirror and returns the
// entries that changed locally.
type Hydrator interface {
	Hydrate(ctx context.Context) ([]models.CachedInsight, error)
}

// Scheduler runs Recompute on a fixed interval and, when enabled, shortly
// after ingested events (debounced). After every attempt it pulls entries
// other replicas wrote to the mirror and announces them to local subscribers.
type Scheduler struct {
	insights *InsightsUseCase
	store    *state.Store
	hydrator Hydrator
	metrics  domrepo.Metrics
	log      *logger.Logger

	interval time.Duration
	debounce time.Duration
	onIngest bool

	trigger  chan struct{}
	mu       sync.Mutex
	running  bool
	lastRun  time.Time
	lastKeys []string
}

type SchedulerOption func(*Scheduler)

// WithPushOnIngest schedules a recompute debounce after every applied event.
func WithPushOnIngest(debounce time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.onIngest = true
		if debounce > 0 {
			s.debounce = debounce
		}
	}
}

func WithHydrator(h Hydrator) SchedulerOption {
	return func(s *Scheduler) { s.hydrator = h }
}

func NewScheduler(insights *InsightsUseCase, store *state.Store, metrics domrepo.Metrics, log *logger.Logger, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s := &Scheduler{
		insights: insights,
		store:    store,
		metrics:  metrics,
		log:      log,
		interval: interval,
		debounce: time.Second,
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnApplied is the EventIngestor hook. It never blocks.
func (s *Scheduler) OnApplied(models.EventKind) {
	if s.onIngest {
		s.Trigger()
	}
}

// Trigger requests a debounced recompute. Requests coalesce.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// LastRun reports when the last non-skipped recompute finished and which keys it wrote.
func (s *Scheduler) LastRun() (time.Time, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, append([]string(nil), s.lastKeys...)
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(s.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	s.log.Info("insights scheduler started",
		logger.Duration("interval", s.interval),
		logger.Bool("push_on_ingest", s.onIngest),
	)
	s.run(ctx)

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			s.log.Info("insights scheduler stopped")
			return
		case <-ticker.C:
			s.run(ctx)
		case <-s.trigger:
			if !pending {
				pending = true
				debounce.Reset(s.debounce)
			}
		case <-debounce.C:
			pending = false
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	st := s.store.Stats()
	s.metrics.RecordBufferSize("order_flow", st.OrderFlow)
	s.metrics.RecordBufferSize("news", st.News)
	s.metrics.RecordBufferSize("dark_pool", st.DarkPool)
	s.metrics.RecordBufferSize("symbols", st.Symbols)

	res, err := s.insights.Recompute(ctx)
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		s.metrics.RecordError("recompute")
		s.log.Error("insights recompute failed", logger.Error(err))
	case res.Skipped:
		s.log.Debug("insights recompute skipped, lock held elsewhere")
	default:
		s.mu.Lock()
		s.lastRun = time.Now()
		s.lastKeys = res.Keys
		s.mu.Unlock()
		s.log.Debug("insights recomputed", logger.Strings("keys", res.Keys))
	}
	s.sync(ctx)
}

func (s *Scheduler) sync(ctx context.Context) {
	if s.hydrator == nil {
		return
	}
	loaded, err := s.hydrator.Hydrate(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.RecordError("hydrate")
			s.log.Warn("insights hydrate failed", logger.Error(err))
		}
		return
	}
	if len(loaded) > 0 {
		n := s.insights.Announce(loaded)
		s.log.Debug("mirrored insights announced", logger.Int("entries", len(loaded)), logger.Int("subscribers", n))
	}
}
