package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
)

var ErrInvalidTrade = errors.New("invalid trade")

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t *models.Trade) error
}

// RealtimePipeline sits between a trade stream and the quote collector.
// It validates trades, throttles each symbol to one forwarded trade per
// interval (coalescing the rest), and buffers trades the downstream rejected.
type RealtimePipeline struct {
	proc        Proc
	metrics     domrepo.Metrics
	minInterval time.Duration
	bufSize     int
	bufCh       chan *models.Trade

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	lastSeen map[string]time.Time
	pending  map[string]*models.Trade
}

type PipelineOption func(*RealtimePipeline)

// WithMinInterval forwards at most one trade per symbol per d. Zero disables throttling.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *RealtimePipeline) {
		if d >= 0 {
			p.minInterval = d
		}
	}
}

// WithBufferSize sets the retry buffer size used when downstream fails.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:        proc,
		metrics:     metrics,
		minInterval: 250 * time.Millisecond,
		bufSize:     1000,
		stopCh:      make(chan struct{}),
		lastSeen:    make(map[string]time.Time),
		pending:     make(map[string]*models.Trade),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Trade, p.bufSize)
	return p
}

// Start launches background flushing of buffered trades.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stop := p.stopCh
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case t := <-p.bufCh:
				p.metrics.RecordBufferSize("pipeline", len(p.bufCh))
				if err := p.proc.Process(ctx, t); err != nil {
					p.metrics.RecordError("pipeline_flush")
					if backoff < 2*time.Second {
						backoff *= 2
					}
					select {
					case <-time.After(backoff):
					case <-ctx.Done():
						return
					case <-stop:
						return
					}
					select {
					case p.bufCh <- t:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

// Stop stops the background flushing. The pipeline can be started again.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
	p.stopCh = make(chan struct{})
}

// Process validates, throttles and forwards a trade. Throttled trades are
// folded into the symbol's next forwarded trade (latest price, summed volume).
// Downstream failures are buffered for retry and reported.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.Trade) error {
	start := time.Now()
	if err := validateTrade(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	out, ok := p.admit(t, start)
	if !ok {
		return nil
	}

	if err := p.proc.Process(ctx, out); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- out:
			p.metrics.RecordBufferSize("pipeline", len(p.bufCh))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// Buffered reports the number of trades waiting for retry.
func (p *RealtimePipeline) Buffered() int { return len(p.bufCh) }

func validateTrade(t *models.Trade) error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: nil", ErrInvalidTrade)
	case t.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidTrade)
	case t.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidTrade)
	case math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || math.IsNaN(t.Volume) || math.IsInf(t.Volume, 0):
		return fmt.Errorf("%w: non-finite price/volume", ErrInvalidTrade)
	case t.Price < 0 || t.Volume < 0:
		return fmt.Errorf("%w: negative price/volume", ErrInvalidTrade)
	}
	return nil
}

// admit returns the trade to forward, or false when t was coalesced.
func (p *RealtimePipeline) admit(t *models.Trade, now time.Time) (*models.Trade, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev := p.pending[t.Symbol]; prev != nil {
		merged := *t
		merged.Volume += prev.Volume
		t = &merged
		delete(p.pending, t.Symbol)
	}
	if p.minInterval <= 0 {
		return t, true
	}
	last := p.lastSeen[t.Symbol]
	if !last.IsZero() && now.Sub(last) < p.minInterval {
		p.pending[t.Symbol] = t
		p.metrics.RecordError("pipeline_throttle")
		return nil, false
	}
	p.lastSeen[t.Symbol] = now
	return t, true
}
