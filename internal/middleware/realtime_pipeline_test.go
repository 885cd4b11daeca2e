package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/metrics"
)

type recordingProc struct {
	mu     sync.Mutex
	trades []models.Trade
	fail   int
}

func (p *recordingProc) Process(_ context.Context, t *models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return errors.New("downstream busy")
	}
	p.trades = append(p.trades, *t)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.trades)
}

func trade(sym string, price, vol float64) *models.Trade {
	return &models.Trade{Symbol: sym, Price: price, Volume: vol, Timestamp: time.Unix(1767225600, 0)}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	p := NewRealtimePipeline(&recordingProc{}, metrics.Nop{})
	bad := []*models.Trade{
		nil,
		{Price: 1, Timestamp: time.Now()},
		{Symbol: "SPY", Price: 1},
		{Symbol: "SPY", Price: -1, Timestamp: time.Now()},
	}
	for i, tr := range bad {
		if err := p.Process(context.Background(), tr); !errors.Is(err, ErrInvalidTrade) {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}
}

func TestPipelineCoalescesThrottledTrades(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMinInterval(time.Hour))
	ctx := context.Background()

	for _, tr := range []*models.Trade{trade("SPY", 500, 10), trade("SPY", 501, 5), trade("SPY", 502, 7), trade("QQQ", 400, 1)} {
		if err := p.Process(ctx, tr); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if proc.count() != 2 {
		t.Fatalf("forwarded = %d, want first SPY and first QQQ", proc.count())
	}

	p.mu.Lock()
	pending := p.pending["SPY"]
	p.mu.Unlock()
	if pending == nil || pending.Price != 502 || pending.Volume != 12 {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestPipelineNoThrottle(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMinInterval(0))
	for i := 0; i < 5; i++ {
		_ = p.Process(context.Background(), trade("SPY", 500, 1))
	}
	if proc.count() != 5 {
		t.Fatalf("forwarded = %d", proc.count())
	}
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	proc := &recordingProc{fail: 1}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMinInterval(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Process(ctx, trade("SPY", 500, 1)); err == nil {
		t.Fatalf("expected downstream error")
	}
	if p.Buffered() != 1 {
		t.Fatalf("buffered = %d", p.Buffered())
	}
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(time.Second)
	for proc.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if proc.count() != 1 {
		t.Fatalf("buffered trade not retried")
	}
}
