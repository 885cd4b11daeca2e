package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	insightscache "MarketPulse/internal/service/insights"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
)

type countingHydrator struct{ calls atomic.Int32 }

func (h *countingHydrator) Hydrate(context.Context) ([]models.CachedInsight, error) {
	h.calls.Add(1)
	return nil, errors.New("mirror offline")
}

func waitUntil(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", d)
}

func TestSchedulerRunsImmediatelyAndOnTicker(t *testing.T) {
	f := newFixture(t)
	h := &countingHydrator{}
	s := NewScheduler(f.uc, f.store, metrics.Nop{}, logger.NewNop(), 20*time.Millisecond, WithHydrator(h))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitUntil(t, time.Second, func() bool { return len(f.notifier.types()) >= 4 })
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("scheduler did not stop")
	}
	if h.calls.Load() < 1 {
		t.Fatalf("hydrate never called")
	}
	last, keys := s.LastRun()
	if last.IsZero() || len(keys) == 0 {
		t.Fatalf("last run not recorded: %v %v", last, keys)
	}
}

func TestSchedulerDebouncesIngest(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(f.uc, f.store, metrics.Nop{}, logger.NewNop(), time.Hour, WithPushOnIngest(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// initial run emits summary + sentiment
	waitUntil(t, time.Second, func() bool { return len(f.notifier.types()) == 2 })
	for i := 0; i < 10; i++ {
		s.OnApplied(models.KindQuote)
	}
	waitUntil(t, time.Second, func() bool { return len(f.notifier.types()) == 4 })
	time.Sleep(60 * time.Millisecond)
	if n := len(f.notifier.types()); n != 4 {
		t.Fatalf("burst should coalesce into one recompute, events = %d", n)
	}
}

func TestSchedulerIgnoresIngestWhenDisabled(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(f.uc, f.store, metrics.Nop{}, logger.NewNop(), time.Hour)
	s.OnApplied(models.KindQuote)
	select {
	case <-s.trigger:
		t.Fatalf("trigger queued with push-on-ingest disabled")
	default:
	}
}

func TestSchedulerSyncsReplicaThatLosesLock(t *testing.T) {
	ctx := context.Background()
	shared := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer shared.Close()

	replica := func() *fixture {
		c := insightscache.NewCache(logger.NewNop(), insightscache.WithMirror(shared, time.Hour))
		return newFixtureWithCache(t, c, WithLocker(shared))
	}
	a, b := replica(), replica()

	seedQuotes(a.store)
	if res, err := a.uc.Recompute(ctx); err != nil || res.Skipped {
		t.Fatalf("replica a should recompute: %+v %v", res, err)
	}
	if _, err := a.uc.Push(ctx, map[string]json.RawMessage{"flipZones": json.RawMessage(`[{"strike":500}]`)}); err != nil {
		t.Fatalf("push: %v", err)
	}
	want, _ := a.cache.Get(insightscache.SummaryKey(domrepo.TFDaily))

	s := NewScheduler(b.uc, b.store, metrics.Nop{}, logger.NewNop(), 20*time.Millisecond, WithHydrator(b.cache))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Run(runCtx)

	waitUntil(t, time.Second, func() bool {
		got, ok := b.cache.Get(insightscache.SummaryKey(domrepo.TFDaily))
		_, flips := b.cache.Get(insightscache.KeyFlipZones)
		return ok && flips && string(got.Payload) == string(want.Payload)
	})
	if last, _ := s.LastRun(); !last.IsZero() {
		t.Fatalf("replica b recomputed while a held the lock")
	}
	waitUntil(t, time.Second, func() bool {
		for _, typ := range b.notifier.types() {
			if typ == models.EventInsightsUpdate {
				return true
			}
		}
		return false
	})
}
