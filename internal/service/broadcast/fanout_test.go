package broadcast

import (
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

type recordingMetrics struct {
	mu        sync.Mutex
	delivered int
	dropped   int
}

func (m *recordingMetrics) RecordEventIngested(string)         {}
func (m *recordingMetrics) RecordEventRejected(string, string) {}
func (m *recordingMetrics) RecordError(string)                 {}
func (m *recordingMetrics) RecordLastPrice(string, float64)    {}
func (m *recordingMetrics) RecordLatency(string, float64)      {}
func (m *recordingMetrics) RecordBufferSize(string, int)       {}
func (m *recordingMetrics) RecordBroadcast(_ string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.delivered++
	} else {
		m.dropped++
	}
}

func TestNotifyDeliversToAll(t *testing.T) {
	f := NewFanout(nil)
	a := f.Subscribe("a", 1)
	b := f.Subscribe("b", 1)

	evt := NewEvent(models.EventSummary, map[string]int{"x": 1}, time.Now())
	if n := f.Notify(evt); n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	for _, s := range []*Subscription{a, b} {
		got := <-s.Events()
		if got.ID != evt.ID || got.Type != models.EventSummary {
			t.Fatalf("unexpected event %+v", got)
		}
	}
	if evt.ID == "" {
		t.Fatalf("expected event id")
	}
}

func TestNotifyNeverBlocksOnFullSubscriber(t *testing.T) {
	m := &recordingMetrics{}
	f := NewFanout(m)
	slow := f.Subscribe("slow", 1)
	fast := f.Subscribe("fast", 4)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			f.Notify(NewEvent(models.EventSentiment, nil, time.Now()))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("notify blocked on a full subscriber")
	}
	if len(slow.Events()) != 1 || len(fast.Events()) != 3 {
		t.Fatalf("slow=%d fast=%d", len(slow.Events()), len(fast.Events()))
	}
	if m.delivered != 4 || m.dropped != 2 {
		t.Fatalf("metrics delivered=%d dropped=%d", m.delivered, m.dropped)
	}
}

func TestClosedSubscriptionIsRemoved(t *testing.T) {
	f := NewFanout(nil)
	s := f.Subscribe("gone", 1)
	keep := f.Subscribe("keep", 1)
	s.Close()

	if n := f.Notify(NewEvent(models.EventPatterns, nil, time.Now())); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if f.Len() != 1 {
		t.Fatalf("len = %d, want 1", f.Len())
	}
	if _, ok := <-s.Events(); ok {
		t.Fatalf("closed subscription channel should be closed")
	}
	f.Unsubscribe(keep)
	f.Unsubscribe(keep)
	if f.Len() != 0 {
		t.Fatalf("len = %d, want 0", f.Len())
	}
}

func TestNotifyWithoutSubscribers(t *testing.T) {
	if n := NewFanout(nil).Notify(NewEvent(models.EventInsightsUpdate, nil, time.Now())); n != 0 {
		t.Fatalf("delivered = %d", n)
	}
}
