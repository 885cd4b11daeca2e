package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"

	"github.com/google/uuid"
)

const DefaultSubscriberBuffer = 16

// NewEvent builds an insight event with a fresh id.
func NewEvent(typ string, payload any, ts time.Time) models.InsightEvent {
	return models.InsightEvent{ID: uuid.NewString(), Type: typ, TS: ts, Payload: payload}
}

// Subscription is one registered receiver. Close it to leave the registry;
// the fanout removes it on the next Notify and closes Events.
type Subscription struct {
	id     string
	name   string
	ch     chan models.InsightEvent
	closed atomic.Bool
}

func (s *Subscription) ID() string { return s.id }

func (s *Subscription) Events() <-chan models.InsightEvent { return s.ch }

func (s *Subscription) Close() { s.closed.Store(true) }

// Fanout delivers events to every live subscription without blocking.
// A subscriber whose buffer is full misses the event.
type Fanout struct {
	mu      sync.Mutex
	subs    map[string]*Subscription
	metrics domrepo.Metrics
}

func NewFanout(metrics domrepo.Metrics) *Fanout {
	return &Fanout{subs: make(map[string]*Subscription), metrics: metrics}
}

// Subscribe registers a receiver with the given buffer size.
func (f *Fanout) Subscribe(name string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	s := &Subscription{id: uuid.NewString(), name: name, ch: make(chan models.InsightEvent, buffer)}
	f.mu.Lock()
	f.subs[s.id] = s
	f.mu.Unlock()
	return s
}

// Unsubscribe removes s immediately and closes its channel.
func (f *Fanout) Unsubscribe(s *Subscription) {
	s.Close()
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[s.id]; ok {
		delete(f.subs, s.id)
		close(s.ch)
	}
}

// Notify sends evt to every subscription, skipping full ones and removing closed ones.
// It returns how many subscriptions received the event.
func (f *Fanout) Notify(evt models.InsightEvent) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for id, s := range f.subs {
		if s.closed.Load() {
			delete(f.subs, id)
			close(s.ch)
			continue
		}
		select {
		case s.ch <- evt:
			delivered++
			f.record(s.name, true)
		default:
			f.record(s.name, false)
		}
	}
	return delivered
}

// Len returns the number of registered subscriptions.
func (f *Fanout) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Fanout) record(name string, ok bool) {
	if f.metrics != nil {
		f.metrics.RecordBroadcast(name, ok)
	}
}
