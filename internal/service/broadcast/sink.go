package broadcast

import (
	"context"
	"encoding/json"
	"time"

	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/logger"
)

// Sink forwards every fanout event to an external publisher, keyed by event type.
type Sink struct {
	name      string
	fanout    *Fanout
	publisher domrepo.EventPublisher
	log       *logger.Logger
	buffer    int
	timeout   time.Duration
}

func NewSink(name string, fanout *Fanout, publisher domrepo.EventPublisher, log *logger.Logger) *Sink {
	return &Sink{
		name:      name,
		fanout:    fanout,
		publisher: publisher,
		log:       log,
		buffer:    256,
		timeout:   5 * time.Second,
	}
}

// Run drains the subscription until ctx is done. Publish failures are logged and dropped.
func (s *Sink) Run(ctx context.Context) {
	sub := s.fanout.Subscribe(s.name, s.buffer)
	defer s.fanout.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			b, err := json.Marshal(evt)
			if err != nil {
				s.log.Error("sink marshal event", logger.Error(err), logger.String("sink", s.name))
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			err = s.publisher.PublishEvent(pctx, evt.Type, b)
			cancel()
			if err != nil {
				s.log.Warn("sink publish failed",
					logger.Error(err),
					logger.String("sink", s.name),
					logger.String("type", evt.Type),
				)
			}
		}
	}
}
