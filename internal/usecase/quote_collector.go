package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	mid "MarketPulse/internal/middleware"
	"MarketPulse/pkg/logger"
)

// QuoteCollector turns a realtime trade stream into quote events. Each trade
// is classified by the tick rule against the previous trade of its symbol:
// an uptick adds its volume to up volume, a downtick to down volume.
type QuoteCollector struct {
	stream   drepo.TradeStream
	ingestor *EventIngestor
	pipe     *mid.RealtimePipeline
	metrics  drepo.Metrics
	log      *logger.Logger

	mu     sync.Mutex
	last   map[string]float64
	volume map[string]float64
	cancel context.CancelFunc
	done   chan struct{}
}

func NewQuoteCollector(stream drepo.TradeStream, ingestor *EventIngestor, metrics drepo.Metrics, log *logger.Logger, opts ...mid.PipelineOption) *QuoteCollector {
	c := &QuoteCollector{
		stream:   stream,
		ingestor: ingestor,
		metrics:  metrics,
		log:      log,
		last:     make(map[string]float64),
		volume:   make(map[string]float64),
	}
	c.pipe = mid.NewRealtimePipeline(c, metrics, opts...)
	return c
}

func (c *QuoteCollector) IsConnected() bool { return c.stream.IsConnected() }

// Process converts one trade into a quote event and ingests it.
func (c *QuoteCollector) Process(ctx context.Context, t *models.Trade) error {
	if t == nil {
		return fmt.Errorf("trade is nil")
	}
	c.mu.Lock()
	prev, seen := c.last[t.Symbol]
	c.last[t.Symbol] = t.Price
	c.volume[t.Symbol] += t.Volume
	cum := c.volume[t.Symbol]
	c.mu.Unlock()

	var up, down float64
	switch {
	case !seen:
	case t.Price > prev:
		up = t.Volume
	case t.Price < prev:
		down = t.Volume
	}

	last := t.Price
	_, err := c.ingestor.IngestQuote(ctx, models.QuoteEvent{
		Symbol:     t.Symbol,
		Last:       &last,
		Volume:     &cum,
		DeltaVolUp: up,
		DeltaVolDn: down,
		TS:         models.EventTime{Time: t.Timestamp},
	})
	return err
}

// Start connects, subscribes and consumes the stream in the background,
// reconnecting after read errors until ctx is cancelled or Shutdown is called.
func (c *QuoteCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		_ = c.stream.Close()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.pipe.Start(ctx)
	go func() {
		defer close(done)
		c.consume(ctx)
	}()
	return nil
}

func (c *QuoteCollector) consume(ctx context.Context) {
	for {
		trCh, errCh := c.stream.Read(ctx)
		err := c.drain(ctx, trCh, errCh)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.log.Warn("trade stream interrupted, reconnecting", logger.Error(err))
		for {
			rerr := c.stream.Reconnect(ctx)
			if rerr == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.log.Error("trade stream reconnect failed", logger.Error(rerr))
		}
	}
}

// drain reads until the stream fails or closes.
func (c *QuoteCollector) drain(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return err
			}
			if !ok {
				errCh = nil
			}
		case t, ok := <-trCh:
			if !ok {
				return fmt.Errorf("trade stream closed")
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				c.log.Debug("trade rejected", logger.String("symbol", symbolOf(t)), logger.Error(err))
			}
		}
	}
}

// Shutdown stops consuming and closes the stream.
func (c *QuoteCollector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.pipe.Stop()
	err := c.stream.Close()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return err
}

func symbolOf(t *models.Trade) string {
	if t == nil {
		return ""
	}
	return t.Symbol
}
