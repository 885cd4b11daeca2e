package repository

import (
	"context"

	"MarketPulse/internal/domain/models"
)

// TradeStream is a realtime source of trade prints.
type TradeStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// EventPublisher forwards outbound insight events to an external sink.
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, payload []byte) error
}

type Metrics interface {
	RecordEventIngested(kind string)
	RecordEventRejected(kind, reason string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordBufferSize(buffer string, size int)
	RecordBroadcast(sink string, delivered bool)
}
