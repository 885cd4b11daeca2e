package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
)

// KafkaEventsHandler consumes JSON envelopes from Kafka and ingests them.
// Malformed and invalid events are permanent failures and go to the DLQ.
type KafkaEventsHandler struct {
	topic    string
	ingestor *EventIngestor
	metrics  domrepo.Metrics
}

func NewKafkaEventsHandler(topic string, ingestor *EventIngestor, metrics domrepo.Metrics) *KafkaEventsHandler {
	return &KafkaEventsHandler{topic: topic, ingestor: ingestor, metrics: metrics}
}

func (h *KafkaEventsHandler) Topic() string { return h.topic }

func (h *KafkaEventsHandler) Handle(ctx context.Context, b []byte) error {
	var env models.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode envelope: %w", err))
	}

	start := time.Now()
	err := h.ingestor.Ingest(ctx, env)
	h.metrics.RecordLatency("kafka_ingest", time.Since(start).Seconds())
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrUnknownKind) {
		return pkgkafka.Permanent(err)
	}
	h.metrics.RecordError("consumer_ingest")
	return err
}

var _ pkgkafka.MessageHandler = (*KafkaEventsHandler)(nil)
