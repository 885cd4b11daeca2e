package repository

import (
	"context"

	domrepo "MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
)

// KafkaPublisher forwards insight events to a Kafka topic, keyed by event type
// so every update of one family lands on the same partition. The producer is
// owned and closed by the caller.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishEvent(ctx context.Context, key string, payload []byte) error {
	return p.producer.Publish(ctx, p.topic, key, payload)
}

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)
