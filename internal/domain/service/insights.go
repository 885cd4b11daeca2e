package service

import (
	"context"
	"encoding/json"

	"MarketPulse/internal/domain/models"
)

// Notifier delivers insight events to every current subscriber, best effort.
// It returns how many subscribers accepted the event.
type Notifier interface {
	Notify(evt models.InsightEvent) int
}

// InsightsStore is the last-write-wins cache of computed insight payloads.
type InsightsStore interface {
	Get(key string) (models.CachedInsight, bool)
	Set(ctx context.Context, partial map[string]json.RawMessage) (models.CacheMeta, error)
	Meta() models.CacheMeta
}
