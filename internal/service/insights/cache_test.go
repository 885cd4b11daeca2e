package insights

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/cache"
)

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"summaryDaily":   "summary:daily",
		"summary5m":      "summary:5m",
		"summary1h":      "summary:hourly",
		"patternsDaily":  "patterns:daily",
		"patterns5m":     "patterns:5m",
		"flipZones":      KeyFlipZones,
		"sentiment":      KeySentiment,
		"summary:weekly": "summary:weekly",
		"custom":         "custom",
		"summaryBogus":   "summaryBogus",
	}
	for in, want := range cases {
		if got := NormalizeKey(in); got != want {
			t.Fatalf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetMergesAndStamps(t *testing.T) {
	now := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)
	c := NewCache(nil, WithClock(func() time.Time { return now }))

	_, err := c.Set(context.Background(), map[string]json.RawMessage{
		"summaryDaily": json.RawMessage(`{"a":1}`),
		"sentiment":    json.RawMessage(`{"b":2}`),
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}

	now = now.Add(time.Minute)
	meta, err := c.Set(context.Background(), map[string]json.RawMessage{
		SummaryKey(repository.TFDaily): json.RawMessage(`{"a":3}`),
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if meta.LastUpdated == nil || !meta.LastUpdated.Equal(now) {
		t.Fatalf("lastUpdated = %v, want %v", meta.LastUpdated, now)
	}
	if len(meta.Available) != 2 {
		t.Fatalf("available = %v", meta.Available)
	}

	got, ok := c.Get("summary:daily")
	if !ok || string(got.Payload) != `{"a":3}` || !got.LastUpdated.Equal(now) {
		t.Fatalf("unexpected summary entry %+v", got)
	}
	sent, ok := c.Get(KeySentiment)
	if !ok || !sent.LastUpdated.Equal(now.Add(-time.Minute)) {
		t.Fatalf("sentiment entry should keep its own timestamp: %+v", sent)
	}
}

func TestSetAlwaysAdvancesLastUpdated(t *testing.T) {
	fixed := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)
	c := NewCache(nil, WithClock(func() time.Time { return fixed }))
	m1, _ := c.Set(context.Background(), map[string]json.RawMessage{"sentiment": json.RawMessage(`1`)})
	m2, _ := c.Set(context.Background(), map[string]json.RawMessage{"sentiment": json.RawMessage(`2`)})
	if !m2.LastUpdated.After(*m1.LastUpdated) {
		t.Fatalf("lastUpdated did not advance: %v then %v", m1.LastUpdated, m2.LastUpdated)
	}
}

func TestSetRejectsEmpty(t *testing.T) {
	c := NewCache(nil)
	if _, err := c.Set(context.Background(), nil); !errors.Is(err, ErrEmptyPush) {
		t.Fatalf("expected ErrEmptyPush, got %v", err)
	}
	if _, ok := c.Get(KeySentiment); ok {
		t.Fatalf("unexpected entry")
	}
	if c.Meta().LastUpdated != nil {
		t.Fatalf("expected nil lastUpdated for empty cache")
	}
}

func TestMirrorAndHydrate(t *testing.T) {
	ctx := context.Background()
	shared := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer shared.Close()

	writer := NewCache(nil, WithMirror(shared, time.Hour))
	if _, err := writer.Set(ctx, map[string]json.RawMessage{
		"patterns5m": json.RawMessage(`{"patterns":[]}`),
		"flipZones":  json.RawMessage(`[1,2]`),
	}); err != nil {
		t.Fatalf("set: %v", err)
	}

	reader := NewCache(nil, WithMirror(shared, time.Hour))
	loaded, err := reader.Hydrate(ctx)
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Key != KeyFlipZones || loaded[1].Key != "patterns:5m" {
		t.Fatalf("loaded = %+v", loaded)
	}
	got, ok := reader.Get("patterns:5m")
	if !ok || string(got.Payload) != `{"patterns":[]}` {
		t.Fatalf("hydrated entry missing: %+v", got)
	}
	if _, ok := reader.Get(KeyFlipZones); !ok {
		t.Fatalf("flip zones not hydrated")
	}
	if reader.Meta().LastUpdated == nil {
		t.Fatalf("hydrate should set lastUpdated")
	}
}

func TestHydrateWithoutMirrorIsNoop(t *testing.T) {
	loaded, err := NewCache(nil).Hydrate(context.Background())
	if err != nil || loaded != nil {
		t.Fatalf("unexpected result %v %v", loaded, err)
	}
}

func TestHydrateReportsOnlyNewerEntries(t *testing.T) {
	ctx := context.Background()
	shared := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer shared.Close()

	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	a := NewCache(nil, WithMirror(shared, time.Hour), WithClock(func() time.Time { return base }))
	b := NewCache(nil, WithMirror(shared, time.Hour), WithClock(func() time.Time { return base.Add(time.Minute) }))

	if _, err := a.Set(ctx, map[string]json.RawMessage{"sentiment": json.RawMessage(`{"v":1}`)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if loaded, err := a.Hydrate(ctx); err != nil || len(loaded) != 0 {
		t.Fatalf("own writes should not be reloaded: %v %v", loaded, err)
	}
	if loaded, _ := b.Hydrate(ctx); len(loaded) != 1 {
		t.Fatalf("b loaded %d entries, want 1", len(loaded))
	}
	if loaded, _ := b.Hydrate(ctx); len(loaded) != 0 {
		t.Fatalf("second hydrate reloaded %d entries", len(loaded))
	}

	if _, err := b.Set(ctx, map[string]json.RawMessage{"sentiment": json.RawMessage(`{"v":2}`)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	loaded, err := a.Hydrate(ctx)
	if err != nil || len(loaded) != 1 || string(loaded[0].Payload) != `{"v":2}` {
		t.Fatalf("a did not pick up newer sentiment: %+v %v", loaded, err)
	}
}

func TestMirrorIndexMergesAcrossReplicas(t *testing.T) {
	ctx := context.Background()
	shared := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer shared.Close()

	a := NewCache(nil, WithMirror(shared, time.Hour))
	b := NewCache(nil, WithMirror(shared, time.Hour))
	if _, err := a.Set(ctx, map[string]json.RawMessage{"levels": json.RawMessage(`[1]`)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := b.Set(ctx, map[string]json.RawMessage{"gamma": json.RawMessage(`[2]`)}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var index []string
	if err := shared.Get(ctx, mirrorIndexKey, &index); err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(index) != 2 || index[0] != "gamma" || index[1] != "levels" {
		t.Fatalf("index = %v", index)
	}

	c := NewCache(nil, WithMirror(shared, time.Hour))
	if _, err := c.Hydrate(ctx); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if _, ok := c.Get("levels"); !ok {
		t.Fatalf("key written by another replica dropped from index")
	}
}
