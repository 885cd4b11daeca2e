package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func newTestMemory(opts ...MemoryOption) *MemoryCache {
	return NewMemoryCache(append([]MemoryOption{WithMemoryCleanup(0)}, opts...)...)
}

func TestMemorySetGetStruct(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory()
	defer mc.Close()

	if err := mc.Set(ctx, "k", payload{Name: "spy", Value: 1.5}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "spy" || got.Value != 1.5 {
		t.Fatalf("unexpected value %+v", got)
	}
	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory()
	defer mc.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	_ = mc.Set(ctx, "k", "v", time.Second)
	now = now.Add(2 * time.Second)
	var s string
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v (%q)", err, s)
	}
}

func TestMemoryLRUEviction(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory(WithMemoryMaxSize(2))
	defer mc.Close()

	_ = mc.Set(ctx, "a", "1", time.Minute)
	_ = mc.Set(ctx, "b", "2", time.Minute)
	var s string
	_ = mc.Get(ctx, "a", &s) // a is now most recent
	_ = mc.Set(ctx, "c", "3", time.Minute)

	if err := mc.Get(ctx, "b", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected b evicted")
	}
	got, _ := mc.MGet(ctx, "a", "c")
	if got["a"] != "1" || got["c"] != "3" {
		t.Fatalf("unexpected entries %v", got)
	}
	if mc.Len() != 2 {
		t.Fatalf("len = %d, want 2", mc.Len())
	}
}

func TestMemoryTryLock(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory()
	defer mc.Close()

	ok, _ := mc.TryLock(ctx, "lock", time.Minute)
	if !ok {
		t.Fatalf("expected first lock to succeed")
	}
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	if ok {
		t.Fatalf("expected second lock to fail")
	}
	_ = mc.Unlock(ctx, "lock")
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	if !ok {
		t.Fatalf("expected lock after unlock")
	}
}

func TestMGetTyped(t *testing.T) {
	ctx := context.Background()
	mc := newTestMemory()
	defer mc.Close()

	_ = mc.MSet(ctx, map[string]interface{}{
		"a": payload{Name: "a", Value: 1},
		"b": "not json",
	}, time.Minute)
	got, err := MGetTyped[payload](ctx, mc, "a", "b", "c")
	if err != nil {
		t.Fatalf("mget: %v", err)
	}
	if len(got) != 1 || got["a"].Value != 1 {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestLayeredReadsThroughToSharedLayer(t *testing.T) {
	ctx := context.Background()
	shared := newTestMemory()
	lc := NewLayeredCache(shared)
	defer lc.Close()

	_ = shared.Set(ctx, "k", payload{Name: "x", Value: 2}, time.Minute)
	var got payload
	if err := lc.Get(ctx, "k", &got); err != nil || got.Value != 2 {
		t.Fatalf("read-through failed: %v %+v", err, got)
	}

	_ = lc.Set(ctx, "w", payload{Name: "w", Value: 3}, time.Minute)
	var fromShared payload
	if err := shared.Get(ctx, "w", &fromShared); err != nil || fromShared.Value != 3 {
		t.Fatalf("write-through failed: %v %+v", err, fromShared)
	}
}
