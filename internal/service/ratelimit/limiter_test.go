package ratelimit

import (
	"testing"
	"time"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time { return c.t }

func TestAllowBurstThenRefill(t *testing.T) {
	clk := &manualClock{t: time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)}
	l := New(2, 3, WithClock(clk.now))

	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("request %d within burst denied", i)
		}
	}
	if l.Allow("k") {
		t.Fatalf("request past burst allowed")
	}
	if !l.Allow("other") {
		t.Fatalf("keys must not share buckets")
	}

	clk.t = clk.t.Add(500 * time.Millisecond)
	if !l.Allow("k") {
		t.Fatalf("one token should have refilled")
	}
	if l.Allow("k") {
		t.Fatalf("only one token should have refilled")
	}

	clk.t = clk.t.Add(time.Hour)
	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("refill must cap at burst, request %d denied", i)
		}
	}
	if l.Allow("k") {
		t.Fatalf("refill exceeded burst")
	}
}

func TestIdleBucketsEvicted(t *testing.T) {
	clk := &manualClock{t: time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)}
	l := New(1, 1, WithClock(clk.now), WithIdleTTL(time.Minute))
	l.Allow("a")
	l.Allow("b")
	if l.Len() != 2 {
		t.Fatalf("len = %d", l.Len())
	}
	clk.t = clk.t.Add(2 * time.Minute)
	l.Allow("c")
	if l.Len() != 1 {
		t.Fatalf("idle buckets kept: len = %d", l.Len())
	}
}
