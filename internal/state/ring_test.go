package state

import "testing"

func TestRingBelowCapacity(t *testing.T) {
	r := NewRing[int](5)
	for i := 1; i <= 3; i++ {
		r.Push(i)
	}
	got := r.Items()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("unexpected items %v", got)
	}
}

func TestRingEvictsOldestFirst(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 11; i++ {
		r.Push(i)
		if r.Len() > r.Cap() {
			t.Fatalf("len %d exceeds cap %d", r.Len(), r.Cap())
		}
	}
	got := r.Items()
	want := []int{8, 9, 10, 11}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRingItemsNotAliased(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Push(2)
	items := r.Items()
	r.Push(3)
	if items[0] != 1 || items[1] != 2 {
		t.Fatalf("snapshot mutated by later push: %v", items)
	}
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[string](0)
	r.Push("a")
	r.Push("b")
	if got := r.Items(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("unexpected items %v", got)
	}
}
