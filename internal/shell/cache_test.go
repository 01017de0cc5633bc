package shell

import "testing"

func TestBoundedSetEvictsOldestAtCapacity(t *testing.T) {
	b := newBoundedSet(2)
	b.Add("a")
	b.Add("b")
	b.Add("c")

	if b.Has("a") {
		t.Fatalf("expected oldest entry evicted")
	}
	if !b.Has("b") || !b.Has("c") {
		t.Fatalf("expected b and c retained, got %v", b.Entries())
	}
}

func TestBoundedSetAddIsIdempotent(t *testing.T) {
	b := newBoundedSet(2)
	b.Add("a")
	b.Add("a")

	if len(b.Entries()) != 1 {
		t.Fatalf("expected single entry, got %v", b.Entries())
	}
}
