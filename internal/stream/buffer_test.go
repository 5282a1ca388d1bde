package stream

import (
	"testing"
	"time"

	"signal-systemv1/internal/model"
)

func bufCandle(i int) model.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return model.Candle{
		TS:     base.Add(time.Duration(i) * time.Minute),
		Open:   100,
		High:   101,
		Low:    99,
		Close:  100 + float64(i),
		Volume: 1000,
	}
}

func TestBuffer_AppendAndEvict(t *testing.T) {
	b := NewBuffer(3)
	if b.Cap() != 3 || b.Len() != 0 {
		t.Fatalf("fresh buffer: cap %d len %d", b.Cap(), b.Len())
	}

	for i := 0; i < 3; i++ {
		if evicted := b.Append(bufCandle(i)); evicted {
			t.Errorf("append %d below capacity should not evict", i)
		}
	}
	if !b.Append(bufCandle(3)) {
		t.Error("append at capacity should evict exactly one entry")
	}
	if b.Len() != 3 {
		t.Errorf("len after eviction = %d, want 3", b.Len())
	}

	// Oldest-first snapshot, with the oldest entry (0) gone.
	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len %d, want 3", len(snap))
	}
	for i, want := range []float64{101, 102, 103} {
		if snap[i].Close != want {
			t.Errorf("snapshot[%d].Close = %v, want %v", i, snap[i].Close, want)
		}
	}
}

func TestBuffer_LastAndReplace(t *testing.T) {
	b := NewBuffer(2)
	if _, ok := b.Last(); ok {
		t.Error("empty buffer should have no last candle")
	}
	if b.ReplaceLast(bufCandle(0)) {
		t.Error("replace on empty buffer should report false")
	}

	b.Append(bufCandle(0))
	b.Append(bufCandle(1))

	last, ok := b.Last()
	if !ok || last.Close != 101 {
		t.Fatalf("last = %v (ok=%v), want close 101", last.Close, ok)
	}

	repl := bufCandle(1)
	repl.Close = 250
	if !b.ReplaceLast(repl) {
		t.Fatal("replace should succeed")
	}
	last, _ = b.Last()
	if last.Close != 250 {
		t.Errorf("replaced close = %v, want 250", last.Close)
	}
	if b.Len() != 2 {
		t.Errorf("replace must not change length, got %d", b.Len())
	}
}

func TestBuffer_MinimumCapacity(t *testing.T) {
	b := NewBuffer(0)
	if b.Cap() != 1 {
		t.Errorf("capacity clamped to 1, got %d", b.Cap())
	}
	b.Append(bufCandle(0))
	if !b.Append(bufCandle(1)) {
		t.Error("second append into cap-1 buffer should evict")
	}
}

func TestBuffer_WrapAroundSnapshot(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 7; i++ {
		b.Append(bufCandle(i))
	}
	snap := b.Snapshot()
	for i, want := range []float64{104, 105, 106} {
		if snap[i].Close != want {
			t.Errorf("snapshot[%d].Close = %v, want %v", i, snap[i].Close, want)
		}
	}
}
