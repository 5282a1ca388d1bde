// Package stream implements the live signal-transition detector: one worker
// per (symbol, interval) subscription maintains a rolling candle window,
// re-scores it on every accepted candle and dispatches an event only when
// the directional signal changes.
package stream

import "signal-systemv1/internal/model"

// Buffer is a fixed-capacity rolling candle window. Appending at capacity
// evicts exactly one entry, the oldest. It is owned exclusively by a single
// worker and needs no locking.
type Buffer struct {
	buf  []model.Candle
	head int // index of the oldest entry
	size int
}

// NewBuffer creates a rolling buffer. Minimum capacity is 1.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{buf: make([]model.Candle, capacity)}
}

// Append adds a candle, evicting the oldest entry if the buffer is full.
// Returns true when an eviction happened.
func (b *Buffer) Append(c model.Candle) bool {
	if b.size < len(b.buf) {
		b.buf[(b.head+b.size)%len(b.buf)] = c
		b.size++
		return false
	}
	b.buf[b.head] = c
	b.head = (b.head + 1) % len(b.buf)
	return true
}

// Last returns the newest candle, if any.
func (b *Buffer) Last() (model.Candle, bool) {
	if b.size == 0 {
		return model.Candle{}, false
	}
	return b.buf[(b.head+b.size-1)%len(b.buf)], true
}

// ReplaceLast overwrites the newest candle in place. Used when the feed
// re-delivers the forming bar for an already-buffered timestamp.
func (b *Buffer) ReplaceLast(c model.Candle) bool {
	if b.size == 0 {
		return false
	}
	b.buf[(b.head+b.size-1)%len(b.buf)] = c
	return true
}

// Len returns the current number of buffered candles.
func (b *Buffer) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.buf) }

// Snapshot returns the buffered candles oldest-first as a fresh slice,
// safe to hand to the scoring pipeline.
func (b *Buffer) Snapshot() []model.Candle {
	out := make([]model.Candle, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.buf[(b.head+i)%len(b.buf)]
	}
	return out
}
