package redis

import (
	"context"
	"log"
	"sync"

	"signal-systemv1/internal/model"
)

// BufferedWriter wraps a Redis Writer with a circuit breaker. During
// circuit-open state, events are buffered locally and flushed when the
// circuit closes again, so a Redis outage never loses transitions.
type BufferedWriter struct {
	writer *Writer
	cb     *CircuitBreaker
	ctx    context.Context

	mu     sync.Mutex
	buffer []model.SignalEvent
	maxBuf int // max buffered events before dropping oldest (default: 10000)

	// Callbacks
	OnBuffer func()          // called when an event is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered events
}

// NewBufferedWriter creates a BufferedWriter wrapping the given Writer.
func NewBufferedWriter(ctx context.Context, w *Writer, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bw := &BufferedWriter{
		writer: w,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]model.SignalEvent, 0, 256),
		maxBuf: maxBufferSize,
	}

	// Register flush on circuit close
	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bw.flush()
		}
	}

	return bw
}

// WriteEvent writes an event through the circuit breaker. If the circuit is
// open, the event is buffered locally.
func (bw *BufferedWriter) WriteEvent(ev model.SignalEvent) error {
	err := bw.cb.Execute(func() error {
		return bw.writer.WriteEvent(bw.ctx, ev)
	})
	if err == ErrCircuitOpen {
		bw.bufferEvent(ev)
		return nil // buffered, not lost
	}
	return err
}

// OnSignal satisfies the detector's observer contract.
func (bw *BufferedWriter) OnSignal(_ context.Context, ev model.SignalEvent) error {
	return bw.WriteEvent(ev)
}

func (bw *BufferedWriter) bufferEvent(ev model.SignalEvent) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if len(bw.buffer) >= bw.maxBuf {
		// Buffer full, drop oldest
		bw.buffer = bw.buffer[1:]
	}
	bw.buffer = append(bw.buffer, ev)

	if bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

// flush replays all buffered events through the underlying writer.
func (bw *BufferedWriter) flush() {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	// Take ownership of the buffer
	toFlush := bw.buffer
	bw.buffer = make([]model.SignalEvent, 0, 256)
	bw.mu.Unlock()

	flushed := 0
	for _, ev := range toFlush {
		if err := bw.writer.WriteEvent(bw.ctx, ev); err != nil {
			log.Printf("[buffered-writer] flush write error: %v", err)
			continue
		}
		flushed++
	}

	log.Printf("[buffered-writer] flushed %d buffered events", flushed)
	if bw.OnFlush != nil {
		bw.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered events waiting to be flushed.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Underlying returns the underlying Redis writer for direct access.
func (bw *BufferedWriter) Underlying() *Writer {
	return bw.writer
}
