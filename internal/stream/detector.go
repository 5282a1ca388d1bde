package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"signal-systemv1/internal/indicator"
	"signal-systemv1/internal/logger"
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/signal"
)

const (
	// DefaultBufferSize bounds memory and re-score cost per subscription.
	DefaultBufferSize = 1000
	// DefaultMinRows is the buffered row count below which a subscription
	// stays idle (indicators need warm-up history before scoring).
	DefaultMinRows = 50

	feedChanSize = 256
)

// Feed is the live transport abstraction. Subscribe streams decoded candles
// for one (symbol, interval) pair into out until ctx is cancelled; malformed
// transport messages are the implementation's problem to log and skip.
type Feed interface {
	Subscribe(ctx context.Context, symbol, interval string, out chan<- model.Candle) error
}

// Observer receives emitted signal events. A failing observer is logged and
// never prevents delivery to the others.
type Observer interface {
	OnSignal(ctx context.Context, ev model.SignalEvent) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev model.SignalEvent) error

func (f ObserverFunc) OnSignal(ctx context.Context, ev model.SignalEvent) error {
	return f(ctx, ev)
}

// Config configures the detector.
type Config struct {
	BufferSize     int  // rolling window capacity (default 1000)
	MinRows        int  // rows required before scoring starts (default 50)
	UsePriceAction bool // enable the price-action category

	Scoring    signal.Config        // zero value selects defaults
	Categories []indicator.Category // nil selects all categories
}

func (c *Config) applyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MinRows <= 0 {
		c.MinRows = DefaultMinRows
	}
	zero := signal.Config{}
	if c.Scoring == zero {
		c.Scoring = signal.DefaultConfig()
	}
}

// Subscription is the handle for one (symbol, interval) worker.
type Subscription struct {
	Symbol   string
	Interval string
}

// Key returns "symbol:interval".
func (s *Subscription) Key() string { return s.Symbol + ":" + s.Interval }

// Detector supervises one worker goroutine per subscription. Each worker
// owns its feed connection and candle buffer exclusively; the only state
// shared across workers is the global observer list.
type Detector struct {
	cfg    Config
	feed   Feed
	engine *signal.Engine

	// Optional hooks for metrics wiring.
	OnCandle func(symbol, interval string)
	OnReject func(symbol, interval string)
	OnScore  func(d time.Duration)
	OnEmit   func(ev model.SignalEvent)

	mu        sync.Mutex
	workers   map[string]*worker
	observers []Observer
	stopped   bool
}

// New creates a Detector over the given feed.
func New(feed Feed, cfg Config) (*Detector, error) {
	if feed == nil {
		return nil, errors.New("stream: nil feed")
	}
	cfg.applyDefaults()
	engine, err := signal.NewEngine(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	return &Detector{
		cfg:     cfg,
		feed:    feed,
		engine:  engine,
		workers: make(map[string]*worker),
	}, nil
}

// Subscribe starts a worker for the pair, or returns the existing handle if
// one is already running (idempotent).
func (d *Detector) Subscribe(symbol, interval string) (*Subscription, error) {
	if symbol == "" || interval == "" {
		return nil, errors.New("stream subscribe: empty symbol or interval")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return nil, errors.New("stream subscribe: detector stopped")
	}

	sub := &Subscription{Symbol: symbol, Interval: interval}
	if w, ok := d.workers[sub.Key()]; ok {
		return w.sub, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		sub:       sub,
		det:       d,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		buffer:    NewBuffer(d.cfg.BufferSize),
		observers: append([]Observer(nil), d.observers...),
	}
	d.workers[sub.Key()] = w
	go w.run()

	log.Printf("[stream] subscribed %s", sub.Key())
	return sub, nil
}

// Unsubscribe cancels the pair's worker and waits for it to stop. No events
// are dispatched for the subscription after it returns. Unsubscribing an
// unknown pair is a no-op.
func (d *Detector) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	d.mu.Lock()
	w, ok := d.workers[sub.Key()]
	if ok {
		delete(d.workers, sub.Key())
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	w.cancel()
	<-w.done
	log.Printf("[stream] unsubscribed %s", sub.Key())
}

// StopAll cancels every subscription and waits for all workers to stop.
// Safe to call with zero active subscriptions, and more than once.
func (d *Detector) StopAll() {
	d.mu.Lock()
	d.stopped = true
	workers := make([]*worker, 0, len(d.workers))
	for _, w := range d.workers {
		workers = append(workers, w)
	}
	d.workers = make(map[string]*worker)
	d.mu.Unlock()

	for _, w := range workers {
		w.cancel()
	}
	for _, w := range workers {
		<-w.done
	}
	if len(workers) > 0 {
		log.Printf("[stream] stopped %d subscriptions", len(workers))
	}
}

// RegisterObserver appends a global observer and back-fills it onto every
// active worker. Events emitted from then on reach it.
func (d *Detector) RegisterObserver(o Observer) {
	if o == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
	for _, w := range d.workers {
		w.addObserver(o)
	}
}

// Active returns the keys of the currently running subscriptions.
func (d *Detector) Active() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.workers))
	for k := range d.workers {
		keys = append(keys, k)
	}
	return keys
}

// worker owns one subscription: its feed connection, buffer and emit state.
// All candle handling runs on the worker goroutine, so buffer mutation and
// re-scoring are serialized by construction.
type worker struct {
	sub    *Subscription
	det    *Detector
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	buffer        *Buffer
	lastDirection model.Direction
	lastEmittedAt time.Time

	obsMu     sync.Mutex
	observers []Observer
}

func (w *worker) reject() {
	if w.det.OnReject != nil {
		w.det.OnReject(w.sub.Symbol, w.sub.Interval)
	}
}

func (w *worker) addObserver(o Observer) {
	w.obsMu.Lock()
	w.observers = append(w.observers, o)
	w.obsMu.Unlock()
}

func (w *worker) run() {
	defer close(w.done)

	candleCh := make(chan model.Candle, feedChanSize)
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		err := w.det.feed.Subscribe(w.ctx, w.sub.Symbol, w.sub.Interval, candleCh)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[stream] %s: feed terminated: %v", w.sub.Key(), err)
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			<-feedDone
			return
		case c := <-candleCh:
			w.accept(c)
		case <-feedDone:
			// Terminal transport failure for this subscription only;
			// sibling workers are unaffected.
			return
		}
	}
}

// accept folds one candle into the buffer and re-scores. The feed delivers
// in arrival order; a repeated timestamp overwrites the matching (newest)
// slot, an older timestamp is rejected. Never reorders silently.
func (w *worker) accept(c model.Candle) {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 || c.Volume < 0 {
		log.Printf("[stream] %s: dropping malformed candle at %s", w.sub.Key(), c.TS)
		w.reject()
		return
	}

	if last, ok := w.buffer.Last(); ok {
		switch {
		case c.TS.Equal(last.TS):
			w.buffer.ReplaceLast(c)
		case c.TS.Before(last.TS):
			log.Printf("[stream] %s: rejecting out-of-order candle %s < %s",
				w.sub.Key(), c.TS, last.TS)
			w.reject()
			return
		default:
			w.buffer.Append(c)
		}
	} else {
		w.buffer.Append(c)
	}

	if w.det.OnCandle != nil {
		w.det.OnCandle(w.sub.Symbol, w.sub.Interval)
	}

	if w.buffer.Len() < w.det.cfg.MinRows {
		return // idle: buffering only
	}
	w.rescore()
}

// rescore recomputes the full signal series over the retained window and
// inspects only the last row. Deliberately not incremental: indicators with
// long look-back would drift under incremental updates, so we trade CPU for
// correctness. Cost is O(buffer * indicator cost) per candle; the default
// buffer size keeps that acceptable.
func (w *worker) rescore() {
	start := time.Now()
	rows, err := indicator.Compute(w.buffer.Snapshot(), w.det.cfg.Categories)
	if err != nil {
		log.Printf("[stream] %s: indicator compute: %v", w.sub.Key(), err)
		return
	}
	res, err := w.det.engine.Score(rows, w.det.cfg.UsePriceAction)
	if err != nil {
		log.Printf("[stream] %s: score: %v", w.sub.Key(), err)
		return
	}
	if w.det.OnScore != nil {
		w.det.OnScore(time.Since(start))
	}

	latest := res.Latest()
	if latest.Direction == model.DirectionHold || latest.Direction == w.lastDirection {
		return // debounce: only transitions to a new non-HOLD direction emit
	}

	lastRow := rows[len(rows)-1]
	ev := model.SignalEvent{
		Symbol:     w.sub.Symbol,
		Interval:   w.sub.Interval,
		TS:         lastRow.TS,
		Direction:  latest.Direction,
		Strength:   latest.Strength,
		Reason:     latest.Reason,
		Price:      lastRow.Close,
		Indicators: keyIndicators(&lastRow),
	}
	w.dispatch(ev)

	w.lastDirection = latest.Direction
	w.lastEmittedAt = time.Now().UTC()
}

func (w *worker) dispatch(ev model.SignalEvent) {
	w.obsMu.Lock()
	observers := append([]Observer(nil), w.observers...)
	w.obsMu.Unlock()

	// One trace ID per emission so observer logs correlate across sinks.
	ctx := logger.WithTraceID(w.ctx, logger.GenerateTraceID(ev.Symbol, ev.TS))
	for i, o := range observers {
		if err := o.OnSignal(ctx, ev); err != nil {
			log.Printf("[stream] %s: observer %d failed: %v", w.sub.Key(), i, err)
		}
	}
	if w.det.OnEmit != nil {
		w.det.OnEmit(ev)
	}
}

// keyIndicators extracts the defined subset of headline indicator values
// attached to emitted events.
func keyIndicators(row *model.IndicatorRow) map[string]float64 {
	out := make(map[string]float64, 3)
	for _, name := range []string{indicator.RSI, indicator.MACD, indicator.ADX} {
		if v, ok := row.Value(name); ok {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
