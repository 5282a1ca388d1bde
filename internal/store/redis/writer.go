// Package redis is the hot cache for signal consumers: latest signal per
// pair, a trimmed event stream for recent history, pubsub fan-out for live
// subscribers and the cached symbol universe.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signal-systemv1/internal/model"
)

const (
	// Event streams keep roughly the last day of transitions per pair.
	eventStreamMaxLen = 1440
	defaultLatestTTL  = 30 * time.Minute
	symbolsCacheTTL   = time.Hour
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer publishes signal events and the symbol universe to Redis.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

func latestKey(symbol, interval string) string {
	return "signal:latest:" + symbol + ":" + interval
}

func streamKey(symbol, interval string) string {
	return "signal:events:" + symbol + ":" + interval
}

func pubsubChannel(symbol, interval string) string {
	return "pub:signal:" + symbol + ":" + interval
}

// WriteEvent performs the pipelined writes for one emitted transition:
// SET latest with TTL, XADD to the trimmed event stream, PUBLISH for live
// subscribers. One network roundtrip.
func (w *Writer) WriteEvent(ctx context.Context, ev model.SignalEvent) error {
	jsonData := string(ev.JSON())

	pipe := w.client.Pipeline()
	pipe.Set(ctx, latestKey(ev.Symbol, ev.Interval), jsonData, defaultLatestTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey(ev.Symbol, ev.Interval),
		MaxLen: eventStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, pubsubChannel(ev.Symbol, ev.Interval), jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline %s: %w", ev.Key(), err)
	}
	return nil
}

// OnSignal satisfies the detector's observer contract.
func (w *Writer) OnSignal(ctx context.Context, ev model.SignalEvent) error {
	return w.WriteEvent(ctx, ev)
}

// Run drains the event channel into Redis. Blocks until ctx is cancelled or
// the channel is closed.
func (w *Writer) Run(ctx context.Context, events <-chan model.SignalEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := w.WriteEvent(ctx, ev); err != nil {
				log.Printf("[redis] write event: %v", err)
			}
		}
	}
}

// CacheSymbols stores the symbol universe with a TTL so API replicas can
// serve listings without hitting the exchange.
func (w *Writer) CacheSymbols(ctx context.Context, symbols []string) error {
	data, err := json.Marshal(symbols)
	if err != nil {
		return fmt.Errorf("redis marshal symbols: %w", err)
	}
	if err := w.client.Set(ctx, "symbols:all", data, symbolsCacheTTL).Err(); err != nil {
		return fmt.Errorf("redis cache symbols: %w", err)
	}
	return nil
}

// Close closes the client.
func (w *Writer) Close() error {
	return w.client.Close()
}
