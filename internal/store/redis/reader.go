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

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader serves the latest-signal cache, recent event history and the
// cached symbol universe.
type Reader struct {
	client *goredis.Client
}

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
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

	log.Printf("[redis-reader] connected to %s", cfg.Addr)
	return &Reader{client: client}, nil
}

// LatestSignal returns the cached latest event for a pair, or (nil, nil)
// when no signal has been cached or the TTL expired.
func (r *Reader) LatestSignal(ctx context.Context, symbol, interval string) (*model.SignalEvent, error) {
	data, err := r.client.Get(ctx, latestKey(symbol, interval)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get latest: %w", err)
	}
	var ev model.SignalEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, fmt.Errorf("redis unmarshal latest: %w", err)
	}
	return &ev, nil
}

// RecentEvents returns up to limit transitions from the pair's event stream,
// newest first.
func (r *Reader) RecentEvents(ctx context.Context, symbol, interval string, limit int64) ([]model.SignalEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	msgs, err := r.client.XRevRangeN(ctx, streamKey(symbol, interval), "+", "-", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("redis xrevrange: %w", err)
	}

	events := make([]model.SignalEvent, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var ev model.SignalEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			log.Printf("[redis-reader] skipping malformed event %s: %v", msg.ID, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// CachedSymbols returns the cached symbol universe, or nil when the cache
// is cold.
func (r *Reader) CachedSymbols(ctx context.Context) ([]string, error) {
	data, err := r.client.Get(ctx, "symbols:all").Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get symbols: %w", err)
	}
	var symbols []string
	if err := json.Unmarshal([]byte(data), &symbols); err != nil {
		return nil, fmt.Errorf("redis unmarshal symbols: %w", err)
	}
	return symbols, nil
}

// Close closes the client.
func (r *Reader) Close() error {
	return r.client.Close()
}
