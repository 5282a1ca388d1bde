package feed

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"signal-systemv1/internal/model"
)

// Sim is a synthetic candle feed for staging runs: a seeded random walk per
// symbol, so two runs with the same configuration produce the same stream.
// Useful for exercising the full detector pipeline without exchange
// connectivity.
type Sim struct {
	StartPrice float64       // defaults to 100
	Tick       time.Duration // emission pace (defaults to 200ms)
	Seed       int64         // combined with the symbol for per-stream determinism
}

// NewSim creates a synthetic feed.
func NewSim(startPrice float64, tick time.Duration, seed int64) *Sim {
	if startPrice <= 0 {
		startPrice = 100
	}
	if tick <= 0 {
		tick = 200 * time.Millisecond
	}
	return &Sim{StartPrice: startPrice, Tick: tick, Seed: seed}
}

// Subscribe emits one synthetic candle per tick until ctx is cancelled.
func (s *Sim) Subscribe(ctx context.Context, symbol, interval string, out chan<- model.Candle) error {
	h := fnv.New64a()
	h.Write([]byte(symbol + ":" + interval))
	rng := rand.New(rand.NewSource(s.Seed ^ int64(h.Sum64())))

	price := s.StartPrice
	ts := time.Now().UTC().Truncate(time.Minute)

	ticker := time.NewTicker(s.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		open := price
		drift := price * 0.002 * (rng.Float64()*2 - 1)
		price += drift
		high := maxF(open, price) * (1 + rng.Float64()*0.001)
		low := minF(open, price) * (1 - rng.Float64()*0.001)

		c := model.Candle{
			TS:     ts,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: 100 + rng.Float64()*900,
		}
		ts = ts.Add(time.Minute)

		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
