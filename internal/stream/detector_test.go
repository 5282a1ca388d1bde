package stream

import (
	"context"
	"testing"
	"time"

	"signal-systemv1/internal/model"
	"signal-systemv1/internal/signal"
)

// fakeFeed relays candles pushed by the test into the worker's channel.
type fakeFeed struct {
	ch chan model.Candle
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{ch: make(chan model.Candle, 64)}
}

func (f *fakeFeed) Subscribe(ctx context.Context, symbol, interval string, out chan<- model.Candle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-f.ch:
			select {
			case out <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Price action only, with a low threshold, so engulfing candles flip the
// direction deterministically without indicator warm-up.
func patternConfig() Config {
	return Config{
		BufferSize:     16,
		MinRows:        1,
		UsePriceAction: true,
		Scoring: signal.Config{
			Weights:   signal.Weights{PriceAction: 1},
			Threshold: 0.1,
			MaxScore:  10,
		},
	}
}

func detCandle(i int, o, h, l, c float64) model.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return model.Candle{
		TS: base.Add(time.Duration(i) * time.Minute),
		Open: o, High: h, Low: l, Close: c, Volume: 1000,
	}
}

func waitAccept(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker to accept a candle")
	}
}

func TestDetector_EmitsOnTransitionsOnly(t *testing.T) {
	feed := newFakeFeed()
	det, err := New(feed, patternConfig())
	if err != nil {
		t.Fatal(err)
	}

	accepted := make(chan struct{}, 64)
	det.OnCandle = func(symbol, interval string) { accepted <- struct{}{} }

	events := make(chan model.SignalEvent, 64)
	det.RegisterObserver(ObserverFunc(func(ctx context.Context, ev model.SignalEvent) error {
		events <- ev
		return nil
	}))

	if _, err := det.Subscribe("BTC_USDT", "Min15"); err != nil {
		t.Fatal(err)
	}
	defer det.StopAll()

	candles := []model.Candle{
		// 0: red setup candle, no pattern, HOLD.
		detCandle(0, 101, 101.5, 99.5, 100),
		// 1: bullish engulfing, first BUY.
		detCandle(1, 99.5, 102.5, 99, 102),
		// 2: small green candle, HOLD, must not emit.
		detCandle(2, 100, 101, 99.9, 100.8),
		// 3: bearish engulfing of row 2, SELL.
		detCandle(3, 101, 101.2, 99.3, 99.5),
		// 4: the forming bar for row 3 re-delivered unchanged; still SELL,
		// debounce must swallow it.
		detCandle(3, 101, 101.2, 99.3, 99.5),
		// 5: small green candle, HOLD.
		detCandle(5, 100, 101, 99.9, 100.8),
		// 6: row 5's timestamp again, now a bullish engulfing of row 3.
		// Exercises the replace-then-rescore path and flips back to BUY.
		detCandle(5, 99, 102, 98.8, 101.5),
	}
	for _, c := range candles {
		feed.ch <- c
		waitAccept(t, accepted)
	}

	det.StopAll()
	close(events)

	var got []model.Direction
	for ev := range events {
		if ev.Symbol != "BTC_USDT" || ev.Interval != "Min15" {
			t.Errorf("event carries wrong pair: %s %s", ev.Symbol, ev.Interval)
		}
		got = append(got, ev.Direction)
	}
	want := []model.Direction{model.DirectionBuy, model.DirectionSell, model.DirectionBuy}
	if len(got) != len(want) {
		t.Fatalf("emitted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("emitted %v, want %v", got, want)
		}
	}
}

func TestDetector_ObserverBackfill(t *testing.T) {
	feed := newFakeFeed()
	det, err := New(feed, patternConfig())
	if err != nil {
		t.Fatal(err)
	}
	accepted := make(chan struct{}, 64)
	det.OnCandle = func(symbol, interval string) { accepted <- struct{}{} }

	if _, err := det.Subscribe("ETH_USDT", "Min15"); err != nil {
		t.Fatal(err)
	}
	defer det.StopAll()

	// Registered after the worker started: must still receive events.
	late := make(chan model.SignalEvent, 8)
	det.RegisterObserver(ObserverFunc(func(ctx context.Context, ev model.SignalEvent) error {
		late <- ev
		return nil
	}))

	feed.ch <- detCandle(0, 101, 101.5, 99.5, 100)
	waitAccept(t, accepted)
	feed.ch <- detCandle(1, 99.5, 102.5, 99, 102)
	waitAccept(t, accepted)

	select {
	case ev := <-late:
		if ev.Direction != model.DirectionBuy {
			t.Errorf("expected BUY, got %s", ev.Direction)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("late observer never received the event")
	}
}

func TestDetector_SubscribeIdempotent(t *testing.T) {
	det, err := New(newFakeFeed(), patternConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer det.StopAll()

	a, err := det.Subscribe("BTC_USDT", "Min15")
	if err != nil {
		t.Fatal(err)
	}
	b, err := det.Subscribe("BTC_USDT", "Min15")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("re-subscribing the same pair should return the same handle")
	}
	if got := det.Active(); len(got) != 1 || got[0] != "BTC_USDT:Min15" {
		t.Errorf("active = %v, want exactly the one key", got)
	}

	det.Unsubscribe(a)
	if got := det.Active(); len(got) != 0 {
		t.Errorf("active after unsubscribe = %v, want empty", got)
	}
	// Unknown handle: no-op.
	det.Unsubscribe(&Subscription{Symbol: "XRP_USDT", Interval: "Min15"})
}

func TestDetector_UnsubscribeStopsDelivery(t *testing.T) {
	feed := newFakeFeed()
	det, err := New(feed, patternConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer det.StopAll()

	accepted := make(chan struct{}, 8)
	det.OnCandle = func(symbol, interval string) { accepted <- struct{}{} }

	sub, err := det.Subscribe("BTC_USDT", "Min15")
	if err != nil {
		t.Fatal(err)
	}
	feed.ch <- detCandle(0, 101, 101.5, 99.5, 100)
	waitAccept(t, accepted)

	det.Unsubscribe(sub)

	// The worker is gone; a pushed candle must never be accepted.
	feed.ch <- detCandle(1, 99.5, 102.5, 99, 102)
	select {
	case <-accepted:
		t.Error("candle accepted after unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDetector_RejectsBadCandles(t *testing.T) {
	feed := newFakeFeed()
	det, err := New(feed, patternConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer det.StopAll()

	accepted := make(chan struct{}, 8)
	det.OnCandle = func(symbol, interval string) { accepted <- struct{}{} }

	if _, err := det.Subscribe("BTC_USDT", "Min15"); err != nil {
		t.Fatal(err)
	}

	feed.ch <- detCandle(1, 101, 101.5, 99.5, 100)
	waitAccept(t, accepted)

	// Non-positive price: dropped before buffering.
	bad := detCandle(2, 101, 101.5, 99.5, 100)
	bad.Close = -1
	feed.ch <- bad
	// Older than the newest buffered candle: rejected.
	feed.ch <- detCandle(0, 101, 101.5, 99.5, 100)
	// A valid successor is still accepted.
	feed.ch <- detCandle(3, 101, 101.5, 99.5, 100)
	waitAccept(t, accepted)

	select {
	case <-accepted:
		t.Error("rejected candle was counted as accepted")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDetector_Lifecycle(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Error("expected error for nil feed")
	}

	det, err := New(newFakeFeed(), patternConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := det.Subscribe("", "Min15"); err == nil {
		t.Error("expected error for empty symbol")
	}

	// Safe with zero subscriptions, and repeatable.
	det.StopAll()
	det.StopAll()

	if _, err := det.Subscribe("BTC_USDT", "Min15"); err == nil {
		t.Error("expected error subscribing after StopAll")
	}
}
