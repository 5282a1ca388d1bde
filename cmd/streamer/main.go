// cmd/streamer is the live signal-transition service: it subscribes to MEXC
// kline streams for the configured symbols, re-scores each rolling window on
// every candle and fans emitted transitions out to Redis, SQLite and the
// configured notification channels.
//
// Usage:
//
//	SYMBOLS=BTC_USDT,ETH_USDT INTERVAL=Min15 go run ./cmd/streamer
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"signal-systemv1/config"
	"signal-systemv1/internal/feed"
	"signal-systemv1/internal/logger"
	"signal-systemv1/internal/metrics"
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/notification"
	redisstore "signal-systemv1/internal/store/redis"
	sqlitestore "signal-systemv1/internal/store/sqlite"
	"signal-systemv1/internal/stream"
	"signal-systemv1/internal/symbols"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	if err := godotenv.Load(); err == nil {
		log.Println("[streamer] loaded .env")
	}
	cfg := config.Load()
	if cfg.LogJSON {
		// Routes the plain log lines below through the JSON handler too.
		logger.Init("streamer", slog.LevelInfo)
	}
	log.Println("[streamer] starting...")

	if cfg.Staging {
		log.Println("[streamer] *** STAGING MODE: using synthetic feed instead of MEXC ***")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Metrics & health ----
	m := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Symbol universe ----
	symMgr := symbols.NewManager(cfg.MexcSymbolsURL)
	if !cfg.Staging {
		if err := symMgr.Load(ctx); err != nil {
			log.Printf("[streamer] symbol listing unavailable, using fallback set: %v", err)
		}
	}

	// ---- SQLite journal ----
	journal, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[streamer] sqlite open failed: %v", err)
	}
	defer journal.Close()

	// ---- Redis cache behind a circuit breaker ----
	var buffered *redisstore.BufferedWriter
	rdb, err := redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[streamer] redis unavailable, cache disabled: %v", err)
	} else {
		defer rdb.Close()
		cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
		cb.OnStateChange = func(from, to redisstore.State) {
			log.Printf("[streamer] redis circuit breaker %s -> %s", from, to)
			m.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				m.RedisCircuitBreakerTrips.Inc()
			}
		}
		buffered = redisstore.NewBufferedWriter(ctx, rdb, cb, 0)
		buffered.OnBuffer = m.RedisBufferedWrites.Inc

		if err := rdb.CacheSymbols(ctx, symMgr.All()); err != nil {
			log.Printf("[streamer] cache symbols: %v", err)
		}
		health.StartLivenessChecker(ctx, rdb.Client(), journal.DB(), 15*time.Second)
	}

	// ---- Feed ----
	var src stream.Feed
	if cfg.Staging {
		src = feed.NewSim(0, 0, 42)
		health.SetFeedConnected(true)
	} else {
		src = feed.NewMexc(feed.MexcConfig{
			URL:          cfg.MexcWSURL,
			PingInterval: cfg.PingInterval,
			OnReconnect: func() {
				m.WSReconnects.Inc()
				health.SetFeedConnected(false)
			},
			OnMalformed: m.MalformedMessages.Inc,
		})
	}

	// ---- Detector ----
	det, err := stream.New(src, stream.Config{
		BufferSize:     cfg.BufferSize,
		MinRows:        cfg.MinRows,
		UsePriceAction: cfg.UsePriceAction,
	})
	if err != nil {
		log.Fatalf("[streamer] detector init failed: %v", err)
	}
	det.OnCandle = func(symbol, interval string) {
		m.CandlesTotal.WithLabelValues(symbol, interval).Inc()
		health.SetFeedConnected(true)
		health.SetLastCandleTime(time.Now().UTC())
	}
	det.OnReject = func(symbol, interval string) {
		m.RejectedCandles.Inc()
	}
	det.OnScore = func(d time.Duration) {
		m.ScoreDur.Observe(d.Seconds())
	}
	det.OnEmit = func(ev model.SignalEvent) {
		m.SignalsTotal.WithLabelValues(ev.Symbol, ev.Interval, string(ev.Direction)).Inc()
	}

	// ---- Observers: journal, cache, notifications ----
	det.RegisterObserver(stream.ObserverFunc(func(_ context.Context, ev model.SignalEvent) error {
		return journal.SaveEvent(ev)
	}))
	if buffered != nil {
		det.RegisterObserver(buffered)
	}

	notifiers := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[streamer] telegram notifications enabled")
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[streamer] webhook notifications enabled")
	}
	dispatcher := notification.NewDispatcher(notifiers...)
	dispatcher.OnFailure = m.NotifyFails.Inc
	det.RegisterObserver(dispatcher)

	// ---- Subscriptions ----
	for _, raw := range cfg.ParseSymbols() {
		sym, ok := symMgr.Validate(raw)
		if !ok && !cfg.Staging {
			log.Printf("[streamer] skipping unknown symbol %q (suggestions: %v)",
				raw, symMgr.FuzzySearch(raw, 3))
			continue
		}
		if _, err := det.Subscribe(sym, cfg.Interval); err != nil {
			log.Printf("[streamer] subscribe %s: %v", sym, err)
		}
	}
	active := det.Active()
	if len(active) == 0 {
		log.Fatal("[streamer] no active subscriptions, nothing to do")
	}
	health.SetActiveSubs(active)
	m.ActiveSubs.Set(float64(len(active)))
	log.Printf("[streamer] streaming %d pairs at %s", len(active), cfg.Interval)

	// ---- Wait for shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[streamer] shutting down...")

	det.StopAll()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	log.Println("[streamer] bye")
}
