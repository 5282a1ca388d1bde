// cmd/apiserver serves the HTTP API: on-demand signal scoring, multi-
// timeframe confluence, symbol search, backtests and a WebSocket stream of
// live transitions for the configured pairs.
//
// Usage:
//
//	API_ADDR=:8080 SYMBOLS=BTC_USDT go run ./cmd/apiserver
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"signal-systemv1/config"
	"signal-systemv1/internal/api"
	"signal-systemv1/internal/feed"
	"signal-systemv1/internal/fetcher"
	"signal-systemv1/internal/logger"
	"signal-systemv1/internal/metrics"
	redisstore "signal-systemv1/internal/store/redis"
	sqlitestore "signal-systemv1/internal/store/sqlite"
	"signal-systemv1/internal/stream"
	"signal-systemv1/internal/symbols"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	if err := godotenv.Load(); err == nil {
		log.Println("[apiserver] loaded .env")
	}
	cfg := config.Load()
	if cfg.LogJSON {
		logger.Init("apiserver", slog.LevelInfo)
	}
	log.Println("[apiserver] starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Metrics & health ----
	m := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Symbol universe ----
	symMgr := symbols.NewManager(cfg.MexcSymbolsURL)
	if err := symMgr.Load(ctx); err != nil {
		log.Printf("[apiserver] symbol listing unavailable, using fallback set: %v", err)
	}

	// ---- Optional read stores ----
	var journal *sqlitestore.Reader
	if r, err := sqlitestore.NewReader(cfg.SQLitePath); err == nil {
		journal = r
		defer journal.Close()
	} else {
		log.Printf("[apiserver] event journal unavailable: %v", err)
	}

	var cache *redisstore.Reader
	if r, err := redisstore.NewReader(redisstore.ReaderConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}); err == nil {
		cache = r
		defer cache.Close()
	} else {
		log.Printf("[apiserver] redis cache unavailable: %v", err)
	}

	// ---- API server ----
	fc := fetcher.New(cfg.MexcKlineURL)
	fc.OnFetch = func(d time.Duration) {
		m.FetchDur.Observe(d.Seconds())
	}
	srv := api.NewServer(api.Config{
		Fetcher:        fc,
		Symbols:        symMgr,
		Journal:        journal,
		Cache:          cache,
		UsePriceAction: cfg.UsePriceAction,
	})

	// ---- Live stream for the WS endpoint ----
	var src stream.Feed
	if cfg.Staging {
		src = feed.NewSim(0, 0, 42)
	} else {
		src = feed.NewMexc(feed.MexcConfig{
			URL:          cfg.MexcWSURL,
			PingInterval: cfg.PingInterval,
		})
	}
	det, err := stream.New(src, stream.Config{
		BufferSize:     cfg.BufferSize,
		MinRows:        cfg.MinRows,
		UsePriceAction: cfg.UsePriceAction,
	})
	if err != nil {
		log.Fatalf("[apiserver] detector init failed: %v", err)
	}
	det.OnCandle = func(symbol, interval string) {
		m.CandlesTotal.WithLabelValues(symbol, interval).Inc()
		health.SetFeedConnected(true)
		health.SetLastCandleTime(time.Now().UTC())
	}
	det.RegisterObserver(srv.Hub())
	for _, raw := range cfg.ParseSymbols() {
		sym, _ := symMgr.Validate(raw)
		if _, err := det.Subscribe(sym, cfg.Interval); err != nil {
			log.Printf("[apiserver] subscribe %s: %v", sym, err)
		}
	}
	health.SetActiveSubs(det.Active())
	m.ActiveSubs.Set(float64(len(det.Active())))

	httpSrv := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: srv.Router(),
	}
	go func() {
		log.Printf("[apiserver] listening on %s", cfg.APIAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[apiserver] server error: %v", err)
		}
	}()

	// ---- Wait for shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[apiserver] shutting down...")

	det.StopAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Println("[apiserver] bye")
}
