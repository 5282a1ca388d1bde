// cmd/backtest replays historical candles through the scoring engine and
// simulates a signal-following position. Candles come from the local SQLite
// cache when present, otherwise from the MEXC kline API (and are cached for
// the next run).
//
// Usage:
//
//	go run ./cmd/backtest -symbol BTC_USDT -interval Min15
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"signal-systemv1/config"
	"signal-systemv1/internal/backtest"
	"signal-systemv1/internal/fetcher"
	"signal-systemv1/internal/model"
	sqlitestore "signal-systemv1/internal/store/sqlite"
	"signal-systemv1/internal/symbols"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	symbolFlag := flag.String("symbol", "BTC_USDT", "Contract symbol")
	interval := flag.String("interval", "Min15", "Kline interval")
	fee := flag.Float64("fee", backtest.DefaultFeeRate, "Per-side fee rate")
	priceAction := flag.Bool("price-action", true, "Include the price-action category")
	refresh := flag.Bool("refresh", false, "Refetch candles even when cached")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	sym := symbols.Normalize(*symbolFlag)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	candles := loadCandles(ctx, cfg, sym, *interval, *refresh)
	if len(candles) == 0 {
		log.Fatalf("[backtest] no candles for %s %s", sym, *interval)
	}

	res, err := backtest.Run(sym, *interval, candles, backtest.Config{
		FeeRate:        *fee,
		UsePriceAction: *priceAction,
	})
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Pair:            %-18s ║\n", res.Symbol+" "+res.Interval)
	fmt.Printf("║  Candles:         %-18d ║\n", res.Candles)
	fmt.Printf("║  Signals fired:   %-18d ║\n", res.SignalsFired)
	fmt.Printf("║  Trades:          %-18d ║\n", len(res.Trades))
	fmt.Printf("║  Total return:    %-17.2f%% ║\n", res.TotalReturn*100)
	fmt.Printf("║  Max drawdown:    %-17.2f%% ║\n", res.MaxDrawdown*100)
	fmt.Printf("║  Win rate:        %-17.2f%% ║\n", res.WinRate*100)
	fmt.Printf("║  Final equity:    %-18.2f ║\n", res.FinalEquity)
	fmt.Println("╚══════════════════════════════════════╝")
}

// loadCandles prefers the SQLite cache and falls back to the exchange,
// caching what it fetched.
func loadCandles(ctx context.Context, cfg *config.Config, symbol, interval string, refresh bool) []model.Candle {
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Printf("[backtest] sqlite unavailable: %v", err)
		writer = nil
	} else {
		defer writer.Close()
	}

	if writer != nil && !refresh {
		reader, err := sqlitestore.NewReader(cfg.SQLitePath)
		if err == nil {
			cached, err := reader.ReadCandles(symbol, interval, 0)
			reader.Close()
			if err == nil && len(cached) > 0 {
				log.Printf("[backtest] using %d cached candles", len(cached))
				return cached
			}
		}
	}

	candles, err := fetcher.New(cfg.MexcKlineURL).FetchCandles(ctx, symbol, interval)
	if err != nil {
		log.Fatalf("[backtest] fetch %s %s: %v", symbol, interval, err)
	}
	log.Printf("[backtest] fetched %d candles", len(candles))

	if writer != nil {
		if err := writer.SaveCandles(symbol, interval, candles); err != nil {
			log.Printf("[backtest] cache candles: %v", err)
		}
	}
	return candles
}
