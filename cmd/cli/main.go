// cmd/cli is a one-shot signal query tool: fetch, score and print.
//
// Usage:
//
//	go run ./cmd/cli -symbol BTC_USDT -interval Min15
//	go run ./cmd/cli -symbol btcusdt -mtf
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"signal-systemv1/config"
	"signal-systemv1/internal/api"
	"signal-systemv1/internal/fetcher"
	"signal-systemv1/internal/indicator"
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/signal"
	"signal-systemv1/internal/symbols"
)

func main() {
	log.SetFlags(0)

	symbolFlag := flag.String("symbol", "BTC_USDT", "Contract symbol (BTC_USDT, btcusdt, ...)")
	intervalFlag := flag.String("interval", "Min15", "Kline interval (Min1..Day1)")
	mtf := flag.Bool("mtf", false, "Run multi-timeframe confluence instead of a single interval")
	priceAction := flag.Bool("price-action", true, "Include the price-action category")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	symMgr := symbols.NewManager(cfg.MexcSymbolsURL)
	if err := symMgr.Load(ctx); err != nil {
		log.Printf("warning: symbol listing unavailable, using fallback set")
	}
	sym, ok := symMgr.Validate(*symbolFlag)
	if !ok {
		fmt.Printf("unknown symbol %q", *symbolFlag)
		if sug := symMgr.FuzzySearch(*symbolFlag, 5); len(sug) > 0 {
			fmt.Printf(", did you mean %v", sug)
		}
		fmt.Println("?")
		os.Exit(1)
	}

	client := fetcher.New(cfg.MexcKlineURL)
	engine, err := signal.NewEngine(signal.DefaultConfig())
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	if *mtf {
		runMTF(ctx, client, engine, sym, *priceAction)
		return
	}
	runSingle(ctx, client, engine, sym, *intervalFlag, *priceAction)
}

func score(ctx context.Context, client *fetcher.Client, engine *signal.Engine,
	symbol, interval string, priceAction bool) ([]model.IndicatorRow, *signal.Result, error) {

	candles, err := client.FetchCandles(ctx, symbol, interval)
	if err != nil {
		return nil, nil, err
	}
	rows, err := indicator.Compute(candles, nil)
	if err != nil {
		return nil, nil, err
	}
	res, err := engine.Score(rows, priceAction)
	if err != nil {
		return nil, nil, err
	}
	return rows, res, nil
}

func runSingle(ctx context.Context, client *fetcher.Client, engine *signal.Engine,
	symbol, interval string, priceAction bool) {

	rows, res, err := score(ctx, client, engine, symbol, interval, priceAction)
	if err != nil {
		log.Fatalf("%s %s: %v", symbol, interval, err)
	}

	latest := res.Latest()
	last := rows[len(rows)-1]

	fmt.Printf("%s %s @ %.6g (%s)\n", symbol, interval, last.Close, last.TS.UTC().Format(time.RFC3339))
	fmt.Printf("  signal:   %s (score %.2f, strength %.2f)\n", latest.Direction, latest.Score, latest.Strength)
	fmt.Printf("  reason:   %s\n", latest.Reason)
	if len(latest.Components) > 0 {
		fmt.Printf("  drivers:  %v\n", latest.Components)
	}
	fmt.Printf("  trend:    %s\n", res.Trend)
	if res.HasSupport {
		fmt.Printf("  support:  %.6g\n", res.Support)
	}
	if res.HasResistance {
		fmt.Printf("  resist:   %.6g\n", res.Resistance)
	}
}

func runMTF(ctx context.Context, client *fetcher.Client, engine *signal.Engine,
	symbol string, priceAction bool) {

	perTF := make(map[string]model.TimeframeSignal)
	for _, interval := range api.DefaultMTFIntervals {
		rows, res, err := score(ctx, client, engine, symbol, interval, priceAction)
		if err != nil {
			log.Printf("  %-6s unavailable: %v", interval, err)
			continue
		}
		latest := res.Latest()
		perTF[interval] = model.TimeframeSignal{
			Direction: latest.Direction,
			Strength:  latest.Strength,
			Trend:     res.Trend,
			Price:     rows[len(rows)-1].Close,
		}
	}

	conf, err := signal.AnalyzeConfluence(perTF, nil)
	if err != nil {
		log.Fatalf("%s: no timeframe data", symbol)
	}

	fmt.Printf("%s multi-timeframe confluence\n", symbol)
	names := make([]string, 0, len(conf.Breakdown))
	for name := range conf.Breakdown {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := conf.Breakdown[name]
		fmt.Printf("  %-6s %-4s strength %.2f weight %.2f contribution %+.3f (%s)\n",
			name, c.Direction, c.Strength, c.Weight, c.Contribution, perTF[name].Trend)
	}
	fmt.Printf("  verdict: %s (score %+.3f, trend %s, agreement %.0f%%)\n",
		conf.FinalSignal, conf.ConfluenceScore, conf.TrendConsensus, conf.TrendAgreement*100)
}
