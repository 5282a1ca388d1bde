// Package backtest replays a historical candle series through the scoring
// engine and simulates a simple signal-following position to measure how the
// score behaves, not to promise profitability.
package backtest

import (
	"fmt"
	"math"

	"signal-systemv1/internal/indicator"
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/signal"
)

// DefaultFeeRate is the per-side taker fee applied on every position change.
const DefaultFeeRate = 0.001

// Config configures a backtest run.
type Config struct {
	FeeRate        float64       // per-side fee (default 0.001)
	UsePriceAction bool          // enable the price-action category
	Scoring        signal.Config // zero value selects defaults
	InitialEquity  float64       // default 10000
}

// Trade is one closed round trip.
type Trade struct {
	EntryTS    int64   `json:"entry_ts"`
	ExitTS     int64   `json:"exit_ts"`
	Direction  string  `json:"direction"` // BUY or SELL at entry
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Return     float64 `json:"return"` // net of fees, as a fraction
}

// Result summarizes a backtest run.
type Result struct {
	Symbol       string  `json:"symbol"`
	Interval     string  `json:"interval"`
	Candles      int     `json:"candles"`
	Trades       []Trade `json:"trades"`
	TotalReturn  float64 `json:"total_return"` // fraction over initial equity
	MaxDrawdown  float64 `json:"max_drawdown"` // fraction, reported positive
	WinRate      float64 `json:"win_rate"`     // fraction of profitable trades
	FinalEquity  float64 `json:"final_equity"`
	SignalsFired int     `json:"signals_fired"`
}

// Run scores the series and walks it candle by candle: a BUY signal opens or
// flips to a long, a SELL to a short, HOLD keeps the current position. Any
// open position is closed on the last candle. Fees apply per side.
func Run(symbol, interval string, candles []model.Candle, cfg Config) (*Result, error) {
	if cfg.FeeRate <= 0 {
		cfg.FeeRate = DefaultFeeRate
	}
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = 10000
	}
	if cfg.Scoring == (signal.Config{}) {
		cfg.Scoring = signal.DefaultConfig()
	}

	rows, err := indicator.Compute(candles, nil)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	engine, err := signal.NewEngine(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	scored, err := engine.Score(rows, cfg.UsePriceAction)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	res := &Result{
		Symbol:   symbol,
		Interval: interval,
		Candles:  len(candles),
	}

	equity := cfg.InitialEquity
	peak := equity
	var position model.Direction // zero value means flat
	var entryPrice float64
	var entryTS int64

	closePosition := func(ts int64, price float64) {
		ret := (price - entryPrice) / entryPrice
		if position == model.DirectionSell {
			ret = -ret
		}
		ret -= 2 * cfg.FeeRate
		equity *= 1 + ret

		res.Trades = append(res.Trades, Trade{
			EntryTS:    entryTS,
			ExitTS:     ts,
			Direction:  string(position),
			EntryPrice: entryPrice,
			ExitPrice:  price,
			Return:     ret,
		})
		position = ""
	}

	for i, s := range scored.Signals {
		row := rows[i]
		ts := row.TS.Unix()
		price := row.Close

		if s.Direction != model.DirectionHold {
			res.SignalsFired++
		}

		switch s.Direction {
		case model.DirectionBuy:
			if position == model.DirectionSell {
				closePosition(ts, price)
			}
			if position == "" {
				position = model.DirectionBuy
				entryPrice = price
				entryTS = ts
			}
		case model.DirectionSell:
			if position == model.DirectionBuy {
				closePosition(ts, price)
			}
			if position == "" {
				position = model.DirectionSell
				entryPrice = price
				entryTS = ts
			}
		}

		// Mark to market for drawdown tracking.
		mtm := equity
		if position != "" {
			unreal := (price - entryPrice) / entryPrice
			if position == model.DirectionSell {
				unreal = -unreal
			}
			mtm = equity * (1 + unreal)
		}
		if mtm > peak {
			peak = mtm
		}
		if peak > 0 {
			dd := (peak - mtm) / peak
			if dd > res.MaxDrawdown {
				res.MaxDrawdown = dd
			}
		}
	}

	if position != "" {
		last := rows[len(rows)-1]
		closePosition(last.TS.Unix(), last.Close)
	}

	res.FinalEquity = equity
	res.TotalReturn = equity/cfg.InitialEquity - 1
	if n := len(res.Trades); n > 0 {
		wins := 0
		for _, t := range res.Trades {
			if t.Return > 0 {
				wins++
			}
		}
		res.WinRate = float64(wins) / float64(n)
	}
	res.MaxDrawdown = math.Abs(res.MaxDrawdown)
	return res, nil
}
