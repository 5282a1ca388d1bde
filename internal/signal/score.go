// Package signal implements the category-weighted scoring engine and the
// multi-timeframe confluence calculator.
//
// The scoring engine converts an indicator-annotated candle series into a
// per-row directional signal with a strength and a human-readable rationale.
// Five independent categories contribute (trend, momentum, volume,
// volatility, price action); a missing indicator column silently excludes
// its sub-signal, which is the expected case when a caller computes only a
// subset of categories.
package signal

import (
	"fmt"
	"time"

	"signal-systemv1/internal/indicator"
	"signal-systemv1/internal/model"
)

// Weights assigns the relative influence of each indicator category.
// All weights must be non-negative and sum to a positive value.
type Weights struct {
	Trend       float64 `json:"trend"`
	Momentum    float64 `json:"momentum"`
	Volume      float64 `json:"volume"`
	Volatility  float64 `json:"volatility"`
	PriceAction float64 `json:"price_action"`
}

// DefaultWeights returns the default category weights (sum 1.0).
func DefaultWeights() Weights {
	return Weights{
		Trend:       0.30,
		Momentum:    0.25,
		Volume:      0.20,
		Volatility:  0.15,
		PriceAction: 0.10,
	}
}

func (w Weights) validate() error {
	for _, v := range []float64{w.Trend, w.Momentum, w.Volume, w.Volatility, w.PriceAction} {
		if v < 0 {
			return fmt.Errorf("signal weights: negative weight")
		}
	}
	if w.Trend+w.Momentum+w.Volume+w.Volatility+w.PriceAction <= 0 {
		return fmt.Errorf("signal weights: must sum to a positive value")
	}
	return nil
}

// Tunable empirical constants. The thresholds have no stated derivation in
// the strategy; treat them as configuration, not invariants.
const (
	// DefaultThreshold is the weighted-total magnitude above which a row
	// classifies as BUY or SELL.
	DefaultThreshold = 1.5
	// DefaultMaxScore is the approximate maximum achievable weighted total,
	// used to normalize strength into [0,1].
	DefaultMaxScore = 10.0
)

// Config configures a scoring engine.
type Config struct {
	Weights   Weights
	Threshold float64 // decision threshold magnitude (default 1.5)
	MaxScore  float64 // strength normalization ceiling (default 10)
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights:   DefaultWeights(),
		Threshold: DefaultThreshold,
		MaxScore:  DefaultMaxScore,
	}
}

// Engine scores indicator rows. Stateless after construction, safe for
// concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine validates the configuration and returns a scoring engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Weights.validate(); err != nil {
		return nil, err
	}
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("signal config: threshold must be positive, got %v", cfg.Threshold)
	}
	if cfg.MaxScore <= 0 {
		return nil, fmt.Errorf("signal config: max score must be positive, got %v", cfg.MaxScore)
	}
	return &Engine{cfg: cfg}, nil
}

// Result is the output of scoring one series: a signal per input row plus
// series-level price-action context (populated only when price action was
// enabled).
type Result struct {
	Signals []model.ScoredSignal

	// Price-action context for the series as a whole.
	Patterns      []Patterns // per-row, aligned with Signals; nil if disabled
	Trend         model.TrendStructure
	Support       float64
	Resistance    float64
	HasSupport    bool
	HasResistance bool
}

// Latest returns the last row's signal. Callers must ensure the result is
// non-empty (Score rejects empty input, so any Result has at least one row).
func (r *Result) Latest() model.ScoredSignal {
	return r.Signals[len(r.Signals)-1]
}

// Score runs the default engine over rows. See Engine.Score.
func Score(rows []model.IndicatorRow, usePriceAction bool) (*Result, error) {
	eng, err := NewEngine(DefaultConfig())
	if err != nil {
		return nil, err
	}
	return eng.Score(rows, usePriceAction)
}

// Score produces one ScoredSignal per input row, aligned index-for-index.
// Rows missing indicator columns lose only the affected sub-signals; the
// only errors are structurally invalid input.
func (e *Engine) Score(rows []model.IndicatorRow, usePriceAction bool) (*Result, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("signal score: empty row series")
	}
	var prev time.Time
	for i := range rows {
		if i > 0 && !rows[i].TS.After(prev) {
			return nil, fmt.Errorf("signal score: non-monotonic timestamp at index %d", i)
		}
		prev = rows[i].TS
	}

	res := &Result{}
	if usePriceAction {
		res.Patterns = detectPatterns(rows)
		res.Support, res.Resistance, res.HasSupport, res.HasResistance =
			detectSupportResistance(rows, srWindow)
		res.Trend = analyzeTrendStructure(rows, trendLookback)
	}

	cats := []categoryScore{
		trendScores(rows),
		momentumScores(rows),
		volumeScores(rows),
		volatilityScores(rows),
	}
	if usePriceAction {
		cats = append(cats, priceActionScores(res.Patterns))
	}
	weights := []float64{
		e.cfg.Weights.Trend,
		e.cfg.Weights.Momentum,
		e.cfg.Weights.Volume,
		e.cfg.Weights.Volatility,
		e.cfg.Weights.PriceAction,
	}

	res.Signals = make([]model.ScoredSignal, len(rows))
	for i := range rows {
		total := 0.0
		for c, cat := range cats {
			total += cat.scores[i] * weights[c]
		}

		dir := model.DirectionHold
		if total > e.cfg.Threshold {
			dir = model.DirectionBuy
		} else if total < -e.cfg.Threshold {
			dir = model.DirectionSell
		}

		strength := abs(total) / e.cfg.MaxScore
		if strength > 1 {
			strength = 1
		}

		res.Signals[i] = model.ScoredSignal{
			TS:         rows[i].TS,
			Direction:  dir,
			Score:      total,
			Strength:   strength,
			Reason:     reasonFor(dir, total),
			Components: componentsFor(cats, i),
		}
	}

	return res, nil
}

// categoryScore is the per-row signed score of one indicator category plus
// the names of the indicators that were present to contribute.
type categoryScore struct {
	scores     []float64
	components []string
}

func reasonFor(dir model.Direction, total float64) string {
	switch dir {
	case model.DirectionBuy:
		return fmt.Sprintf("Bullish confluence (Score: %.2f)", total)
	case model.DirectionSell:
		return fmt.Sprintf("Bearish confluence (Score: %.2f)", total)
	}
	return fmt.Sprintf("Neutral (Score: %.2f)", total)
}

// componentsFor lists "name(score)" for every indicator of every category
// whose score fired on this row, in category order.
func componentsFor(cats []categoryScore, i int) []string {
	var out []string
	for _, cat := range cats {
		if cat.scores[i] == 0 {
			continue
		}
		for _, name := range cat.components {
			out = append(out, fmt.Sprintf("%s(%.1f)", name, cat.scores[i]))
		}
	}
	return out
}

// trendScores: MACD line/signal crossovers (+-2), EMA fast/slow position
// (+-1), ADX strong-trend bonus (+0.5) and close vs Parabolic SAR (+-1).
func trendScores(rows []model.IndicatorRow) categoryScore {
	n := len(rows)
	cat := categoryScore{scores: make([]float64, n)}

	if hasColumn(rows, indicator.MACD) && hasColumn(rows, indicator.MACDSignal) {
		for i := 1; i < n; i++ {
			m, ok1 := rows[i].Value(indicator.MACD)
			s, ok2 := rows[i].Value(indicator.MACDSignal)
			pm, ok3 := rows[i-1].Value(indicator.MACD)
			ps, ok4 := rows[i-1].Value(indicator.MACDSignal)
			if !(ok1 && ok2 && ok3 && ok4) {
				continue
			}
			if m > s && pm <= ps {
				cat.scores[i] += 2
			} else if m < s && pm >= ps {
				cat.scores[i] -= 2
			}
		}
		cat.components = append(cat.components, "MACD")
	}

	if hasColumn(rows, indicator.EMA20) && hasColumn(rows, indicator.EMA50) {
		for i := 0; i < n; i++ {
			fast, ok1 := rows[i].Value(indicator.EMA20)
			slow, ok2 := rows[i].Value(indicator.EMA50)
			if !(ok1 && ok2) {
				continue
			}
			if fast > slow {
				cat.scores[i]++
			} else if fast < slow {
				cat.scores[i]--
			}
		}
		cat.components = append(cat.components, "EMA")
	}

	if hasColumn(rows, indicator.ADX) {
		for i := 0; i < n; i++ {
			if adx, ok := rows[i].Value(indicator.ADX); ok && adx > 25 {
				cat.scores[i] += 0.5
			}
		}
		cat.components = append(cat.components, "ADX")
	}

	if hasColumn(rows, indicator.PSARLong) || hasColumn(rows, indicator.PSARShort) {
		for i := 0; i < n; i++ {
			if sar, ok := rows[i].Value(indicator.PSARLong); ok && rows[i].Close > sar {
				cat.scores[i]++
			}
			if sar, ok := rows[i].Value(indicator.PSARShort); ok && rows[i].Close < sar {
				cat.scores[i]--
			}
		}
		cat.components = append(cat.components, "PSAR")
	}

	return cat
}

// momentumScores: RSI zones (+-2) and midline crosses (+-1), Williams %R
// zones (+-1), CCI zones (+-1).
func momentumScores(rows []model.IndicatorRow) categoryScore {
	n := len(rows)
	cat := categoryScore{scores: make([]float64, n)}

	if hasColumn(rows, indicator.RSI) {
		for i := 0; i < n; i++ {
			rsi, ok := rows[i].Value(indicator.RSI)
			if !ok {
				continue
			}
			if rsi < 30 {
				cat.scores[i] += 2
			} else if rsi > 70 {
				cat.scores[i] -= 2
			}
			if i == 0 {
				continue
			}
			prev, ok := rows[i-1].Value(indicator.RSI)
			if !ok {
				continue
			}
			if rsi > 50 && prev <= 50 {
				cat.scores[i]++
			} else if rsi < 50 && prev >= 50 {
				cat.scores[i]--
			}
		}
		cat.components = append(cat.components, "RSI")
	}

	if hasColumn(rows, indicator.WILLR) {
		for i := 0; i < n; i++ {
			wr, ok := rows[i].Value(indicator.WILLR)
			if !ok {
				continue
			}
			if wr < -80 {
				cat.scores[i]++
			} else if wr > -20 {
				cat.scores[i]--
			}
		}
		cat.components = append(cat.components, "WILLR")
	}

	if hasColumn(rows, indicator.CCI) {
		for i := 0; i < n; i++ {
			cci, ok := rows[i].Value(indicator.CCI)
			if !ok {
				continue
			}
			if cci < -100 {
				cat.scores[i]++
			} else if cci > 100 {
				cat.scores[i]--
			}
		}
		cat.components = append(cat.components, "CCI")
	}

	return cat
}

// volumeScores: OBV slope against 5 rows back (+-1) and MFI zones (+-1).
func volumeScores(rows []model.IndicatorRow) categoryScore {
	n := len(rows)
	cat := categoryScore{scores: make([]float64, n)}

	if hasColumn(rows, indicator.OBV) {
		for i := 5; i < n; i++ {
			cur, ok1 := rows[i].Value(indicator.OBV)
			old, ok2 := rows[i-5].Value(indicator.OBV)
			if !(ok1 && ok2) {
				continue
			}
			if cur > old {
				cat.scores[i]++
			} else if cur < old {
				cat.scores[i]--
			}
		}
		cat.components = append(cat.components, "OBV")
	}

	if hasColumn(rows, indicator.MFI) {
		for i := 0; i < n; i++ {
			mfi, ok := rows[i].Value(indicator.MFI)
			if !ok {
				continue
			}
			if mfi < 20 {
				cat.scores[i]++
			} else if mfi > 80 {
				cat.scores[i]--
			}
		}
		cat.components = append(cat.components, "MFI")
	}

	return cat
}

// volatilityScores: close outside the Bollinger or Keltner bands scores
// contrarian (+1 below lower, -1 above upper).
func volatilityScores(rows []model.IndicatorRow) categoryScore {
	n := len(rows)
	cat := categoryScore{scores: make([]float64, n)}

	if hasColumn(rows, indicator.BBLower) && hasColumn(rows, indicator.BBUpper) {
		for i := 0; i < n; i++ {
			lo, ok1 := rows[i].Value(indicator.BBLower)
			hi, ok2 := rows[i].Value(indicator.BBUpper)
			if !(ok1 && ok2) {
				continue
			}
			if rows[i].Close < lo {
				cat.scores[i]++
			} else if rows[i].Close > hi {
				cat.scores[i]--
			}
		}
		cat.components = append(cat.components, "BB")
	}

	if hasColumn(rows, indicator.KCLower) && hasColumn(rows, indicator.KCUpper) {
		for i := 0; i < n; i++ {
			lo, ok1 := rows[i].Value(indicator.KCLower)
			hi, ok2 := rows[i].Value(indicator.KCUpper)
			if !(ok1 && ok2) {
				continue
			}
			if rows[i].Close < lo {
				cat.scores[i]++
			} else if rows[i].Close > hi {
				cat.scores[i]--
			}
		}
		cat.components = append(cat.components, "KC")
	}

	return cat
}

// priceActionScores: engulfing patterns weigh double the single-candle
// reversal patterns.
func priceActionScores(patterns []Patterns) categoryScore {
	cat := categoryScore{
		scores: make([]float64, len(patterns)),
		components: []string{
			"Bullish_Engulfing", "Bearish_Engulfing", "Hammer", "Shooting_Star",
		},
	}
	for i, p := range patterns {
		if p.BullishEngulfing {
			cat.scores[i] += 2
		}
		if p.BearishEngulfing {
			cat.scores[i] -= 2
		}
		if p.Hammer {
			cat.scores[i]++
		}
		if p.ShootingStar {
			cat.scores[i]--
		}
	}
	return cat
}

// hasColumn reports whether any row in the series defines the column.
func hasColumn(rows []model.IndicatorRow, name string) bool {
	for i := range rows {
		if _, ok := rows[i].Value(name); ok {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
