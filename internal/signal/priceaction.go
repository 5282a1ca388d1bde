package signal

import "signal-systemv1/internal/model"

const (
	// srWindow is the centered rolling window for pivot detection; levels
	// are undefined below 2*srWindow rows.
	srWindow = 20
	// trendLookback bounds the slice inspected for swing structure.
	trendLookback = 50
	// swingMargin is the number of rows on each side a swing point must
	// dominate.
	swingMargin = 5
)

// Patterns holds the candlestick pattern booleans for one row, derived from
// body/shadow geometry.
type Patterns struct {
	Doji             bool `json:"doji"`
	Hammer           bool `json:"hammer"`
	ShootingStar     bool `json:"shooting_star"`
	BullishEngulfing bool `json:"bullish_engulfing"`
	BearishEngulfing bool `json:"bearish_engulfing"`
}

// Any reports whether any pattern fired on this row.
func (p Patterns) Any() bool {
	return p.Doji || p.Hammer || p.ShootingStar || p.BullishEngulfing || p.BearishEngulfing
}

// detectPatterns derives per-row candlestick patterns. Engulfing patterns
// need a prior row; the first row can only carry single-candle patterns.
func detectPatterns(rows []model.IndicatorRow) []Patterns {
	out := make([]Patterns, len(rows))
	for i := range rows {
		c := rows[i].Candle
		body := abs(c.Close - c.Open)
		upper := c.High - maxOf(c.Open, c.Close)
		lower := minOf(c.Open, c.Close) - c.Low
		total := c.High - c.Low

		if total > 0 {
			out[i].Doji = body/total < 0.1
			small := body/total < 0.3
			out[i].Hammer = small && lower > 2*body && upper < body
			out[i].ShootingStar = small && upper > 2*body && lower < body
		}

		if i == 0 {
			continue
		}
		p := rows[i-1].Candle
		out[i].BullishEngulfing = c.Close > c.Open &&
			p.Close < p.Open &&
			c.Open < p.Close &&
			c.Close > p.Open
		out[i].BearishEngulfing = c.Close < c.Open &&
			p.Close > p.Open &&
			c.Open > p.Close &&
			c.Close < p.Open
	}
	return out
}

// detectSupportResistance finds the nearest pivot levels around the last
// close: support is the highest pivot low below it, resistance the lowest
// pivot high above it. Pivots are rows whose high (low) is the extremum of
// a centered rolling window. Requires at least 2*window rows.
func detectSupportResistance(rows []model.IndicatorRow, window int) (support, resistance float64, hasSupport, hasResistance bool) {
	n := len(rows)
	if n < 2*window {
		return 0, 0, false, false
	}

	half := window / 2
	current := rows[n-1].Close

	for i := range rows {
		lo := i - half
		hi := i + (window - half - 1)
		if lo < 0 || hi >= n {
			continue
		}

		isPivotHigh, isPivotLow := true, true
		for j := lo; j <= hi; j++ {
			if rows[j].High > rows[i].High {
				isPivotHigh = false
			}
			if rows[j].Low < rows[i].Low {
				isPivotLow = false
			}
		}

		if isPivotHigh && rows[i].High > current {
			if !hasResistance || rows[i].High < resistance {
				resistance = rows[i].High
				hasResistance = true
			}
		}
		if isPivotLow && rows[i].Low < current {
			if !hasSupport || rows[i].Low > support {
				support = rows[i].Low
				hasSupport = true
			}
		}
	}
	return support, resistance, hasSupport, hasResistance
}

// analyzeTrendStructure labels the series from its confirmed swing points:
// higher highs plus higher lows is an uptrend, lower highs plus lower lows
// a downtrend, anything else sideways. A swing point must be the strict
// extremum over swingMargin rows on each side within the lookback slice.
func analyzeTrendStructure(rows []model.IndicatorRow, lookback int) model.TrendStructure {
	n := len(rows)
	if n < lookback {
		return model.TrendInsufficient
	}

	recent := rows[n-lookback:]
	if len(recent) < 2*swingMargin+1 {
		return model.TrendInsufficient
	}

	var swingHighs, swingLows []float64
	for i := swingMargin; i < len(recent)-swingMargin; i++ {
		isHigh, isLow := true, true
		for j := i - swingMargin; j <= i+swingMargin; j++ {
			if j == i {
				continue
			}
			if recent[j].High >= recent[i].High {
				isHigh = false
			}
			if recent[j].Low <= recent[i].Low {
				isLow = false
			}
		}
		if isHigh {
			swingHighs = append(swingHighs, recent[i].High)
		}
		if isLow {
			swingLows = append(swingLows, recent[i].Low)
		}
	}

	if len(swingHighs) < 2 || len(swingLows) < 2 {
		return model.TrendSideways
	}

	lastHigh, prevHigh := swingHighs[len(swingHighs)-1], swingHighs[len(swingHighs)-2]
	lastLow, prevLow := swingLows[len(swingLows)-1], swingLows[len(swingLows)-2]

	switch {
	case lastHigh > prevHigh && lastLow > prevLow:
		return model.TrendUp
	case lastHigh < prevHigh && lastLow < prevLow:
		return model.TrendDown
	}
	return model.TrendSideways
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
