package indicator

import "signal-systemv1/internal/model"

// computeTrend derives moving averages, MACD, ADX and Parabolic SAR.
func computeTrend(rows []model.IndicatorRow) {
	cl := closes(rows)

	ema20, f20 := emaSeries(cl, 20)
	setSeries(rows, EMA20, ema20, f20)
	ema50, f50 := emaSeries(cl, 50)
	setSeries(rows, EMA50, ema50, f50)
	sma200, f200 := smaSeries(cl, 200)
	setSeries(rows, SMA200, sma200, f200)

	computeMACD(rows, cl, 12, 26, 9)
	computeADX(rows, 14)
	computePSAR(rows, 0.02, 0.2)
}

// smaSeries returns the simple moving average and its first defined index.
func smaSeries(values []float64, period int) ([]float64, int) {
	out := make([]float64, len(values))
	if len(values) < period {
		return out, len(values)
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, period - 1
}

// emaSeries returns the exponential moving average seeded with an SMA over
// the first period values, and its first defined index.
func emaSeries(values []float64, period int) ([]float64, int) {
	out := make([]float64, len(values))
	if len(values) < period {
		return out, len(values)
	}
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	out[period-1] = seed / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out, period - 1
}

// computeMACD sets the MACD line (fast EMA - slow EMA) and its signal line
// (EMA of the MACD line).
func computeMACD(rows []model.IndicatorRow, cl []float64, fast, slow, signal int) {
	emaFast, _ := emaSeries(cl, fast)
	emaSlow, firstSlow := emaSeries(cl, slow)
	if firstSlow >= len(cl) {
		return
	}

	macd := make([]float64, len(cl))
	for i := firstSlow; i < len(cl); i++ {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	setSeries(rows, MACD, macd, firstSlow)

	// Signal line: EMA over the defined MACD suffix.
	sig, firstSig := emaSeries(macd[firstSlow:], signal)
	if firstSig >= len(macd[firstSlow:]) {
		return
	}
	for i := firstSlow + firstSig; i < len(cl); i++ {
		rows[i].Set(MACDSignal, sig[i-firstSlow])
	}
}

// computeADX sets the Average Directional Index using Wilder's smoothing.
func computeADX(rows []model.IndicatorRow, period int) {
	n := len(rows)
	if n < 2*period+1 {
		return
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		h, l, pc := rows[i].High, rows[i].Low, rows[i-1].Close
		tr[i] = maxOf3(h-l, abs(h-pc), abs(l-pc))

		up := h - rows[i-1].High
		down := rows[i-1].Low - l
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder smoothing: seed with the sum of the first period values,
	// then s = s - s/period + x.
	var sTR, sPlus, sMinus float64
	for i := 1; i <= period; i++ {
		sTR += tr[i]
		sPlus += plusDM[i]
		sMinus += minusDM[i]
	}

	p := float64(period)
	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if i > period {
			sTR = sTR - sTR/p + tr[i]
			sPlus = sPlus - sPlus/p + plusDM[i]
			sMinus = sMinus - sMinus/p + minusDM[i]
		}
		if sTR == 0 {
			continue
		}
		plusDI := 100 * sPlus / sTR
		minusDI := 100 * sMinus / sTR
		if plusDI+minusDI == 0 {
			continue
		}
		dx[i] = 100 * abs(plusDI-minusDI) / (plusDI + minusDI)
	}

	// ADX: Wilder average of DX, seeded with the mean of the first period
	// DX values.
	seed := 0.0
	for i := period; i < 2*period; i++ {
		seed += dx[i]
	}
	adx := seed / p
	rows[2*period-1].Set(ADX, adx)
	for i := 2 * period; i < n; i++ {
		adx = (adx*(p-1) + dx[i]) / p
		rows[i].Set(ADX, adx)
	}
}

// computePSAR sets the Parabolic Stop-and-Reverse. While the trend is up the
// SAR trails below price and is published as PSARLong; in a downtrend it
// trails above price as PSARShort. Only one of the two columns is defined
// per row, matching how scorers compare close against each side.
func computePSAR(rows []model.IndicatorRow, afStep, afMax float64) {
	n := len(rows)
	if n < 2 {
		return
	}

	rising := rows[1].Close >= rows[0].Close
	af := afStep
	var sar, ep float64
	if rising {
		sar = rows[0].Low
		ep = rows[1].High
	} else {
		sar = rows[0].High
		ep = rows[1].Low
	}

	for i := 1; i < n; i++ {
		h, l := rows[i].High, rows[i].Low

		sar = sar + af*(ep-sar)
		if rising {
			// SAR may never enter the prior two bars' range.
			if prev := rows[i-1].Low; sar > prev {
				sar = prev
			}
			if i >= 2 {
				if prev := rows[i-2].Low; sar > prev {
					sar = prev
				}
			}
			if l < sar {
				// Reverse to falling.
				rising = false
				sar = ep
				ep = l
				af = afStep
			} else if h > ep {
				ep = h
				af = minOf(af+afStep, afMax)
			}
		} else {
			if prev := rows[i-1].High; sar < prev {
				sar = prev
			}
			if i >= 2 {
				if prev := rows[i-2].High; sar < prev {
					sar = prev
				}
			}
			if h > sar {
				// Reverse to rising.
				rising = true
				sar = ep
				ep = h
				af = afStep
			} else if l < ep {
				ep = l
				af = minOf(af+afStep, afMax)
			}
		}

		if rising {
			rows[i].Set(PSARLong, sar)
		} else {
			rows[i].Set(PSARShort, sar)
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxOf3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
