package indicator

import "signal-systemv1/internal/model"

// computeMomentum derives RSI, Williams %R, CCI, ROC and the stochastic
// oscillator.
func computeMomentum(rows []model.IndicatorRow) {
	computeRSI(rows, 14)
	computeWILLR(rows, 14)
	computeCCI(rows, 14)
	computeROC(rows, 10)
	computeStoch(rows, 14, 3, 3)
}

// computeRSI sets the Relative Strength Index using Wilder's smoothing.
func computeRSI(rows []model.IndicatorRow, period int) {
	n := len(rows)
	if n < period+1 {
		return
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := rows[i].Close - rows[i-1].Close
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	p := float64(period)
	avgGain /= p
	avgLoss /= p
	rows[period].Set(RSI, rsiFrom(avgGain, avgLoss))

	for i := period + 1; i < n; i++ {
		delta := rows[i].Close - rows[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		rows[i].Set(RSI, rsiFrom(avgGain, avgLoss))
	}
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// computeWILLR sets Williams %R: where the close sits inside the high/low
// range of the lookback window, scaled to [-100, 0].
func computeWILLR(rows []model.IndicatorRow, period int) {
	for i := period - 1; i < len(rows); i++ {
		hh, ll := windowHighLow(rows, i, period)
		if hh == ll {
			continue
		}
		rows[i].Set(WILLR, -100*(hh-rows[i].Close)/(hh-ll))
	}
}

// computeCCI sets the Commodity Channel Index over typical prices.
func computeCCI(rows []model.IndicatorRow, period int) {
	n := len(rows)
	if n < period {
		return
	}
	tp := make([]float64, n)
	for i := range rows {
		tp[i] = (rows[i].High + rows[i].Low + rows[i].Close) / 3
	}

	for i := period - 1; i < n; i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += tp[j]
		}
		mean := sum / float64(period)

		dev := 0.0
		for j := i - period + 1; j <= i; j++ {
			dev += abs(tp[j] - mean)
		}
		dev /= float64(period)
		if dev == 0 {
			continue
		}
		rows[i].Set(CCI, (tp[i]-mean)/(0.015*dev))
	}
}

// computeROC sets the Rate of Change in percent against period rows back.
func computeROC(rows []model.IndicatorRow, period int) {
	for i := period; i < len(rows); i++ {
		prev := rows[i-period].Close
		if prev == 0 {
			continue
		}
		rows[i].Set(ROC, 100*(rows[i].Close-prev)/prev)
	}
}

// computeStoch sets the smoothed stochastic oscillator %K and %D.
func computeStoch(rows []model.IndicatorRow, period, smoothK, smoothD int) {
	n := len(rows)
	raw := make([]float64, n)
	rawOK := make([]bool, n)
	for i := period - 1; i < n; i++ {
		hh, ll := windowHighLow(rows, i, period)
		if hh == ll {
			continue
		}
		raw[i] = 100 * (rows[i].Close - ll) / (hh - ll)
		rawOK[i] = true
	}

	k := make([]float64, n)
	kOK := smoothBool(raw, rawOK, k, smoothK)
	for i := range k {
		if kOK[i] {
			rows[i].Set(StochK, k[i])
		}
	}

	d := make([]float64, n)
	dOK := smoothBool(k, kOK, d, smoothD)
	for i := range d {
		if dOK[i] {
			rows[i].Set(StochD, d[i])
		}
	}
}

// smoothBool applies an SMA over entries whose full window is defined.
func smoothBool(in []float64, inOK []bool, out []float64, period int) []bool {
	ok := make([]bool, len(in))
	for i := period - 1; i < len(in); i++ {
		sum := 0.0
		valid := true
		for j := i - period + 1; j <= i; j++ {
			if !inOK[j] {
				valid = false
				break
			}
			sum += in[j]
		}
		if valid {
			out[i] = sum / float64(period)
			ok[i] = true
		}
	}
	return ok
}

// windowHighLow returns the highest high and lowest low over the period
// ending at index i (inclusive).
func windowHighLow(rows []model.IndicatorRow, i, period int) (hh, ll float64) {
	hh, ll = rows[i].High, rows[i].Low
	for j := i - period + 1; j < i; j++ {
		if j < 0 {
			continue
		}
		if rows[j].High > hh {
			hh = rows[j].High
		}
		if rows[j].Low < ll {
			ll = rows[j].Low
		}
	}
	return hh, ll
}
