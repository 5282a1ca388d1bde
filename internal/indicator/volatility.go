package indicator

import (
	"math"

	"signal-systemv1/internal/model"
)

// computeVolatility derives Bollinger Bands, ATR and Keltner Channels.
func computeVolatility(rows []model.IndicatorRow) {
	computeBBands(rows, 20, 2.0)
	computeATR(rows, 14)
	computeKeltner(rows, 20, 2.0)
}

// computeBBands sets the Bollinger mid/upper/lower bands: SMA of closes
// plus/minus mult standard deviations over the window.
func computeBBands(rows []model.IndicatorRow, period int, mult float64) {
	n := len(rows)
	if n < period {
		return
	}
	cl := closes(rows)

	for i := period - 1; i < n; i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += cl[j]
		}
		mean := sum / float64(period)

		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := cl[j] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(period))

		rows[i].Set(BBMid, mean)
		rows[i].Set(BBUpper, mean+mult*std)
		rows[i].Set(BBLower, mean-mult*std)
	}
}

// computeATR sets the Average True Range using Wilder's smoothing.
func computeATR(rows []model.IndicatorRow, period int) {
	n := len(rows)
	if n < period+1 {
		return
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(rows, i)
	}
	p := float64(period)
	atr := sum / p
	rows[period].Set(ATR, atr)

	for i := period + 1; i < n; i++ {
		atr = (atr*(p-1) + trueRange(rows, i)) / p
		rows[i].Set(ATR, atr)
	}
}

// computeKeltner sets the Keltner Channel bands: an EMA basis offset by a
// multiple of ATR. Bands are defined once both the basis and ATR are.
func computeKeltner(rows []model.IndicatorRow, period int, mult float64) {
	cl := closes(rows)
	basis, firstBasis := emaSeries(cl, period)
	if firstBasis >= len(rows) {
		return
	}

	for i := firstBasis; i < len(rows); i++ {
		atr, ok := rows[i].Value(ATR)
		if !ok {
			continue
		}
		rows[i].Set(KCUpper, basis[i]+mult*atr)
		rows[i].Set(KCLower, basis[i]-mult*atr)
	}
}

func trueRange(rows []model.IndicatorRow, i int) float64 {
	h, l, pc := rows[i].High, rows[i].Low, rows[i-1].Close
	return maxOf3(h-l, abs(h-pc), abs(l-pc))
}
