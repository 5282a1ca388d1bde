package indicator

import "signal-systemv1/internal/model"

// computeVolume derives OBV, MFI and VWAP.
func computeVolume(rows []model.IndicatorRow) {
	computeOBV(rows)
	computeMFI(rows, 14)
	computeVWAP(rows)
}

// computeOBV sets On-Balance Volume: cumulative volume signed by the close
// direction. Defined from the first row (zero baseline).
func computeOBV(rows []model.IndicatorRow) {
	obv := 0.0
	rows[0].Set(OBV, obv)
	for i := 1; i < len(rows); i++ {
		switch {
		case rows[i].Close > rows[i-1].Close:
			obv += rows[i].Volume
		case rows[i].Close < rows[i-1].Close:
			obv -= rows[i].Volume
		}
		rows[i].Set(OBV, obv)
	}
}

// computeMFI sets the Money Flow Index, a volume-weighted RSI analogue over
// typical prices.
func computeMFI(rows []model.IndicatorRow, period int) {
	n := len(rows)
	if n < period+1 {
		return
	}

	tp := make([]float64, n)
	for i := range rows {
		tp[i] = (rows[i].High + rows[i].Low + rows[i].Close) / 3
	}

	posFlow := make([]float64, n)
	negFlow := make([]float64, n)
	for i := 1; i < n; i++ {
		flow := tp[i] * rows[i].Volume
		if tp[i] > tp[i-1] {
			posFlow[i] = flow
		} else if tp[i] < tp[i-1] {
			negFlow[i] = flow
		}
	}

	for i := period; i < n; i++ {
		var pos, neg float64
		for j := i - period + 1; j <= i; j++ {
			pos += posFlow[j]
			neg += negFlow[j]
		}
		if neg == 0 {
			rows[i].Set(MFI, 100)
			continue
		}
		ratio := pos / neg
		rows[i].Set(MFI, 100-100/(1+ratio))
	}
}

// computeVWAP sets the cumulative volume-weighted average price from the
// start of the series. Rows before any volume has traded stay undefined.
func computeVWAP(rows []model.IndicatorRow) {
	var cumPV, cumVol float64
	for i := range rows {
		tp := (rows[i].High + rows[i].Low + rows[i].Close) / 3
		cumPV += tp * rows[i].Volume
		cumVol += rows[i].Volume
		if cumVol > 0 {
			rows[i].Set(VWAP, cumPV/cumVol)
		}
	}
}
