// Package indicator provides batch technical indicator calculations over
// candle series.
//
// Compute derives named numeric columns per candle, grouped into categories
// (trend, momentum, volume, volatility). Output rows are aligned
// index-for-index with the input series; rows inside an indicator's warm-up
// period simply omit that column instead of carrying a sentinel value.
package indicator

import (
	"fmt"

	"signal-systemv1/internal/model"
)

// Category selects a group of indicators to compute.
type Category string

const (
	CategoryTrend      Category = "trend"
	CategoryMomentum   Category = "momentum"
	CategoryVolume     Category = "volume"
	CategoryVolatility Category = "volatility"
)

// AllCategories returns every supported category in canonical order.
func AllCategories() []Category {
	return []Category{CategoryTrend, CategoryMomentum, CategoryVolume, CategoryVolatility}
}

// Column names follow the TYPE_PARAMS convention so that consumers can key
// on stable identifiers regardless of configuration defaults.
const (
	EMA20      = "EMA_20"
	EMA50      = "EMA_50"
	SMA200     = "SMA_200"
	MACD       = "MACD_12_26_9"
	MACDSignal = "MACDs_12_26_9"
	ADX        = "ADX_14"
	PSARLong   = "PSARl_0.02_0.2" // set while SAR is below price (uptrend)
	PSARShort  = "PSARs_0.02_0.2" // set while SAR is above price (downtrend)

	RSI    = "RSI_14"
	WILLR  = "WILLR_14"
	CCI    = "CCI_14"
	ROC    = "ROC_10"
	StochK = "STOCHk_14_3"
	StochD = "STOCHd_14_3"

	OBV  = "OBV"
	MFI  = "MFI_14"
	VWAP = "VWAP"

	BBLower = "BBL_20_2.0"
	BBMid   = "BBM_20_2.0"
	BBUpper = "BBU_20_2.0"
	ATR     = "ATR_14"
	KCLower = "KCL_20_2"
	KCUpper = "KCU_20_2"
)

// Compute calculates the requested indicator categories over a candle series.
// A nil or empty category list means all categories. The returned rows have
// the same length and order as the input. Structurally invalid input (empty
// series, non-monotonic timestamps) is the only error condition; short
// series are fine and produce rows with fewer defined columns.
func Compute(candles []model.Candle, categories []Category) ([]model.IndicatorRow, error) {
	if err := model.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("indicator compute: %w", err)
	}
	if len(categories) == 0 {
		categories = AllCategories()
	}

	rows := make([]model.IndicatorRow, len(candles))
	for i := range candles {
		rows[i] = model.IndicatorRow{
			Candle: candles[i],
			Values: make(map[string]float64, 24),
		}
	}

	for _, cat := range categories {
		switch cat {
		case CategoryTrend:
			computeTrend(rows)
		case CategoryMomentum:
			computeMomentum(rows)
		case CategoryVolume:
			computeVolume(rows)
		case CategoryVolatility:
			computeVolatility(rows)
		default:
			return nil, fmt.Errorf("indicator compute: unknown category %q", cat)
		}
	}

	return rows, nil
}

// closes extracts the close column from a row series.
func closes(rows []model.IndicatorRow) []float64 {
	out := make([]float64, len(rows))
	for i := range rows {
		out[i] = rows[i].Close
	}
	return out
}

// setSeries writes the defined suffix of a computed series onto rows.
// firstDefined is the first index carrying a valid value; everything before
// it stays undefined.
func setSeries(rows []model.IndicatorRow, name string, values []float64, firstDefined int) {
	for i := firstDefined; i < len(rows) && i >= 0; i++ {
		rows[i].Set(name, values[i])
	}
}
