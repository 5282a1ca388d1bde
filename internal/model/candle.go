package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Candle represents one OHLCV bar for a single instrument and interval.
// Prices are float64: crypto quote prices are fractional, so the integer
// minor-unit convention used for equities does not apply here.
type Candle struct {
	TS     time.Time `json:"ts"` // bar open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// ValidateSeries checks the structural invariants of a candle series:
// non-empty, strictly increasing timestamps, positive prices and
// non-negative volume. Warm-up gaps in derived data are fine; a broken
// series is not.
func ValidateSeries(candles []Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("candle series: empty")
	}
	for i, c := range candles {
		if i > 0 && !c.TS.After(candles[i-1].TS) {
			return fmt.Errorf("candle series: non-monotonic timestamp at index %d (%s <= %s)",
				i, c.TS.Format(time.RFC3339), candles[i-1].TS.Format(time.RFC3339))
		}
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("candle series: non-positive price at index %d", i)
		}
		if c.Volume < 0 {
			return fmt.Errorf("candle series: negative volume at index %d", i)
		}
	}
	return nil
}

// IndicatorRow is a Candle extended with named indicator values.
// A name absent from Values means the indicator is undefined for this row
// (warm-up period or category not requested). Consumers must branch on
// presence via Value; never assume a column exists.
type IndicatorRow struct {
	Candle
	Values map[string]float64
}

// Value returns the named indicator value and whether it is defined.
func (r *IndicatorRow) Value(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Set defines the named indicator value on this row.
func (r *IndicatorRow) Set(name string, v float64) {
	if r.Values == nil {
		r.Values = make(map[string]float64, 16)
	}
	r.Values[name] = v
}
