package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func series(n int) []Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Candle, n)
	for i := range out {
		out[i] = Candle{
			TS:     base.Add(time.Duration(i) * time.Minute),
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100,
			Volume: 1000,
		}
	}
	return out
}

func TestValidateSeries(t *testing.T) {
	if err := ValidateSeries(series(3)); err != nil {
		t.Errorf("valid series rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func([]Candle)
		want   string
	}{
		{"empty", nil, "empty"},
		{"duplicate ts", func(c []Candle) { c[2].TS = c[1].TS }, "non-monotonic"},
		{"reversed ts", func(c []Candle) { c[0].TS = c[2].TS.Add(time.Hour) }, "non-monotonic"},
		{"zero price", func(c []Candle) { c[1].Close = 0 }, "non-positive price"},
		{"negative price", func(c []Candle) { c[1].Low = -1 }, "non-positive price"},
		{"negative volume", func(c []Candle) { c[1].Volume = -5 }, "negative volume"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s []Candle
			if tc.mutate != nil {
				s = series(3)
				tc.mutate(s)
			}
			err := ValidateSeries(s)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %v does not mention %q", err, tc.want)
			}
		})
	}
}

func TestIndicatorRow_Values(t *testing.T) {
	var row IndicatorRow
	if _, ok := row.Value("RSI_14"); ok {
		t.Error("value defined on a fresh row")
	}
	row.Set("RSI_14", 55.5)
	v, ok := row.Value("RSI_14")
	if !ok || v != 55.5 {
		t.Errorf("Value = %v, %v", v, ok)
	}
	if _, ok := row.Value("MACD_12_26_9"); ok {
		t.Error("unset column reported as defined")
	}
}

func TestDirection_Sign(t *testing.T) {
	if DirectionBuy.Sign() != 1 || DirectionSell.Sign() != -1 || DirectionHold.Sign() != 0 {
		t.Error("direction signs wrong")
	}
}

func TestSignalEvent_KeyAndJSON(t *testing.T) {
	ev := SignalEvent{
		Symbol:    "BTC_USDT",
		Interval:  "Min15",
		TS:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Direction: DirectionBuy,
		Strength:  0.42,
		Price:     65000,
	}
	if ev.Key() != "BTC_USDT:Min15" {
		t.Errorf("Key() = %q", ev.Key())
	}

	var back SignalEvent
	if err := json.Unmarshal(ev.JSON(), &back); err != nil {
		t.Fatal(err)
	}
	if back.Symbol != ev.Symbol || back.Direction != ev.Direction || back.Price != ev.Price {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if back.Indicators != nil {
		t.Error("empty indicators should stay absent")
	}
}
