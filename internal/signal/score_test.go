package signal

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"signal-systemv1/internal/indicator"
	"signal-systemv1/internal/model"
)

func mkRows(n int) []model.IndicatorRow {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]model.IndicatorRow, n)
	for i := range rows {
		rows[i].Candle = model.Candle{
			TS:     base.Add(time.Duration(i) * time.Minute),
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100,
			Volume: 1000,
		}
	}
	return rows
}

func TestScore_EmptyAndNonMonotonic(t *testing.T) {
	if _, err := Score(nil, false); err == nil {
		t.Error("expected error for empty series")
	}

	rows := mkRows(3)
	rows[2].TS = rows[1].TS
	if _, err := Score(rows, false); err == nil {
		t.Error("expected error for non-monotonic timestamps")
	}
}

func TestScore_NoIndicators_Holds(t *testing.T) {
	res, err := Score(mkRows(5), false)
	if err != nil {
		t.Fatal(err)
	}
	latest := res.Latest()
	if latest.Direction != model.DirectionHold {
		t.Errorf("expected HOLD, got %s", latest.Direction)
	}
	if latest.Score != 0 || latest.Strength != 0 {
		t.Errorf("expected zero score/strength, got %v/%v", latest.Score, latest.Strength)
	}
	if len(latest.Components) != 0 {
		t.Errorf("expected no components, got %v", latest.Components)
	}
	if latest.Reason != "Neutral (Score: 0.00)" {
		t.Errorf("unexpected reason %q", latest.Reason)
	}
}

// Bullish alignment below the decision threshold stays HOLD: EMA bullish,
// ADX strong, RSI neutral contributes (1+0.5)*0.30 = 0.45.
func TestScore_WeakBullish_Holds(t *testing.T) {
	rows := mkRows(6)
	last := len(rows) - 1
	rows[last].Set(indicator.EMA20, 110)
	rows[last].Set(indicator.EMA50, 100)
	rows[last].Set(indicator.ADX, 30)
	rows[last].Set(indicator.RSI, 55)
	rows[last-1].Set(indicator.RSI, 54)

	res, err := Score(rows, false)
	if err != nil {
		t.Fatal(err)
	}
	latest := res.Latest()
	if latest.Direction != model.DirectionHold {
		t.Errorf("expected HOLD at total %.2f, got %s", latest.Score, latest.Direction)
	}
	if latest.Score < 0.44 || latest.Score > 0.46 {
		t.Errorf("expected total near 0.45, got %.4f", latest.Score)
	}
}

// A fresh MACD crossover stacked with EMA, ADX, oversold RSI, rising OBV and
// a close under the lower Bollinger band totals 1.90 and fires BUY.
func TestScore_StrongBullish_Buys(t *testing.T) {
	rows := mkRows(10)
	last := len(rows) - 1

	rows[last-1].Set(indicator.MACD, -1)
	rows[last-1].Set(indicator.MACDSignal, 0)
	rows[last].Set(indicator.MACD, 1)
	rows[last].Set(indicator.MACDSignal, 0)

	rows[last].Set(indicator.EMA20, 110)
	rows[last].Set(indicator.EMA50, 100)
	rows[last].Set(indicator.ADX, 30)

	rows[last].Set(indicator.RSI, 25)
	rows[last-1].Set(indicator.RSI, 35)

	rows[last-5].Set(indicator.OBV, 500)
	rows[last].Set(indicator.OBV, 1000)

	rows[last].Candle.Close = 95
	rows[last].Set(indicator.BBLower, 96)
	rows[last].Set(indicator.BBUpper, 105)

	res, err := Score(rows, false)
	if err != nil {
		t.Fatal(err)
	}
	latest := res.Latest()
	if latest.Direction != model.DirectionBuy {
		t.Fatalf("expected BUY at total %.2f, got %s", latest.Score, latest.Direction)
	}
	if latest.Score < 1.89 || latest.Score > 1.91 {
		t.Errorf("expected total near 1.90, got %.4f", latest.Score)
	}
	if latest.Strength < 0.18 || latest.Strength > 0.20 {
		t.Errorf("expected strength near 0.19, got %.4f", latest.Strength)
	}
	if !strings.HasPrefix(latest.Reason, "Bullish confluence") {
		t.Errorf("unexpected reason %q", latest.Reason)
	}

	joined := strings.Join(latest.Components, ",")
	for _, want := range []string{"MACD(3.5)", "EMA(3.5)", "RSI(2.0)", "OBV(1.0)", "BB(1.0)"} {
		if !strings.Contains(joined, want) {
			t.Errorf("components missing %q: %v", want, latest.Components)
		}
	}
}

func TestScore_StrongBearish_Sells(t *testing.T) {
	rows := mkRows(10)
	last := len(rows) - 1

	rows[last-1].Set(indicator.MACD, 1)
	rows[last-1].Set(indicator.MACDSignal, 0)
	rows[last].Set(indicator.MACD, -1)
	rows[last].Set(indicator.MACDSignal, 0)

	rows[last].Set(indicator.EMA20, 100)
	rows[last].Set(indicator.EMA50, 110)

	rows[last].Set(indicator.RSI, 75)
	rows[last-1].Set(indicator.RSI, 65)

	rows[last-5].Set(indicator.OBV, 1000)
	rows[last].Set(indicator.OBV, 500)

	rows[last].Candle.Close = 106
	rows[last].Set(indicator.BBLower, 96)
	rows[last].Set(indicator.BBUpper, 105)

	res, err := Score(rows, false)
	if err != nil {
		t.Fatal(err)
	}
	latest := res.Latest()
	if latest.Direction != model.DirectionSell {
		t.Fatalf("expected SELL at total %.2f, got %s", latest.Score, latest.Direction)
	}
	if !strings.HasPrefix(latest.Reason, "Bearish confluence") {
		t.Errorf("unexpected reason %q", latest.Reason)
	}
}

// The threshold is strict: a total exactly at it stays HOLD.
func TestScore_ThresholdBoundary(t *testing.T) {
	rows := mkRows(3)
	rows[2].Set(indicator.RSI, 25) // +2 momentum, total 2*0.25 = 0.5
	rows[1].Set(indicator.RSI, 35)

	at, err := NewEngine(Config{Weights: DefaultWeights(), Threshold: 0.5, MaxScore: 10})
	if err != nil {
		t.Fatal(err)
	}
	res, err := at.Score(rows, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Latest().Direction; got != model.DirectionHold {
		t.Errorf("total at threshold should HOLD, got %s", got)
	}

	below, err := NewEngine(Config{Weights: DefaultWeights(), Threshold: 0.49, MaxScore: 10})
	if err != nil {
		t.Fatal(err)
	}
	res, err = below.Score(rows, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Latest().Direction; got != model.DirectionBuy {
		t.Errorf("total above threshold should BUY, got %s", got)
	}
}

func TestScore_Idempotent(t *testing.T) {
	rows := mkRows(10)
	last := len(rows) - 1
	rows[last].Set(indicator.EMA20, 110)
	rows[last].Set(indicator.EMA50, 100)
	rows[last].Set(indicator.RSI, 25)

	first, err := Score(rows, true)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Score(rows, true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("scoring the same series twice produced different results")
	}
}

func TestScore_StrengthClamped(t *testing.T) {
	rows := mkRows(3)
	rows[2].Set(indicator.RSI, 25)
	rows[1].Set(indicator.RSI, 35)

	eng, err := NewEngine(Config{Weights: DefaultWeights(), Threshold: 0.1, MaxScore: 0.25})
	if err != nil {
		t.Fatal(err)
	}
	res, err := eng.Score(rows, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Latest().Strength; got != 1 {
		t.Errorf("expected strength clamped to 1, got %v", got)
	}
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	bad := []Config{
		{Weights: Weights{Trend: -1}, Threshold: 1, MaxScore: 10},
		{Weights: Weights{}, Threshold: 1, MaxScore: 10},
		{Weights: DefaultWeights(), Threshold: 0, MaxScore: 10},
		{Weights: DefaultWeights(), Threshold: 1.5, MaxScore: 0},
	}
	for i, cfg := range bad {
		if _, err := NewEngine(cfg); err == nil {
			t.Errorf("config %d: expected error", i)
		}
	}
}

// Price action enabled on a short flat series: too few rows for levels or
// trend, but scoring must still succeed.
func TestScore_PriceActionShortSeries(t *testing.T) {
	res, err := Score(mkRows(10), true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Trend != model.TrendInsufficient {
		t.Errorf("expected insufficient_data, got %s", res.Trend)
	}
	if res.HasSupport || res.HasResistance {
		t.Error("expected no levels on a short series")
	}
	if len(res.Patterns) != 10 {
		t.Errorf("expected per-row patterns, got %d", len(res.Patterns))
	}
}
