package model

import (
	"encoding/json"
	"time"
)

// Direction is the discrete verdict of the scoring engine for one row.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// Sign maps a direction to its numeric sign for aggregation.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionBuy:
		return 1
	case DirectionSell:
		return -1
	}
	return 0
}

// TrendStructure labels the swing-point structure of a series.
type TrendStructure string

const (
	TrendUp           TrendStructure = "uptrend"
	TrendDown         TrendStructure = "downtrend"
	TrendSideways     TrendStructure = "sideways"
	TrendInsufficient TrendStructure = "insufficient_data"
)

// ScoredSignal is the per-row output of the scoring engine.
// Score is the raw weighted category total; Strength is |Score| normalized
// against the maximum achievable total and clamped to [0,1].
type ScoredSignal struct {
	TS         time.Time `json:"ts"`
	Direction  Direction `json:"direction"`
	Score      float64   `json:"score"`
	Strength   float64   `json:"strength"`
	Reason     string    `json:"reason"`
	Components []string  `json:"components,omitempty"`
}

// TimeframeSignal is the latest scored signal of one timeframe, the unit of
// input to the confluence calculator.
type TimeframeSignal struct {
	Direction Direction      `json:"direction"`
	Strength  float64        `json:"strength"`
	Trend     TrendStructure `json:"trend,omitempty"`
	Price     float64        `json:"price,omitempty"`
}

// TimeframeContribution is one timeframe's share of a confluence verdict.
type TimeframeContribution struct {
	Direction    Direction `json:"direction"`
	Strength     float64   `json:"strength"`
	Weight       float64   `json:"weight"`
	Contribution float64   `json:"contribution"`
}

// ConfluenceResult is the multi-timeframe consensus for one instrument.
// ConfluenceScore lives on a normalized [-1,1] scale, independent of the
// per-timeframe scoring threshold.
type ConfluenceResult struct {
	FinalSignal        Direction                        `json:"final_signal"`
	ConfluenceScore    float64                          `json:"confluence_score"`
	TrendConsensus     TrendStructure                   `json:"trend_consensus"`
	TrendAgreement     float64                          `json:"trend_agreement"`
	TimeframesAnalyzed int                              `json:"timeframes_analyzed"`
	Breakdown          map[string]TimeframeContribution `json:"breakdown"`
}

// SignalEvent is dispatched by the streaming detector when an instrument's
// direction transitions. Indicators carries the defined subset of key
// indicator values at the emitting row (absent keys were undefined).
type SignalEvent struct {
	Symbol     string             `json:"symbol"`
	Interval   string             `json:"interval"`
	TS         time.Time          `json:"ts"`
	Direction  Direction          `json:"direction"`
	Strength   float64            `json:"strength"`
	Reason     string             `json:"reason"`
	Price      float64            `json:"price"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Key returns "symbol:interval", the subscription identity for this event.
func (e *SignalEvent) Key() string {
	return e.Symbol + ":" + e.Interval
}

// JSON returns the JSON-encoded event.
func (e *SignalEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
