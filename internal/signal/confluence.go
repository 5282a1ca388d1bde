package signal

import (
	"errors"
	"sort"

	"signal-systemv1/internal/model"
)

// ErrNoTimeframes is returned when confluence is requested with no
// timeframe data at all.
var ErrNoTimeframes = errors.New("confluence: no timeframes analyzed")

// DefaultConfluenceThreshold is the |score| above which the consensus
// classifies as BUY or SELL. Tunable; the confluence score lives on a
// normalized [-1,1] scale independent of the per-row scoring threshold.
const DefaultConfluenceThreshold = 0.3

// defaultTimeframeWeights weighs longer timeframes higher. Intervals use
// the exchange notation (Min15, Hour4, ...).
var defaultTimeframeWeights = map[string]float64{
	"Min1":  0.05,
	"Min5":  0.10,
	"Min15": 0.20,
	"Min30": 0.25,
	"Min60": 0.30,
	"Hour4": 0.50,
	"Hour8": 0.60,
	"Day1":  0.70,
}

// unknownTimeframeWeight applies to intervals outside the standard set.
const unknownTimeframeWeight = 0.1

// DefaultTimeframeWeights returns a copy of the default interval weights.
func DefaultTimeframeWeights() map[string]float64 {
	out := make(map[string]float64, len(defaultTimeframeWeights))
	for k, v := range defaultTimeframeWeights {
		out[k] = v
	}
	return out
}

// AnalyzeConfluence combines the latest per-timeframe signals into one
// consensus verdict. Timeframes absent from the input are skipped, never
// treated as zero votes, so the score is a weighted average over what was
// actually analyzed and invariant under input reordering. A nil weights map
// selects the defaults. A zero total weight degrades to score 0 / HOLD
// rather than erroring.
func AnalyzeConfluence(signals map[string]model.TimeframeSignal, weights map[string]float64) (*model.ConfluenceResult, error) {
	if len(signals) == 0 {
		return nil, ErrNoTimeframes
	}
	if weights == nil {
		weights = defaultTimeframeWeights
	}

	// Canonical iteration order (descending weight, then name) keeps the
	// first-seen tie-break for the trend consensus deterministic.
	intervals := make([]string, 0, len(signals))
	for tf := range signals {
		intervals = append(intervals, tf)
	}
	sort.Slice(intervals, func(i, j int) bool {
		wi, wj := weightFor(weights, intervals[i]), weightFor(weights, intervals[j])
		if wi != wj {
			return wi > wj
		}
		return intervals[i] < intervals[j]
	})

	res := &model.ConfluenceResult{
		FinalSignal:        model.DirectionHold,
		TimeframesAnalyzed: len(signals),
		Breakdown:          make(map[string]model.TimeframeContribution, len(signals)),
	}

	var weightedSum, totalWeight float64
	trendCounts := make(map[model.TrendStructure]int)
	var trendOrder []model.TrendStructure

	for _, tf := range intervals {
		sig := signals[tf]
		w := weightFor(weights, tf)
		contribution := sig.Direction.Sign() * sig.Strength * w

		weightedSum += contribution
		totalWeight += w
		res.Breakdown[tf] = model.TimeframeContribution{
			Direction:    sig.Direction,
			Strength:     sig.Strength,
			Weight:       w,
			Contribution: contribution,
		}

		if sig.Trend != "" {
			if trendCounts[sig.Trend] == 0 {
				trendOrder = append(trendOrder, sig.Trend)
			}
			trendCounts[sig.Trend]++
		}
	}

	if totalWeight > 0 {
		res.ConfluenceScore = weightedSum / totalWeight
	}

	switch {
	case res.ConfluenceScore > DefaultConfluenceThreshold:
		res.FinalSignal = model.DirectionBuy
	case res.ConfluenceScore < -DefaultConfluenceThreshold:
		res.FinalSignal = model.DirectionSell
	}

	// Modal trend label; first encountered in canonical order wins ties.
	best := 0
	for _, trend := range trendOrder {
		if trendCounts[trend] > best {
			best = trendCounts[trend]
			res.TrendConsensus = trend
		}
	}
	if best > 0 {
		res.TrendAgreement = float64(best) / float64(res.TimeframesAnalyzed)
	}

	return res, nil
}

func weightFor(weights map[string]float64, interval string) float64 {
	if w, ok := weights[interval]; ok {
		return w
	}
	return unknownTimeframeWeight
}
