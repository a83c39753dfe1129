// Package signal computes trading verdicts from candle series using a
// scored multi-condition rule set over the indicator library.
package signal

import "signals-systemv1/internal/model"

// Weights assigns the point value of each checklist condition.
// The maximum score is the sum of all weights.
type Weights struct {
	Trend      int
	Oscillator int
	Volatility int
	Extremum   int
	Pattern    int
}

// Max returns the highest attainable score.
func (w Weights) Max() int {
	return w.Trend + w.Oscillator + w.Volatility + w.Extremum + w.Pattern
}

// Variant is one strategy parameter table. Two canonical variants exist:
// a short-horizon trend-following table and a longer-horizon reversal
// table. The weight tables and thresholds are fixed per variant so that
// identical inputs always score identically.
type Variant struct {
	Rule model.Rule

	// Alligator moving averages over closes (lips fastest).
	LipsPeriod  int
	TeethPeriod int
	JawPeriod   int

	// Trend EMA and its slope lookback.
	TrendEMAPeriod int
	SlopeLookback  int

	// How many of the most recent bars must sit on the wrong side of the
	// trend EMA before a reversal against it qualifies. Zero disables
	// the sustained-side requirement (trend-following mode).
	SustainedBars int

	// Stochastic oscillator.
	StochKPeriod int
	StochDPeriod int
	// Buy zone [BuyZoneLow, BuyZoneHigh] with %K rising; the sell zone
	// is the mirror [100-BuyZoneHigh, 100-BuyZoneLow] with %K falling.
	BuyZoneLow  float64
	BuyZoneHigh float64

	// Volatility filter: ATR(ATRPeriod) above the median of the
	// preceding ATRMedianWindow ATR values.
	ATRPeriod       int
	ATRMedianWindow int

	// Fractal proximity filter.
	FractalLookback  int
	FractalTolerance float64

	Weights Weights

	// MinConditions is the minimum number of satisfied conditions for a
	// direction to qualify. TrendMandatory disqualifies a direction
	// outright when its trend condition fails.
	MinConditions  int
	TrendMandatory bool
}

// TrendFollowing is the canonical short-horizon table (60/120/180s).
func TrendFollowing() Variant {
	return Variant{
		Rule:             model.RuleTrendFollowing,
		LipsPeriod:       5,
		TeethPeriod:      8,
		JawPeriod:        13,
		TrendEMAPeriod:   20,
		SlopeLookback:    5,
		SustainedBars:    0,
		StochKPeriod:     14,
		StochDPeriod:     3,
		BuyZoneLow:       20,
		BuyZoneHigh:      40,
		ATRPeriod:        14,
		ATRMedianWindow:  10,
		FractalLookback:  10,
		FractalTolerance: 0.002,
		Weights: Weights{
			Trend:      20,
			Oscillator: 20,
			Volatility: 20,
			Extremum:   20,
			Pattern:    20,
		},
		MinConditions:  4,
		TrendMandatory: true,
	}
}

// Reversal is the canonical longer-horizon table (300s).
func Reversal() Variant {
	return Variant{
		Rule:             model.RuleReversal,
		LipsPeriod:       5,
		TeethPeriod:      8,
		JawPeriod:        13,
		TrendEMAPeriod:   30,
		SlopeLookback:    5,
		SustainedBars:    5,
		StochKPeriod:     14,
		StochDPeriod:     3,
		BuyZoneLow:       0,
		BuyZoneHigh:      20,
		ATRPeriod:        14,
		ATRMedianWindow:  10,
		FractalLookback:  10,
		FractalTolerance: 0.002,
		Weights: Weights{
			Trend:      15,
			Oscillator: 15,
			Volatility: 10,
			Extremum:   25,
			Pattern:    35,
		},
		MinConditions:  4,
		TrendMandatory: false,
	}
}

// VariantFor maps a candle period to its strategy variant: the 300s
// stream runs the reversal table, shorter streams trend-following.
func VariantFor(period int) Variant {
	if period >= 300 {
		return Reversal()
	}
	return TrendFollowing()
}
