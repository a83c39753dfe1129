package signal

import (
	"signals-systemv1/internal/indicator"
	"signals-systemv1/internal/model"
)

// conditions holds the per-direction checklist outcome.
type conditions struct {
	Trend      bool
	Oscillator bool
	Volatility bool
	Extremum   bool
	Pattern    bool
}

func (c conditions) count() int {
	n := 0
	for _, b := range []bool{c.Trend, c.Oscillator, c.Volatility, c.Extremum, c.Pattern} {
		if b {
			n++
		}
	}
	return n
}

func (c conditions) score(w Weights) int {
	s := 0
	if c.Trend {
		s += w.Trend
	}
	if c.Oscillator {
		s += w.Oscillator
	}
	if c.Volatility {
		s += w.Volatility
	}
	if c.Extremum {
		s += w.Extremum
	}
	if c.Pattern {
		s += w.Pattern
	}
	return s
}

// evaluate computes both direction checklists for one series under one
// variant. All indicator failures (short windows) degrade to false for
// the affected condition, never to an error.
func evaluate(v Variant, candles []model.Candle) (buy, sell conditions) {
	closes := model.Closes(candles)
	last := candles[len(candles)-1]

	// Trend block: EMA position + slope, alligator alignment.
	emaSeries, emaOK := indicator.EMASeries(closes, v.TrendEMAPeriod)
	slope := 0.0
	if emaOK {
		slope, _ = indicator.Slope(emaSeries, v.SlopeLookback)
	}
	lips, lipsOK := indicator.SMA(closes, v.LipsPeriod)
	teeth, teethOK := indicator.SMA(closes, v.TeethPeriod)
	jaw, jawOK := indicator.SMA(closes, v.JawPeriod)
	alligatorOK := lipsOK && teethOK && jawOK

	if emaOK && alligatorOK {
		ema := emaSeries[len(emaSeries)-1]
		if v.SustainedBars > 0 {
			// Reversal mode: the market must have been pushed to one
			// side of the EMA for a while, with the alligator lines
			// contracting or crossing.
			squeeze := alligatorSqueeze(closes, v)
			buy.Trend = sustainedBelow(closes, emaSeries, v.SustainedBars) && squeeze
			sell.Trend = sustainedAbove(closes, emaSeries, v.SustainedBars) && squeeze
		} else {
			buy.Trend = slope > 0 && last.Close > ema && lips > teeth && teeth > jaw
			sell.Trend = slope < 0 && last.Close < ema && lips < teeth && teeth < jaw
		}
	}

	// Oscillator block: %K in zone and turning.
	ks, kOK := indicator.StochasticK(candles, v.StochKPeriod)
	if len(ks) >= 2 && kOK[len(ks)-1] && kOK[len(ks)-2] {
		k := ks[len(ks)-1]
		prevK := ks[len(ks)-2]
		buy.Oscillator = k >= v.BuyZoneLow && k <= v.BuyZoneHigh && k > prevK
		sellLow, sellHigh := 100-v.BuyZoneHigh, 100-v.BuyZoneLow
		sell.Oscillator = k >= sellLow && k <= sellHigh && k < prevK
	}

	// Volatility block: shared by both directions.
	if vol := volatilityExpanding(candles, v); vol {
		buy.Volatility = true
		sell.Volatility = true
	}

	// Extremum proximity.
	buy.Extremum = indicator.NearLowFractal(candles, last.Close, v.FractalLookback, v.FractalTolerance)
	sell.Extremum = indicator.NearHighFractal(candles, last.Close, v.FractalLookback, v.FractalTolerance)

	// Confirmation pattern.
	if v.SustainedBars > 0 {
		buy.Pattern = indicator.BullishReversalPattern(candles)
		sell.Pattern = indicator.BearishReversalPattern(candles)
	} else {
		buy.Pattern = indicator.BullishContinuationPattern(candles)
		sell.Pattern = indicator.BearishContinuationPattern(candles)
	}

	return buy, sell
}

// volatilityExpanding reports whether the current ATR sits above the
// median of the preceding window of ATR values.
func volatilityExpanding(candles []model.Candle, v Variant) bool {
	series, mask := indicator.ATRSeries(candles, v.ATRPeriod)
	var valid []float64
	for i, ok := range mask {
		if ok {
			valid = append(valid, series[i])
		}
	}
	if len(valid) < v.ATRMedianWindow+1 {
		return false
	}
	current := valid[len(valid)-1]
	med, ok := indicator.Median(valid[:len(valid)-1], v.ATRMedianWindow)
	return ok && current > med
}

// alligatorSqueeze reports whether the three alligator lines are
// contracting (max pairwise spread shrinking) or crossing between the
// previous and current bar.
func alligatorSqueeze(closes []float64, v Variant) bool {
	if len(closes) < v.JawPeriod+1 {
		return false
	}
	cur := alligatorLines(closes, v)
	prev := alligatorLines(closes[:len(closes)-1], v)

	contracting := spread(cur) < spread(prev)
	crossing := (cur[0] > cur[1]) != (prev[0] > prev[1]) ||
		(cur[1] > cur[2]) != (prev[1] > prev[2])
	return contracting || crossing
}

// alligatorLines returns [lips, teeth, jaw] at the series tail.
func alligatorLines(closes []float64, v Variant) [3]float64 {
	lips, _ := indicator.SMA(closes, v.LipsPeriod)
	teeth, _ := indicator.SMA(closes, v.TeethPeriod)
	jaw, _ := indicator.SMA(closes, v.JawPeriod)
	return [3]float64{lips, teeth, jaw}
}

func spread(lines [3]float64) float64 {
	max := abs(lines[0] - lines[1])
	if d := abs(lines[1] - lines[2]); d > max {
		max = d
	}
	if d := abs(lines[0] - lines[2]); d > max {
		max = d
	}
	return max
}

// sustainedBelow reports whether the last n closes all sit below the EMA.
func sustainedBelow(closes, ema []float64, n int) bool {
	if len(closes) < n {
		return false
	}
	for i := len(closes) - n; i < len(closes); i++ {
		if closes[i] >= ema[i] {
			return false
		}
	}
	return true
}

func sustainedAbove(closes, ema []float64, n int) bool {
	if len(closes) < n {
		return false
	}
	for i := len(closes) - n; i < len(closes); i++ {
		if closes[i] <= ema[i] {
			return false
		}
	}
	return true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
