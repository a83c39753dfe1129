package indicator

import "signals-systemv1/internal/model"

// Body-to-range ratios shared by the pattern detectors: a "strong"
// candle closes with a body above 60% of its range, an "indecision"
// candle below 30%.
const (
	strongBodyRatio     = 0.6
	indecisionBodyRatio = 0.3
)

func strongBullish(c model.Candle) bool {
	return c.Bullish() && c.Body() > strongBodyRatio*c.Range()
}

func strongBearish(c model.Candle) bool {
	return c.Bearish() && c.Body() > strongBodyRatio*c.Range()
}

func indecision(c model.Candle) bool {
	return c.Body() < indecisionBodyRatio*c.Range()
}

// BullishReversalPattern detects the 3-bar bottom reversal: a strong
// bearish bar, an indecision bar, then a strong bullish bar closing
// above the indecision bar's high.
func BullishReversalPattern(candles []model.Candle) bool {
	if len(candles) < 3 {
		return false
	}
	c1 := candles[len(candles)-3]
	c2 := candles[len(candles)-2]
	c3 := candles[len(candles)-1]
	return strongBearish(c1) && indecision(c2) && strongBullish(c3) && c3.Close > c2.High
}

// BearishReversalPattern is the symmetric 3-bar top reversal.
func BearishReversalPattern(candles []model.Candle) bool {
	if len(candles) < 3 {
		return false
	}
	c1 := candles[len(candles)-3]
	c2 := candles[len(candles)-2]
	c3 := candles[len(candles)-1]
	return strongBullish(c1) && indecision(c2) && strongBearish(c3) && c3.Close < c2.Low
}

// BullishContinuationPattern detects the 3-bar pullback continuation: a
// bearish pullback bar, an indecision bar, then a strong bullish bar
// breaking the indecision bar's high. Unlike the reversal form, the
// first bar does not need a strong body.
func BullishContinuationPattern(candles []model.Candle) bool {
	if len(candles) < 3 {
		return false
	}
	c1 := candles[len(candles)-3]
	c2 := candles[len(candles)-2]
	c3 := candles[len(candles)-1]
	return c1.Bearish() && indecision(c2) && strongBullish(c3) && c3.Close > c2.High
}

// BearishContinuationPattern is the symmetric pullback continuation.
func BearishContinuationPattern(candles []model.Candle) bool {
	if len(candles) < 3 {
		return false
	}
	c1 := candles[len(candles)-3]
	c2 := candles[len(candles)-2]
	c3 := candles[len(candles)-1]
	return c1.Bullish() && indecision(c2) && strongBearish(c3) && c3.Close < c2.Low
}

// BullishEngulfing reports whether the last bar is bullish and its body
// engulfs the previous bearish bar's body.
func BullishEngulfing(candles []model.Candle) bool {
	if len(candles) < 2 {
		return false
	}
	prev := candles[len(candles)-2]
	last := candles[len(candles)-1]
	return last.Bullish() && prev.Bearish() &&
		last.Close > prev.Open && last.Open < prev.Close
}

// BearishEngulfing is the symmetric engulfing test.
func BearishEngulfing(candles []model.Candle) bool {
	if len(candles) < 2 {
		return false
	}
	prev := candles[len(candles)-2]
	last := candles[len(candles)-1]
	return last.Bearish() && prev.Bullish() &&
		last.Open > prev.Close && last.Close < prev.Open
}
