package indicator

import "signals-systemv1/internal/model"

// HighFractal reports whether the bar at index i is a local high: its
// high is strictly greater than the highs of the two bars on each side.
// Bars within two positions of either end can never qualify.
func HighFractal(candles []model.Candle, i int) bool {
	if i < 2 || i > len(candles)-3 {
		return false
	}
	h := candles[i].High
	return h > candles[i-2].High && h > candles[i-1].High &&
		h > candles[i+1].High && h > candles[i+2].High
}

// LowFractal is the symmetric local-low test on lows.
func LowFractal(candles []model.Candle, i int) bool {
	if i < 2 || i > len(candles)-3 {
		return false
	}
	l := candles[i].Low
	return l < candles[i-2].Low && l < candles[i-1].Low &&
		l < candles[i+1].Low && l < candles[i+2].Low
}

// NearLowFractal reports whether price sits within tolerance (a fraction
// of price, e.g. 0.002 for 0.2%) of a low fractal found in the last
// lookback bars before the current one.
func NearLowFractal(candles []model.Candle, price float64, lookback int, tolerance float64) bool {
	threshold := price * tolerance
	start := len(candles) - 1 - lookback
	if start < 0 {
		start = 0
	}
	for i := start; i < len(candles)-1; i++ {
		if !LowFractal(candles, i) {
			continue
		}
		diff := price - candles[i].Low
		if diff < 0 {
			diff = -diff
		}
		if diff < threshold {
			return true
		}
	}
	return false
}

// NearHighFractal is the symmetric proximity test against high fractals.
func NearHighFractal(candles []model.Candle, price float64, lookback int, tolerance float64) bool {
	threshold := price * tolerance
	start := len(candles) - 1 - lookback
	if start < 0 {
		start = 0
	}
	for i := start; i < len(candles)-1; i++ {
		if !HighFractal(candles, i) {
			continue
		}
		diff := price - candles[i].High
		if diff < 0 {
			diff = -diff
		}
		if diff < threshold {
			return true
		}
	}
	return false
}
