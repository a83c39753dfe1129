// Package indicator provides pure technical indicator functions over
// price and OHLC series.
//
// Every function is deterministic, reads only the window it needs from
// the tail of its input (no look-ahead), and reports "not enough data"
// through an ok=false return instead of panicking or returning NaN.
package indicator

import "sort"

// SMA returns the simple moving average of the last period values.
// ok is false when len(values) < period or period <= 0.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// SMASeries returns the rolling SMA aligned with values. Positions with
// fewer than period samples carry ok=false in the companion mask.
func SMASeries(values []float64, period int) ([]float64, []bool) {
	out := make([]float64, len(values))
	ok := make([]bool, len(values))
	if period <= 0 {
		return out, ok
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
			ok[i] = true
		}
	}
	return out, ok
}

// EMA returns the exponential moving average of values with smoothing
// factor k = 2/(period+1), seeded with the first value. ok is false for
// an empty series or period <= 0.
func EMA(values []float64, period int) (float64, bool) {
	s, ok := EMASeries(values, period)
	if !ok {
		return 0, false
	}
	return s[len(s)-1], true
}

// EMASeries returns the full EMA recurrence aligned with values.
func EMASeries(values []float64, period int) ([]float64, bool) {
	if period <= 0 || len(values) == 0 {
		return nil, false
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out, true
}

// Median returns the median of the last period values.
func Median(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	window := append([]float64(nil), values[len(values)-period:]...)
	sort.Float64s(window)
	mid := period / 2
	if period%2 == 1 {
		return window[mid], true
	}
	return (window[mid-1] + window[mid]) / 2, true
}

// Slope returns the difference between the last value and the value
// lookback positions earlier, a cheap directional slope measure.
func Slope(values []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(values) <= lookback {
		return 0, false
	}
	return values[len(values)-1] - values[len(values)-1-lookback], true
}
