package indicator

import "signals-systemv1/internal/model"

// Stochastic computes the stochastic oscillator %K and %D for the last
// candle: %K = 100 * (close - LL) / (HH - LL) over kPeriod bars, %D =
// SMA(dPeriod) of %K. ok is false when the series is shorter than
// kPeriod + dPeriod - 1 bars.
func Stochastic(candles []model.Candle, kPeriod, dPeriod int) (k, d float64, ok bool) {
	ks, mask := StochasticK(candles, kPeriod)
	if len(ks) == 0 || !mask[len(mask)-1] {
		return 0, 0, false
	}
	k = ks[len(ks)-1]

	// %D needs dPeriod valid %K values.
	valid := ks[kPeriod-1:]
	d, dok := SMA(valid, dPeriod)
	if !dok {
		return 0, 0, false
	}
	return k, d, true
}

// StochasticK returns the rolling %K series aligned with candles, with a
// validity mask for positions that have a full kPeriod window. A flat
// window (highest high == lowest low) yields %K = 50.
func StochasticK(candles []model.Candle, kPeriod int) ([]float64, []bool) {
	out := make([]float64, len(candles))
	ok := make([]bool, len(candles))
	if kPeriod <= 0 {
		return out, ok
	}
	for i := kPeriod - 1; i < len(candles); i++ {
		window := candles[i-kPeriod+1 : i+1]
		hh, ll := window[0].High, window[0].Low
		for _, c := range window[1:] {
			if c.High > hh {
				hh = c.High
			}
			if c.Low < ll {
				ll = c.Low
			}
		}
		if hh == ll {
			out[i] = 50
		} else {
			out[i] = 100 * (candles[i].Close - ll) / (hh - ll)
		}
		ok[i] = true
	}
	return out, ok
}
