package indicator

import (
	"math"

	"signals-systemv1/internal/model"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(c model.Candle, prevClose float64) float64 {
	tr := c.High - c.Low
	if v := math.Abs(c.High - prevClose); v > tr {
		tr = v
	}
	if v := math.Abs(c.Low - prevClose); v > tr {
		tr = v
	}
	return tr
}

// ATR returns the average true range over the last period bars.
// Needs period+1 candles (the first bar only supplies its close).
func ATR(candles []model.Candle, period int) (float64, bool) {
	s, mask := ATRSeries(candles, period)
	if len(s) == 0 || !mask[len(mask)-1] {
		return 0, false
	}
	return s[len(s)-1], true
}

// ATRSeries returns the rolling ATR aligned with candles, computed as a
// simple rolling mean of true range (true range at index 0 degrades to
// high-low since there is no previous close).
func ATRSeries(candles []model.Candle, period int) ([]float64, []bool) {
	out := make([]float64, len(candles))
	ok := make([]bool, len(candles))
	if period <= 0 || len(candles) == 0 {
		return out, ok
	}

	trs := make([]float64, len(candles))
	trs[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		trs[i] = TrueRange(candles[i], candles[i-1].Close)
	}

	sum := 0.0
	for i, tr := range trs {
		sum += tr
		if i >= period {
			sum -= trs[i-period]
		}
		// Index 0 has no real true range, so a full window starts at period.
		if i >= period {
			out[i] = sum / float64(period)
			ok[i] = true
		}
	}
	return out, ok
}
