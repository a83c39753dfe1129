package signal

import (
	"signals-systemv1/internal/indicator"
	"signals-systemv1/internal/model"
)

// Bias is a higher-timeframe directional reading.
type Bias int

const (
	BiasNeutral Bias = iota
	BiasBullish
	BiasBearish
)

const (
	biasEMAPeriod     = 20
	biasSlopeLookback = 5
	biasBodyWindow    = 30
	biasMinBars       = 20
)

// HigherTimeframeBias derives a directional bias from a higher-timeframe
// series: the smoothed-close slope and the mean close-vs-open relation
// over the recent window must agree, otherwise the bias is neutral.
// Series shorter than biasMinBars cannot be read and report neutral with
// ok=false so the caller can treat the confirmation as unavailable.
func HigherTimeframeBias(candles []model.Candle) (Bias, bool) {
	if len(candles) < biasMinBars {
		return BiasNeutral, false
	}

	ema, ok := indicator.EMASeries(model.Closes(candles), biasEMAPeriod)
	if !ok {
		return BiasNeutral, false
	}
	slope, ok := indicator.Slope(ema, biasSlopeLookback)
	if !ok {
		return BiasNeutral, false
	}

	window := candles
	if len(window) > biasBodyWindow {
		window = window[len(window)-biasBodyWindow:]
	}
	var closeSum, openSum float64
	for _, c := range window {
		closeSum += c.Close
		openSum += c.Open
	}

	switch {
	case slope > 0 && closeSum > openSum:
		return BiasBullish, true
	case slope < 0 && closeSum < openSum:
		return BiasBearish, true
	default:
		return BiasNeutral, true
	}
}

// agrees reports whether a raw direction is compatible with the bias
// under the strict confirmation policy: the bias must point the same
// way; a neutral bias rejects both directions.
func (b Bias) agrees(d model.Direction) bool {
	switch d {
	case model.Buy:
		return b == BiasBullish
	case model.Sell:
		return b == BiasBearish
	default:
		return true
	}
}
