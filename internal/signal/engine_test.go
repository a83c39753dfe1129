package signal

import (
	"context"
	"testing"
	"time"

	"signals-systemv1/internal/model"
)

// uptrendSeries builds a 25-candle trend-following buy setup: a steady
// uptrend, a pullback bar whose long upper wick stretches the stochastic
// range (so %K dips into the buy zone and turns up), an indecision bar,
// and a strong bullish confirmation bar.
func uptrendSeries() []model.Candle {
	candles := make([]model.Candle, 0, 25)
	for i := 0; i < 22; i++ {
		c := 100 + 0.5*float64(i)
		candles = append(candles, model.Candle{
			Asset: "EURUSD", Period: 60, TS: int64(i * 60),
			Open: c - 0.3, High: c + 0.1, Low: c - 0.4, Close: c,
		})
	}
	candles = append(candles,
		model.Candle{Asset: "EURUSD", Period: 60, TS: 22 * 60,
			Open: 110.6, High: 130.0, Low: 109.9, Close: 110.0},
		model.Candle{Asset: "EURUSD", Period: 60, TS: 23 * 60,
			Open: 110.0, High: 110.5, Low: 109.7, Close: 110.1},
		model.Candle{Asset: "EURUSD", Period: 60, TS: 24 * 60,
			Open: 110.2, High: 112.2, Low: 110.1, Close: 112.0},
	)
	return candles
}

func flatSeries(n int) []model.Candle {
	candles := make([]model.Candle, n)
	for i := range candles {
		candles[i] = model.Candle{
			Asset: "EURUSD", Period: 60, TS: int64(i * 60),
			Open: 100, High: 100.5, Low: 99.5, Close: 100,
		}
	}
	return candles
}

func trendingAux(n int, up bool) []model.Candle {
	candles := make([]model.Candle, n)
	for i := range candles {
		c := 100 + 0.5*float64(i)
		if !up {
			c = 100 - 0.5*float64(i)
		}
		open := c - 0.4
		if !up {
			open = c + 0.4
		}
		candles[i] = model.Candle{
			Asset: "EURUSD", Period: 300, TS: int64(i * 300),
			Open: open, High: c + 0.5, Low: c - 0.5, Close: c,
		}
	}
	return candles
}

type mapSource map[model.SubscriptionKey][]model.Candle

func (m mapSource) Snapshot(key model.SubscriptionKey) []model.Candle {
	out := make([]model.Candle, len(m[key]))
	copy(out, m[key])
	return out
}

var testKey = model.SubscriptionKey{Asset: "EURUSD", Period: 60}

func newTestEngine(src SeriesSource) *Engine {
	e := NewEngine(src)
	e.now = func() time.Time { return time.Unix(1700000000, 0) }
	return e
}

func TestAnalyze_TooFewCandles(t *testing.T) {
	e := newTestEngine(mapSource{})
	for _, n := range []int{0, 1, 19} {
		v := e.Analyze(testKey, TrendFollowing(), flatSeries(n), nil)
		if v.Direction != model.Hold || v.Confidence != 0 {
			t.Errorf("n=%d: expected hold/0, got %s/%d", n, v.Direction, v.Confidence)
		}
	}
}

func TestAnalyze_UptrendProducesBuy(t *testing.T) {
	e := newTestEngine(mapSource{})
	v := e.Analyze(testKey, TrendFollowing(), uptrendSeries(), nil)

	if v.Direction != model.Buy {
		t.Fatalf("expected buy, got %s (confidence %d)", v.Direction, v.Confidence)
	}
	if v.Confidence <= 0 {
		t.Fatalf("expected positive confidence, got %d", v.Confidence)
	}
	// Trend, oscillator, volatility and pattern pass; the extremum
	// proximity check cannot in a fresh uptrend: 4 of 5 at 20 points.
	if v.Confidence != 80 {
		t.Errorf("expected confidence 80, got %d", v.Confidence)
	}
	if v.Rule != model.RuleTrendFollowing {
		t.Errorf("rule: got %s", v.Rule)
	}
}

func TestAnalyze_FlatSeriesHolds(t *testing.T) {
	e := newTestEngine(mapSource{})
	v := e.Analyze(testKey, TrendFollowing(), flatSeries(25), nil)
	if v.Direction != model.Hold || v.Confidence != 0 {
		t.Errorf("expected hold/0, got %s/%d", v.Direction, v.Confidence)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	e := newTestEngine(mapSource{})
	series := uptrendSeries()

	v1 := e.Analyze(testKey, TrendFollowing(), series, nil)
	v2 := e.Analyze(testKey, TrendFollowing(), series, nil)

	if v1.Direction != v2.Direction || v1.Confidence != v2.Confidence || v1.Rule != v2.Rule {
		t.Errorf("verdicts differ for identical input: %+v vs %+v", v1, v2)
	}
}

func TestAnalyze_ReversalVariantHoldsOnUptrend(t *testing.T) {
	// A healthy uptrend is not a reversal setup: price never sustained
	// below the trend EMA and no bottoming pattern exists.
	e := newTestEngine(mapSource{})
	v := e.Analyze(testKey, Reversal(), uptrendSeries(), nil)
	if v.Direction != model.Hold {
		t.Errorf("expected hold from reversal table, got %s/%d", v.Direction, v.Confidence)
	}
}

func TestAnalyze_HigherTimeframeConfirmation(t *testing.T) {
	e := newTestEngine(mapSource{})
	series := uptrendSeries()

	tests := []struct {
		name string
		aux  []model.Candle
		want model.Direction
	}{
		{"agreeing bias keeps the signal", trendingAux(25, true), model.Buy},
		{"opposing bias vetoes", trendingAux(25, false), model.Hold},
		{"neutral bias vetoes (strict policy)", flatSeries(25), model.Hold},
		{"unreadable aux leaves the raw signal", trendingAux(5, true), model.Buy},
		{"no aux leaves the raw signal", nil, model.Buy},
	}
	for _, tt := range tests {
		v := e.Analyze(testKey, TrendFollowing(), series, tt.aux)
		if v.Direction != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, v.Direction)
		}
		if tt.want == model.Hold && v.Confidence != 0 {
			t.Errorf("%s: vetoed signal must carry confidence 0, got %d", tt.name, v.Confidence)
		}
	}
}

func TestHigherTimeframeBias(t *testing.T) {
	if b, ok := HigherTimeframeBias(trendingAux(25, true)); !ok || b != BiasBullish {
		t.Errorf("uptrend aux: got bias=%v ok=%v", b, ok)
	}
	if b, ok := HigherTimeframeBias(trendingAux(25, false)); !ok || b != BiasBearish {
		t.Errorf("downtrend aux: got bias=%v ok=%v", b, ok)
	}
	if b, ok := HigherTimeframeBias(flatSeries(25)); !ok || b != BiasNeutral {
		t.Errorf("flat aux: got bias=%v ok=%v", b, ok)
	}
	if _, ok := HigherTimeframeBias(trendingAux(10, true)); ok {
		t.Error("short aux must be unreadable")
	}
}

func TestProcessCandle_RoutesToSinks(t *testing.T) {
	src := mapSource{testKey: uptrendSeries()}
	e := newTestEngine(src)

	var delivered []model.Verdict
	e.AddSink(SinkFunc(func(_ context.Context, v model.Verdict) error {
		delivered = append(delivered, v)
		return nil
	}))

	v := e.ProcessCandle(context.Background(), testKey)
	if v.Direction != model.Buy {
		t.Fatalf("expected buy, got %s", v.Direction)
	}
	if len(delivered) != 1 || delivered[0].Direction != model.Buy {
		t.Errorf("sink deliveries: %+v", delivered)
	}
	if h := e.History(10); len(h) != 1 || h[0].Direction != model.Buy {
		t.Errorf("history: %+v", h)
	}
}

func TestProcessCandle_HoldNotDelivered(t *testing.T) {
	src := mapSource{testKey: flatSeries(25)}
	e := newTestEngine(src)

	calls := 0
	e.AddSink(SinkFunc(func(context.Context, model.Verdict) error {
		calls++
		return nil
	}))

	if v := e.ProcessCandle(context.Background(), testKey); v.Direction != model.Hold {
		t.Fatalf("expected hold, got %s", v.Direction)
	}
	if calls != 0 {
		t.Errorf("hold verdicts must not reach sinks, got %d calls", calls)
	}
	if len(e.History(10)) != 0 {
		t.Error("hold verdicts must not enter history")
	}
}

func TestProcessCandle_AuxVetoFromStore(t *testing.T) {
	auxKey := model.SubscriptionKey{Asset: "EURUSD", Period: 300}
	src := mapSource{
		testKey: uptrendSeries(),
		auxKey:  trendingAux(25, false), // opposing higher timeframe
	}
	e := newTestEngine(src)

	if v := e.ProcessCandle(context.Background(), testKey); v.Direction != model.Hold {
		t.Errorf("expected higher-timeframe veto, got %s", v.Direction)
	}
}
