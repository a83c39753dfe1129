package signal

import (
	"context"
	"log"
	"math"
	"time"

	"signals-systemv1/internal/model"
	"signals-systemv1/internal/ringbuf"
)

// MinSeriesLen is the shortest series the engine will analyze.
const MinSeriesLen = 20

// historyCap bounds the in-memory verdict history.
const historyCap = 100

// Sink receives actionable (non-Hold) verdicts. Implementations must not
// block the caller for long; delivery errors are logged and dropped.
type Sink interface {
	OnSignal(ctx context.Context, v model.Verdict) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, v model.Verdict) error

func (f SinkFunc) OnSignal(ctx context.Context, v model.Verdict) error { return f(ctx, v) }

// SeriesSource supplies candle snapshots per key. Implemented by the
// candle store.
type SeriesSource interface {
	Snapshot(key model.SubscriptionKey) []model.Candle
}

// Engine evaluates the rule set and fans verdicts out to sinks.
type Engine struct {
	source  SeriesSource
	sinks   []Sink
	history *ringbuf.Ring

	// AuxPeriod names the higher timeframe used to confirm
	// trend-following signals. Zero disables confirmation.
	AuxPeriod int

	// Hooks for metrics.
	OnVerdict func(v model.Verdict)

	now func() time.Time
}

// NewEngine creates an engine reading series from source.
func NewEngine(source SeriesSource) *Engine {
	return &Engine{
		source:    source,
		history:   ringbuf.New(historyCap),
		AuxPeriod: 300,
		now:       time.Now,
	}
}

// AddSink registers a verdict consumer. Not safe to call concurrently
// with ProcessCandle; register sinks before starting the feed.
func (e *Engine) AddSink(s Sink) { e.sinks = append(e.sinks, s) }

// History returns the recent verdict history, oldest first.
func (e *Engine) History(n int) []model.Verdict { return e.history.Recent(n) }

// ProcessCandle is invoked from the feed event loop after each appended
// candle. It snapshots the key's series, picks the variant by period,
// attaches the higher-timeframe confirmation series when available, and
// routes any actionable verdict to the sinks. Runs synchronously so
// analyses for one key never overlap.
func (e *Engine) ProcessCandle(ctx context.Context, key model.SubscriptionKey) model.Verdict {
	series := e.source.Snapshot(key)

	var aux []model.Candle
	if e.AuxPeriod > 0 && key.Period < e.AuxPeriod {
		aux = e.source.Snapshot(model.SubscriptionKey{Asset: key.Asset, Period: e.AuxPeriod})
	}

	v := e.Analyze(key, VariantFor(key.Period), series, aux)
	if e.OnVerdict != nil {
		e.OnVerdict(v)
	}
	if !v.Actionable() {
		return v
	}

	e.history.Push(v)
	for _, sink := range e.sinks {
		if err := sink.OnSignal(ctx, v); err != nil {
			log.Printf("[signal] sink error for %s: %v", key, err)
		}
	}
	return v
}

// Analyze scores both directions of the variant's checklist over the
// series and returns a verdict. Deterministic apart from ProducedAt.
// Series shorter than MinSeriesLen, ties, sub-threshold totals and any
// internal panic all degrade to Hold with confidence 0.
func (e *Engine) Analyze(key model.SubscriptionKey, v Variant, series, aux []model.Candle) (verdict model.Verdict) {
	verdict = model.Verdict{
		Direction:  model.Hold,
		Confidence: 0,
		Rule:       v.Rule,
		Asset:      key.Asset,
		Period:     key.Period,
		ProducedAt: e.now(),
	}

	// Feed gaps and numeric edge cases must never crash the pipeline.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[signal] analyze %s panicked: %v (degrading to hold)", key, r)
			verdict.Direction = model.Hold
			verdict.Confidence = 0
		}
	}()

	if len(series) < MinSeriesLen {
		return verdict
	}

	buy, sell := evaluate(v, series)

	buyScore, sellScore := buy.score(v.Weights), sell.score(v.Weights)
	if v.TrendMandatory {
		if !buy.Trend {
			buyScore = 0
		}
		if !sell.Trend {
			sellScore = 0
		}
	}

	direction := model.Hold
	score := 0
	switch {
	case buyScore > sellScore && buy.count() >= v.MinConditions:
		direction, score = model.Buy, buyScore
	case sellScore > buyScore && sell.count() >= v.MinConditions:
		direction, score = model.Sell, sellScore
	}
	if direction == model.Hold {
		return verdict
	}

	// Higher-timeframe confirmation, strict policy: a readable bias
	// that does not point the same way (neutral included) vetoes the
	// signal. An unreadable aux series leaves the raw signal intact.
	if len(aux) > 0 {
		if bias, ok := HigherTimeframeBias(aux); ok && !bias.agrees(direction) {
			return verdict
		}
	}

	verdict.Direction = direction
	verdict.Confidence = int(math.Round(100 * float64(score) / float64(v.Weights.Max())))
	return verdict
}
