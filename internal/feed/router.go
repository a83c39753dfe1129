package feed

import (
	"context"
	"encoding/json"
	"log"

	"signals-systemv1/internal/model"
	"signals-systemv1/internal/protocol"
	"signals-systemv1/internal/tickagg"
)

// CandleSink receives finalized candles. Implemented by the candle store.
type CandleSink interface {
	Append(c model.Candle) bool
}

// Analyzer runs the signal pipeline for one pair. Implemented by the
// signal engine.
type Analyzer interface {
	ProcessCandle(ctx context.Context, key model.SubscriptionKey) model.Verdict
}

// Router consumes decoded events from the fanout and feeds the candle
// pipeline: candle events go to the store and trigger analysis, tick
// events go through the aggregator first. Single goroutine.
type Router struct {
	store  CandleSink
	engine Analyzer
	agg    *tickagg.Aggregator

	// Hooks for metrics and health; all optional.
	OnCandle func(c model.Candle)
	OnTick   func()
}

// NewRouter wires a router. agg may be nil when the feed only delivers
// finished candles.
func NewRouter(store CandleSink, engine Analyzer, agg *tickagg.Aggregator) *Router {
	r := &Router{store: store, engine: engine, agg: agg}
	if agg != nil {
		// Aggregated candles rejoin the same path as feed candles.
		agg.Sink = func(c model.Candle) { r.ingest(context.Background(), c) }
	}
	return r
}

// Run dispatches events until ctx ends or the channel closes.
func (r *Router) Run(ctx context.Context, events <-chan protocol.Event) {
	for {
		select {
		case <-ctx.Done():
			if r.agg != nil {
				r.agg.Flush()
			}
			return
		case ev, ok := <-events:
			if !ok {
				if r.agg != nil {
					r.agg.Flush()
				}
				return
			}
			r.dispatch(ctx, ev)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, ev protocol.Event) {
	switch ev.Name {
	case "candle", "instruments/update":
		r.handleCandles(ctx, ev)
	case "tick":
		r.handleTick(ev)
	case "instruments/list":
		// Asset catalog; nothing to update, logged for operators.
		log.Printf("[router] instruments list received (%d bytes)", len(ev.Payload))
	default:
		// Unknown events are expected; the broker emits many we don't use.
	}
}

// handleCandles accepts a single candle object or an array of them.
func (r *Router) handleCandles(ctx context.Context, ev protocol.Event) {
	if len(ev.Payload) == 0 {
		return
	}
	if ev.Payload[0] == '[' {
		var batch []model.Candle
		if err := json.Unmarshal(ev.Payload, &batch); err != nil {
			log.Printf("[router] undecodable candle batch: %v", err)
			return
		}
		for _, c := range batch {
			r.ingest(ctx, c)
		}
		return
	}

	var c model.Candle
	if err := json.Unmarshal(ev.Payload, &c); err != nil {
		log.Printf("[router] undecodable candle: %v", err)
		return
	}
	r.ingest(ctx, c)
}

func (r *Router) ingest(ctx context.Context, c model.Candle) {
	if c.Asset == "" || c.Period <= 0 {
		return
	}
	if !r.store.Append(c) {
		return
	}
	if r.OnCandle != nil {
		r.OnCandle(c)
	}
	if r.engine != nil {
		r.engine.ProcessCandle(ctx, c.Key())
	}
}

func (r *Router) handleTick(ev protocol.Event) {
	if r.agg == nil {
		return
	}
	t, err := tickagg.ParseTick(ev.Payload)
	if err != nil {
		log.Printf("[router] undecodable tick: %v", err)
		return
	}
	if r.OnTick != nil {
		r.OnTick()
	}
	r.agg.Process(t)
}
