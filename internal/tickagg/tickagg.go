// Package tickagg turns the broker's raw tick stream into OHLC candles.
// Each desired (asset, period) pair keeps one forming candle; when a
// tick lands in a later bucket the forming candle is finalized and
// handed to the sink. Single consumer, O(1) per tick per period.
package tickagg

import (
	"encoding/json"
	"fmt"
	"log"

	"signals-systemv1/internal/model"
)

// DesiredView gates aggregation the same way the candle store gates
// appends: ticks for pairs the caller no longer wants are skipped.
type DesiredView interface {
	Contains(key model.SubscriptionKey) bool
}

// Tick is one trade print from the wire. The payload is a positional
// array: [asset, ts, price, flag].
type Tick struct {
	Asset string
	TS    int64
	Price float64
}

// ParseTick decodes the positional tick payload. The trailing flag is
// tolerated but ignored.
func ParseTick(payload []byte) (Tick, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(payload, &parts); err != nil {
		return Tick{}, fmt.Errorf("tick payload: %w", err)
	}
	if len(parts) < 3 {
		return Tick{}, fmt.Errorf("tick payload: want at least 3 elements, got %d", len(parts))
	}
	var t Tick
	if err := json.Unmarshal(parts[0], &t.Asset); err != nil {
		return Tick{}, fmt.Errorf("tick asset: %w", err)
	}
	// Timestamps arrive as fractional seconds on some feeds.
	var ts float64
	if err := json.Unmarshal(parts[1], &ts); err != nil {
		return Tick{}, fmt.Errorf("tick ts: %w", err)
	}
	t.TS = int64(ts)
	if err := json.Unmarshal(parts[2], &t.Price); err != nil {
		return Tick{}, fmt.Errorf("tick price: %w", err)
	}
	return t, nil
}

// forming is the in-progress candle for one (asset, period) pair.
type forming struct {
	bucket int64
	candle model.Candle
}

// Aggregator buckets ticks into candles for every desired period.
// Not goroutine-safe; feed it from the single router goroutine.
type Aggregator struct {
	desired DesiredView
	periods []int
	states  map[model.SubscriptionKey]*forming

	// Sink receives each finalized candle.
	Sink func(model.Candle)

	// OnStaleTick is called when a tick older than the forming bucket
	// is rejected (optional).
	OnStaleTick func()
}

// New creates an aggregator over the given candle periods in seconds.
func New(desired DesiredView, periods []int) *Aggregator {
	return &Aggregator{
		desired: desired,
		periods: periods,
		states:  make(map[model.SubscriptionKey]*forming, 64),
	}
}

// Process folds one tick into every desired period's forming candle,
// finalizing buckets the tick has moved past.
func (a *Aggregator) Process(t Tick) {
	for _, period := range a.periods {
		key := model.SubscriptionKey{Asset: t.Asset, Period: period}
		if a.desired != nil && !a.desired.Contains(key) {
			// Drop state so a resubscribed pair starts a clean candle.
			delete(a.states, key)
			continue
		}

		bucket := t.TS - t.TS%int64(period)
		st, exists := a.states[key]

		if exists && bucket < st.bucket {
			// Late tick from a closed bucket; the candle already shipped.
			if a.OnStaleTick != nil {
				a.OnStaleTick()
			}
			continue
		}

		if exists && bucket > st.bucket {
			a.finalize(key, st)
			exists = false
		}

		if !exists {
			a.states[key] = &forming{
				bucket: bucket,
				candle: model.Candle{
					Asset:  t.Asset,
					Period: period,
					TS:     bucket,
					Open:   t.Price,
					High:   t.Price,
					Low:    t.Price,
					Close:  t.Price,
					Volume: 1,
				},
			}
			continue
		}

		c := &st.candle
		if t.Price > c.High {
			c.High = t.Price
		}
		if t.Price < c.Low {
			c.Low = t.Price
		}
		c.Close = t.Price
		c.Volume++
	}
}

// Flush finalizes and emits every forming candle. Called on shutdown
// and after a reconnect so partial buckets are not silently lost.
func (a *Aggregator) Flush() {
	for key, st := range a.states {
		a.finalize(key, st)
	}
}

func (a *Aggregator) finalize(key model.SubscriptionKey, st *forming) {
	delete(a.states, key)
	if a.Sink != nil {
		a.Sink(st.candle)
	} else {
		log.Printf("[tickagg] no sink, dropping candle %s/%d ts=%d", key.Asset, key.Period, st.candle.TS)
	}
}
