package feed

import (
	"context"
	"encoding/json"
	"testing"

	"signals-systemv1/internal/model"
	"signals-systemv1/internal/protocol"
	"signals-systemv1/internal/tickagg"
)

type recordingStore struct {
	candles []model.Candle
	accept  bool
}

func (s *recordingStore) Append(c model.Candle) bool {
	if !s.accept {
		return false
	}
	s.candles = append(s.candles, c)
	return true
}

type recordingAnalyzer struct {
	keys []model.SubscriptionKey
}

func (a *recordingAnalyzer) ProcessCandle(_ context.Context, key model.SubscriptionKey) model.Verdict {
	a.keys = append(a.keys, key)
	return model.Verdict{Direction: model.Hold}
}

type openDesired struct{}

func (openDesired) Contains(model.SubscriptionKey) bool { return true }

func event(t *testing.T, name string, payload any) protocol.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return protocol.Event{Name: name, Payload: raw}
}

func TestRouterIngestsCandleObject(t *testing.T) {
	store := &recordingStore{accept: true}
	eng := &recordingAnalyzer{}
	r := NewRouter(store, eng, nil)

	c := model.Candle{Asset: "EURUSD", Period: 60, TS: 1700000040, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15}
	r.dispatch(context.Background(), event(t, "candle", c))

	if len(store.candles) != 1 || store.candles[0] != c {
		t.Fatalf("stored = %+v", store.candles)
	}
	if len(eng.keys) != 1 || eng.keys[0] != c.Key() {
		t.Fatalf("analyzed keys = %v", eng.keys)
	}
}

func TestRouterIngestsCandleBatch(t *testing.T) {
	store := &recordingStore{accept: true}
	eng := &recordingAnalyzer{}
	r := NewRouter(store, eng, nil)

	batch := []model.Candle{
		{Asset: "EURUSD", Period: 60, TS: 1700000040, Open: 1, High: 1, Low: 1, Close: 1},
		{Asset: "EURUSD", Period: 60, TS: 1700000100, Open: 1, High: 1, Low: 1, Close: 1},
	}
	r.dispatch(context.Background(), event(t, "instruments/update", batch))

	if len(store.candles) != 2 {
		t.Fatalf("stored %d candles, want 2", len(store.candles))
	}
	if len(eng.keys) != 2 {
		t.Fatalf("analyzed %d keys, want 2", len(eng.keys))
	}
}

func TestRouterSkipsRejectedCandles(t *testing.T) {
	store := &recordingStore{accept: false}
	eng := &recordingAnalyzer{}
	r := NewRouter(store, eng, nil)

	c := model.Candle{Asset: "EURUSD", Period: 60, TS: 1700000040, Open: 1, High: 1, Low: 1, Close: 1}
	r.dispatch(context.Background(), event(t, "candle", c))

	if len(eng.keys) != 0 {
		t.Fatalf("rejected candle still analyzed: %v", eng.keys)
	}
}

func TestRouterIgnoresMalformedAndUnknown(t *testing.T) {
	store := &recordingStore{accept: true}
	eng := &recordingAnalyzer{}
	r := NewRouter(store, eng, nil)

	r.dispatch(context.Background(), protocol.Event{Name: "candle", Payload: json.RawMessage(`"???"`)})
	r.dispatch(context.Background(), protocol.Event{Name: "balance/changed", Payload: json.RawMessage(`{"balance":100}`)})
	r.dispatch(context.Background(), event(t, "candle", model.Candle{Asset: "", Period: 60}))

	if len(store.candles) != 0 || len(eng.keys) != 0 {
		t.Fatalf("bad input reached pipeline: %v %v", store.candles, eng.keys)
	}
}

func TestRouterAggregatesTicks(t *testing.T) {
	store := &recordingStore{accept: true}
	eng := &recordingAnalyzer{}
	agg := tickagg.New(openDesired{}, []int{60})
	r := NewRouter(store, eng, agg)

	r.dispatch(context.Background(), protocol.Event{Name: "tick", Payload: json.RawMessage(`["EURUSD",1700000041,1.10,0]`)})
	r.dispatch(context.Background(), protocol.Event{Name: "tick", Payload: json.RawMessage(`["EURUSD",1700000050,1.12,0]`)})
	if len(store.candles) != 0 {
		t.Fatalf("candle emitted before bucket close: %+v", store.candles)
	}

	// Rolls the bucket over; the aggregated candle joins the pipeline.
	r.dispatch(context.Background(), protocol.Event{Name: "tick", Payload: json.RawMessage(`["EURUSD",1700000101,1.11,0]`)})
	if len(store.candles) != 1 {
		t.Fatalf("stored %d candles, want 1", len(store.candles))
	}
	got := store.candles[0]
	if got.TS != 1700000040 || got.Open != 1.10 || got.Close != 1.12 {
		t.Errorf("aggregated candle = %+v", got)
	}
	if len(eng.keys) != 1 {
		t.Errorf("aggregated candle not analyzed")
	}
}
