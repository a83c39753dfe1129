package subsync

import (
	"errors"
	"testing"

	"signals-systemv1/internal/model"
)

type recordedFrame struct {
	Name   string
	Asset  string
	Period int
}

// fakeEmitter records frames and can fail selected keys.
type fakeEmitter struct {
	state  model.ConnState
	frames []recordedFrame
	fail   map[model.SubscriptionKey]bool
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{state: model.Authenticated, fail: make(map[model.SubscriptionKey]bool)}
}

func (f *fakeEmitter) EmitEvent(name string, payload any) error {
	p := payload.(subscribePayload)
	key := model.SubscriptionKey{Asset: p.Asset, Period: p.Period}
	if f.fail[key] {
		return errors.New("transient send failure")
	}
	f.frames = append(f.frames, recordedFrame{Name: name, Asset: p.Asset, Period: p.Period})
	return nil
}

func (f *fakeEmitter) State() model.ConnState { return f.state }

func (f *fakeEmitter) count(name, asset string, period int) int {
	n := 0
	for _, fr := range f.frames {
		if fr.Name == name && fr.Asset == asset && fr.Period == period {
			n++
		}
	}
	return n
}

func TestCycle_SubscribesDesired(t *testing.T) {
	desired := NewDesiredState()
	desired.Set([]string{"EURUSD", "GBPUSD"}, []int{60, 300})
	em := newFakeEmitter()
	s := New(desired, em, 0)

	added, removed := s.Cycle()
	if added != 4 || removed != 0 {
		t.Fatalf("expected +4 -0, got +%d -%d", added, removed)
	}
	if len(em.frames) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(em.frames))
	}
	for _, fr := range em.frames {
		if fr.Name != "subscribe" {
			t.Errorf("unexpected frame %+v", fr)
		}
	}
}

func TestCycle_Idempotent(t *testing.T) {
	desired := NewDesiredState()
	desired.Set([]string{"EURUSD"}, []int{60})
	em := newFakeEmitter()
	s := New(desired, em, 0)

	s.Cycle()
	before := len(em.frames)

	added, removed := s.Cycle()
	if added != 0 || removed != 0 {
		t.Errorf("second cycle should be a no-op, got +%d -%d", added, removed)
	}
	if len(em.frames) != before {
		t.Errorf("second cycle emitted %d extra frames", len(em.frames)-before)
	}
}

func TestCycle_AtomicReplaceEmitsExactDiff(t *testing.T) {
	desired := NewDesiredState()
	desired.Set([]string{"A"}, []int{60})
	em := newFakeEmitter()
	s := New(desired, em, 0)
	s.Cycle()

	desired.Set([]string{"B"}, []int{120})
	added, removed := s.Cycle()
	if added != 1 || removed != 1 {
		t.Fatalf("expected +1 -1, got +%d -%d", added, removed)
	}
	if em.count("unsubscribe", "A", 60) != 1 {
		t.Error("expected exactly one unsubscribe for (A,60)")
	}
	if em.count("subscribe", "B", 120) != 1 {
		t.Error("expected exactly one subscribe for (B,120)")
	}
}

func TestCycle_EmitFailureRetriedNextCycle(t *testing.T) {
	desired := NewDesiredState()
	desired.Set([]string{"A", "B"}, []int{60})
	em := newFakeEmitter()
	badKey := model.SubscriptionKey{Asset: "A", Period: 60}
	em.fail[badKey] = true
	s := New(desired, em, 0)

	added, _ := s.Cycle()
	if added != 1 {
		t.Fatalf("expected the healthy key to subscribe despite the failure, got +%d", added)
	}
	if em.count("subscribe", "B", 60) != 1 {
		t.Error("failure for one key must not abort the cycle")
	}

	// The failed key is retried on the next cycle.
	em.fail[badKey] = false
	added, _ = s.Cycle()
	if added != 1 || em.count("subscribe", "A", 60) != 1 {
		t.Errorf("expected retry to subscribe (A,60): +%d frames=%v", added, em.frames)
	}
}

func TestResetActive_FiresUnsubscribeHookPerKey(t *testing.T) {
	desired := NewDesiredState()
	desired.Set([]string{"EURUSD", "GBPUSD"}, []int{60})
	em := newFakeEmitter()
	s := New(desired, em, 0)

	subs, unsubs := 0, 0
	s.OnSubscribe = func(model.SubscriptionKey) { subs++ }
	s.OnUnsubscribe = func(model.SubscriptionKey) { unsubs++ }
	s.Cycle()
	if subs != 2 {
		t.Fatalf("expected 2 subscribe hooks, got %d", subs)
	}

	// A connection drop invalidates the whole table; every cleared key
	// must be reported so gauge-style listeners stay balanced.
	s.resetActive()
	if unsubs != 2 {
		t.Errorf("expected 2 unsubscribe hooks on reset, got %d", unsubs)
	}
	if s.ActiveCount() != 0 {
		t.Errorf("active table not cleared: %d entries", s.ActiveCount())
	}

	// The next cycle re-subscribes everything on the fresh session.
	added, _ := s.Cycle()
	if added != 2 || subs != 4 {
		t.Errorf("expected full re-subscribe, got +%d (hooks %d)", added, subs)
	}
}

func TestDesiredState_InvalidPeriodsDropped(t *testing.T) {
	desired := NewDesiredState()
	desired.Set([]string{"A"}, []int{60, 90, 300})
	got := desired.Get()
	if len(got) != 2 {
		t.Fatalf("expected 2 valid keys, got %d", len(got))
	}
	if got.Contains(model.SubscriptionKey{Asset: "A", Period: 90}) {
		t.Error("period 90 is not broker-valid and must be dropped")
	}
}

func TestDesiredState_AtomicSwap(t *testing.T) {
	desired := NewDesiredState()
	desired.Set([]string{"A"}, []int{60})
	snap := desired.Get()

	desired.Set([]string{"B"}, []int{120})

	// The earlier snapshot must be unaffected by the swap.
	if !snap.Contains(model.SubscriptionKey{Asset: "A", Period: 60}) || len(snap) != 1 {
		t.Error("previous snapshot torn by concurrent replace")
	}
	if !desired.Contains(model.SubscriptionKey{Asset: "B", Period: 120}) {
		t.Error("new set not visible after replace")
	}
}
