package subsync

import (
	"context"
	"log"
	"time"

	"signals-systemv1/internal/model"
)

// DefaultInterval is the diff cadence.
const DefaultInterval = 5 * time.Second

// subscribePayload matches the broker's candle stream request shape.
type subscribePayload struct {
	Type   string `json:"type"`
	Asset  string `json:"asset"`
	Period int    `json:"period"`
}

// Emitter sends event frames to the broker. Implemented by the feed client.
type Emitter interface {
	EmitEvent(name string, payload any) error
	State() model.ConnState
}

// Synchronizer periodically diffs the desired set against the active
// subscription table and emits subscribe/unsubscribe events. The diff is
// idempotent: with an unchanged desired set a cycle emits nothing.
type Synchronizer struct {
	desired  *DesiredState
	emitter  Emitter
	interval time.Duration

	// active is owned by the synchronizer goroutine; no locking needed.
	active model.KeySet

	// Hooks for metrics and tests.
	OnSubscribe   func(model.SubscriptionKey)
	OnUnsubscribe func(model.SubscriptionKey)
}

// New creates a synchronizer. interval <= 0 falls back to DefaultInterval.
func New(desired *DesiredState, emitter Emitter, interval time.Duration) *Synchronizer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Synchronizer{
		desired:  desired,
		emitter:  emitter,
		interval: interval,
		active:   make(model.KeySet),
	}
}

// Run executes diff cycles until ctx is cancelled. Cycles are skipped
// while the connection is not authenticated; a reconnect resets the
// active table so every desired key is re-subscribed on the fresh
// session.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	wasAuthenticated := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			authenticated := s.emitter.State() == model.Authenticated
			if !authenticated {
				if wasAuthenticated {
					s.resetActive()
				}
				wasAuthenticated = false
				continue
			}
			wasAuthenticated = true
			s.Cycle()
		}
	}
}

// Cycle runs one reconciliation pass. A failed emit leaves the key's
// table entry unchanged so the next cycle retries it; the rest of the
// cycle proceeds.
func (s *Synchronizer) Cycle() (added, removed int) {
	desired := s.desired.Get() // one consistent snapshot per cycle

	for _, key := range desired.Diff(s.active) {
		if err := s.emit("subscribe", key); err != nil {
			log.Printf("[subsync] subscribe %s: %v (will retry)", key, err)
			continue
		}
		s.active[key] = struct{}{}
		added++
		if s.OnSubscribe != nil {
			s.OnSubscribe(key)
		}
	}

	for _, key := range s.active.Diff(desired) {
		if err := s.emit("unsubscribe", key); err != nil {
			log.Printf("[subsync] unsubscribe %s: %v (will retry)", key, err)
			continue
		}
		delete(s.active, key)
		removed++
		if s.OnUnsubscribe != nil {
			s.OnUnsubscribe(key)
		}
	}

	if added > 0 || removed > 0 {
		log.Printf("[subsync] cycle: +%d -%d active=%d", added, removed, len(s.active))
	}
	return added, removed
}

// resetActive clears the active table after a connection drop. The
// broker forgot our subscriptions along with the session, so each key
// is reported through OnUnsubscribe before the table is rebuilt.
func (s *Synchronizer) resetActive() {
	for key := range s.active {
		if s.OnUnsubscribe != nil {
			s.OnUnsubscribe(key)
		}
	}
	s.active = make(model.KeySet)
}

// ActiveCount returns the size of the active table. Safe to call only
// from the synchronizer's own goroutine or in tests.
func (s *Synchronizer) ActiveCount() int { return len(s.active) }

func (s *Synchronizer) emit(name string, key model.SubscriptionKey) error {
	return s.emitter.EmitEvent(name, subscribePayload{
		Type:   "candles",
		Asset:  key.Asset,
		Period: key.Period,
	})
}
