// Package subsync reconciles the admin-selected watchlist against the
// broker subscriptions actually in effect.
package subsync

import (
	"sync/atomic"

	"signals-systemv1/internal/model"
)

// DesiredState holds the target set of (asset, period) subscriptions.
// Updates replace the whole set atomically; readers always observe a
// consistent snapshot with no tearing.
type DesiredState struct {
	set atomic.Value // model.KeySet, never mutated in place

	// OnChange fires after each replacement (persistence hook).
	OnChange func(model.KeySet)
}

// NewDesiredState creates an empty desired state.
func NewDesiredState() *DesiredState {
	d := &DesiredState{}
	d.set.Store(make(model.KeySet))
	return d
}

// Set replaces the desired set with the cross product of assets and
// periods. Keys with a period the broker does not accept are dropped.
func (d *DesiredState) Set(assets []string, periods []int) {
	next := make(model.KeySet)
	for k := range model.NewKeySet(assets, periods) {
		if k.ValidPeriod() {
			next[k] = struct{}{}
		}
	}
	d.Replace(next)
}

// Replace swaps in a prebuilt key set. The caller must not mutate it
// afterwards.
func (d *DesiredState) Replace(next model.KeySet) {
	d.set.Store(next)
	if d.OnChange != nil {
		d.OnChange(next)
	}
}

// Get returns the current desired set. The returned set is shared and
// must be treated as read-only.
func (d *DesiredState) Get() model.KeySet {
	return d.set.Load().(model.KeySet)
}

// Contains reports whether key is currently desired.
func (d *DesiredState) Contains(key model.SubscriptionKey) bool {
	return d.Get().Contains(key)
}
