// Package candlestore keeps bounded in-memory OHLC series per
// (asset, period) key. The feed event loop is the only writer; the
// signal engine reads point-in-time snapshots.
package candlestore

import (
	"sync"

	"signals-systemv1/internal/model"
)

// DefaultCap is the per-key retention limit.
const DefaultCap = 50

// DesiredView answers whether a key is currently admin-selected.
// Appends for keys outside the desired set are dropped.
type DesiredView interface {
	Contains(key model.SubscriptionKey) bool
}

// Store holds one ordered candle series per subscription key.
type Store struct {
	mu      sync.Mutex
	series  map[model.SubscriptionKey][]model.Candle
	cap     int
	desired DesiredView

	// OnAppend is invoked after a successful append (metrics hook).
	OnAppend func(key model.SubscriptionKey)
}

// New creates a store gated by the given desired-state view.
// capacity <= 0 falls back to DefaultCap.
func New(desired DesiredView, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{
		series:  make(map[model.SubscriptionKey][]model.Candle),
		cap:     capacity,
		desired: desired,
	}
}

// Append inserts a candle into its key's series, keeping the series
// sorted by timestamp with no duplicates. A candle with an already-seen
// timestamp replaces the stored one. When the series exceeds the cap the
// oldest candle is evicted. Appends for keys not in the desired set are
// no-ops.
func (s *Store) Append(c model.Candle) bool {
	key := c.Key()
	if s.desired != nil && !s.desired.Contains(key) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.series[key]

	// Timestamps almost always arrive in order, so walk from the tail.
	i := len(series)
	for i > 0 && series[i-1].TS > c.TS {
		i--
	}
	if i > 0 && series[i-1].TS == c.TS {
		series[i-1] = c // dedupe: keep the latest value
		s.series[key] = series
	} else {
		series = append(series, model.Candle{})
		copy(series[i+1:], series[i:])
		series[i] = c
		if len(series) > s.cap {
			series = series[1:]
		}
		s.series[key] = series
	}

	if s.OnAppend != nil {
		s.OnAppend(key)
	}
	return true
}

// Snapshot returns a copy of the series for key, ordered by timestamp.
// The caller may read it freely while appends continue.
func (s *Store) Snapshot(key model.SubscriptionKey) []model.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	series := s.series[key]
	out := make([]model.Candle, len(series))
	copy(out, series)
	return out
}

// Len returns the current series length for key.
func (s *Store) Len(key model.SubscriptionKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.series[key])
}

// Drop removes the series for a key (used when a key leaves the desired set).
func (s *Store) Drop(key model.SubscriptionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, key)
}

// Keys returns the keys that currently hold data.
func (s *Store) Keys() []model.SubscriptionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SubscriptionKey, 0, len(s.series))
	for k := range s.series {
		out = append(out, k)
	}
	return out
}
