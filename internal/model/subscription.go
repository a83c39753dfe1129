package model

import (
	"fmt"
	"sort"
)

// ValidPeriods lists the candle periods (seconds) the broker accepts.
var ValidPeriods = []int{60, 120, 180, 300}

// SubscriptionKey identifies one (asset, period) candle stream.
// At most one active subscription exists per key.
type SubscriptionKey struct {
	Asset  string `json:"asset"`
	Period int    `json:"period"` // seconds: 60, 120, 180 or 300
}

func (k SubscriptionKey) String() string {
	return fmt.Sprintf("%s/%ds", k.Asset, k.Period)
}

// ValidPeriod reports whether the key's period is one the broker accepts.
func (k SubscriptionKey) ValidPeriod() bool {
	for _, p := range ValidPeriods {
		if k.Period == p {
			return true
		}
	}
	return false
}

// KeySet is a set of subscription keys. The zero value is not usable;
// build one with NewKeySet.
type KeySet map[SubscriptionKey]struct{}

// NewKeySet builds the cross product of assets and periods.
func NewKeySet(assets []string, periods []int) KeySet {
	s := make(KeySet, len(assets)*len(periods))
	for _, a := range assets {
		for _, p := range periods {
			s[SubscriptionKey{Asset: a, Period: p}] = struct{}{}
		}
	}
	return s
}

// Contains reports membership.
func (s KeySet) Contains(k SubscriptionKey) bool {
	_, ok := s[k]
	return ok
}

// Diff returns the keys present in s but absent from other.
func (s KeySet) Diff(other KeySet) []SubscriptionKey {
	var out []SubscriptionKey
	for k := range s {
		if _, ok := other[k]; !ok {
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}

// Clone returns an independent copy of the set.
func (s KeySet) Clone() KeySet {
	c := make(KeySet, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// Keys returns the members in deterministic order.
func (s KeySet) Keys() []SubscriptionKey {
	out := make([]SubscriptionKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

func sortKeys(keys []SubscriptionKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Asset != keys[j].Asset {
			return keys[i].Asset < keys[j].Asset
		}
		return keys[i].Period < keys[j].Period
	})
}
