package model

import "time"

// Direction is the discrete trading signal direction.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
	Hold Direction = "hold"
)

// Rule names the strategy variant that produced a verdict.
type Rule string

const (
	RuleReversal       Rule = "reversal"
	RuleTrendFollowing Rule = "trend_following"
)

// Verdict is the signal engine's output for one analysis call.
// Immutable after creation.
type Verdict struct {
	Direction  Direction `json:"signal"`
	Confidence int       `json:"confidence"` // 0..100
	Rule       Rule      `json:"type"`
	Asset      string    `json:"asset"`
	Period     int       `json:"period"`
	ProducedAt time.Time `json:"produced_at"`
}

// Actionable reports whether the verdict is a tradeable signal.
func (v Verdict) Actionable() bool {
	return v.Direction == Buy || v.Direction == Sell
}
