// Package domain defines the core types, interfaces, and sentinel errors
// shared across the oracle backend. Concrete implementations live in the
// sibling packages (pricefeed, ledger, cache/redis, store/postgres, game).
package domain

import "time"

// PriceObservation is a single price quote delivered by the upstream feed.
// Observations are immutable; a newer observation supersedes the previous one
// rather than mutating it.
type PriceObservation struct {
	Channel    string
	Value      float64
	ObservedAt time.Time
}

// RoundOutcome captures the result of one completed settlement cycle.
type RoundOutcome struct {
	Channel       string
	Round         uint64
	PreviousPrice float64
	CurrentPrice  float64
	WentUp        bool
	Delta         float64
	DeltaPercent  float64
	// Stale is set when the settling price was older than the freshness
	// threshold at tick time.
	Stale     bool
	SettledAt time.Time
}

// NewRoundOutcome derives the outcome of a round from two consecutive prices.
// Equal prices resolve to WentUp=false: only a strictly higher current price
// counts as "up".
func NewRoundOutcome(channel string, round uint64, previous, current PriceObservation, stale bool, now time.Time) RoundOutcome {
	delta := current.Value - previous.Value
	return RoundOutcome{
		Channel:       channel,
		Round:         round,
		PreviousPrice: previous.Value,
		CurrentPrice:  current.Value,
		WentUp:        current.Value > previous.Value,
		Delta:         delta,
		DeltaPercent:  delta / previous.Value * 100,
		Stale:         stale,
		SettledAt:     now,
	}
}
