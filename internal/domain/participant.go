package domain

import "time"

// Direction is a participant's committed prediction for the current round.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

// String returns the wire representation used in broadcast payloads.
func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "none"
	}
}

// Matches reports whether the committed direction agrees with a round outcome.
// An uncommitted direction never matches: a participant who did not commit
// before the tick is treated as incorrect.
func (d Direction) Matches(wentUp bool) bool {
	if wentUp {
		return d == DirectionUp
	}
	return d == DirectionDown
}

// Participant is one player in a channel's game run. Eliminated is one-way:
// once set it is never cleared within the same run.
type Participant struct {
	ID         string
	Address    string
	Committed  Direction
	Eliminated bool
	JoinedAt   time.Time
}
