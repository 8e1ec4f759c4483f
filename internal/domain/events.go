package domain

import "time"

// Broadcast channel names carried on the signal bus and mirrored to WebSocket
// clients by the hub.
const (
	ChanRoundStart        = "round_start"
	ChanRoundEnd          = "round_end"
	ChanPriceTick         = "price_tick"
	ChanParticipantUpdate = "participant_update"
	ChanGameEnd           = "game_end"
)

// RoundStartEvent announces the next round. It carries enough state (round
// number, base price) for a freshly connected client to resynchronize.
type RoundStartEvent struct {
	Channel   string    `json:"channel"`
	Round     uint64    `json:"round"`
	BasePrice float64   `json:"base_price"`
	Stale     bool      `json:"stale,omitempty"`
	Question  string    `json:"question"`
	StartTime time.Time `json:"start_time"`
	Deadline  time.Time `json:"deadline"`
}

// RoundEndEvent announces a settled round and its outcome.
type RoundEndEvent struct {
	Channel       string    `json:"channel"`
	Round         uint64    `json:"round"`
	PreviousPrice float64   `json:"previous_price"`
	CurrentPrice  float64   `json:"current_price"`
	WentUp        bool      `json:"went_up"`
	Delta         float64   `json:"delta"`
	DeltaPercent  float64   `json:"delta_percent"`
	Stale         bool      `json:"stale,omitempty"`
	Survivors     int       `json:"survivors"`
	SettledAt     time.Time `json:"settled_at"`
}

// PriceTickEvent is an informational live-price update. Ticks may interleave
// with round boundaries; they carry no game state.
type PriceTickEvent struct {
	Channel   string    `json:"channel"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// ParticipantUpdateEvent reports a roster change (join or elimination).
type ParticipantUpdateEvent struct {
	Channel     string `json:"channel"`
	Address     string `json:"address"`
	Eliminated  bool   `json:"eliminated"`
	Reason      string `json:"reason,omitempty"`
	ActiveCount int    `json:"active_count"`
	TotalCount  int    `json:"total_count"`
}

// GameEndEvent signals the end of a game run: either a single winner remains,
// or every remaining participant was eliminated in the same round (a draw).
type GameEndEvent struct {
	Channel       string    `json:"channel"`
	Round         uint64    `json:"round"`
	Draw          bool      `json:"draw"`
	WinnerAddress string    `json:"winner_address,omitempty"`
	EndedAt       time.Time `json:"ended_at"`
}
