package domain

import (
	"context"
	"time"
)

// Receipt confirms that an outcome write reached the ledger.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	ConfirmedAt time.Time
}

// PoolInfo is a read-only snapshot of a channel's on-ledger pool state.
type PoolInfo struct {
	Channel       string
	TotalDeposit  string // decimal string in whole native units
	CurrentRound  uint64
	LastRoundTime time.Time
	Active        bool
	ActivePlayers int
	TotalPlayers  int
}

// Ledger is the transactional system of record for round outcomes and pool
// state. Writes are best-effort from the caller's perspective: a failed
// RecordOutcome does not roll back local round state.
type Ledger interface {
	// RecordOutcome submits the round's binary outcome and waits for
	// confirmation. Failures are wrapped in ErrLedgerCall.
	RecordOutcome(ctx context.Context, channel string, wentUp bool) (Receipt, error)

	// PoolInfo returns a snapshot of the channel's pool, or ok=false when the
	// read fails for any reason. Read failures are never surfaced as errors so
	// callers can degrade to placeholder values.
	PoolInfo(ctx context.Context, channel string) (info PoolInfo, ok bool)
}
