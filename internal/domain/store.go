package domain

import (
	"context"
	"time"
)

// JournalEntry is one settlement record kept for operator reconciliation. When
// a ledger write fails the local round still advances; the journal is how the
// divergence between local and on-ledger state is found afterwards.
type JournalEntry struct {
	ID            string
	Channel       string
	Round         uint64
	WentUp        bool
	PreviousPrice float64
	CurrentPrice  float64
	// TxHash is empty when the ledger call failed; LedgerError then holds the
	// failure description.
	TxHash      string
	LedgerError string
	CreatedAt   time.Time
}

// JournalStore persists settlement records. It is reconciliation tooling, not
// game state: round/roster state lives in memory and resets on restart.
type JournalStore interface {
	Record(ctx context.Context, entry JournalEntry) error
	ListRecent(ctx context.Context, channel string, limit int) ([]JournalEntry, error)
}
