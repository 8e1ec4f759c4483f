package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// JournalStore implements domain.JournalStore using PostgreSQL.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a JournalStore backed by the given connection pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

// Record appends one settlement entry. Entries are append-only; a failed
// ledger write is recorded with its error text and an empty tx hash.
func (s *JournalStore) Record(ctx context.Context, entry domain.JournalEntry) error {
	const query = `
		INSERT INTO settlement_journal
			(id, channel, round, went_up, previous_price, current_price, tx_hash, ledger_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		entry.ID, entry.Channel, int64(entry.Round), entry.WentUp,
		entry.PreviousPrice, entry.CurrentPrice,
		entry.TxHash, entry.LedgerError, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record settlement %s round %d: %w",
			entry.Channel, entry.Round, err)
	}
	return nil
}

// ListRecent returns the channel's most recent settlement entries, newest
// first.
func (s *JournalStore) ListRecent(ctx context.Context, channel string, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, channel, round, went_up, previous_price, current_price, tx_hash, ledger_error, created_at
		FROM settlement_journal
		WHERE channel = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements %s: %w", channel, err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var round int64
		if err := rows.Scan(&e.ID, &e.Channel, &round, &e.WentUp,
			&e.PreviousPrice, &e.CurrentPrice, &e.TxHash, &e.LedgerError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		e.Round = uint64(round)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list settlements rows: %w", err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.JournalStore = (*JournalStore)(nil)
