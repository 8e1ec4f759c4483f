package game

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// Roster tracks one channel's participants for the current game run.
// Elimination is one-way: an eliminated participant never rejoins within the
// run. All methods are safe for concurrent use.
type Roster struct {
	mu           sync.Mutex
	participants map[string]*domain.Participant // keyed by address
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{participants: make(map[string]*domain.Participant)}
}

// Join adds a participant. Joining is idempotent: a known address, eliminated
// or not, is left untouched and Join reports false.
func (r *Roster) Join(address string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[address]; ok {
		return false
	}
	r.participants[address] = &domain.Participant{
		ID:       uuid.NewString(),
		Address:  address,
		JoinedAt: now,
	}
	return true
}

// Commit records the participant's prediction for the current round. A second
// commit within the same round is rejected; the first one stands.
func (r *Roster) Commit(address string, dir domain.Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[address]
	if !ok {
		return fmt.Errorf("roster: %s: %w", address, domain.ErrNotFound)
	}
	if p.Eliminated {
		return fmt.Errorf("roster: %s: %w", address, domain.ErrEliminated)
	}
	if p.Committed != domain.DirectionNone {
		return fmt.Errorf("roster: %s: %w", address, domain.ErrAlreadyCommitted)
	}
	p.Committed = dir
	return nil
}

// EliminateLosers marks every active participant whose commitment does not
// match the outcome as eliminated, uncommitted participants included, and
// returns the newly eliminated participants. Surviving commitments are cleared
// for the next round.
func (r *Roster) EliminateLosers(wentUp bool) []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Participant
	for _, p := range r.participants {
		if p.Eliminated {
			continue
		}
		if !p.Committed.Matches(wentUp) {
			p.Eliminated = true
			out = append(out, *p)
			continue
		}
		p.Committed = domain.DirectionNone
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Active returns the surviving participants, ordered by address for stable
// output.
func (r *Roster) Active() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Participant
	for _, p := range r.participants {
		if !p.Eliminated {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Counts returns the number of active and total participants.
func (r *Roster) Counts() (active, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total = len(r.participants)
	for _, p := range r.participants {
		if !p.Eliminated {
			active++
		}
	}
	return active, total
}
