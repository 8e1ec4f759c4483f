// Package game implements the round lifecycle: the scheduler ticks, the
// settler resolves each round against the latest price, the roster tracks
// eliminations, and the broadcaster announces every transition.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// Notification event types emitted by the settler.
const (
	EventLedgerFailed = "ledger_failed"
	EventGameEnded    = "game_ended"
)

// PriceSource yields the latest observation for a channel together with a
// staleness flag.
type PriceSource interface {
	Latest(channel string) (obs domain.PriceObservation, stale bool, err error)
}

// Alerter delivers operator notifications. *notify.Notifier satisfies it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// SettlerConfig carries the game parameters.
type SettlerConfig struct {
	// Channels are the price channels the settler runs games for.
	Channels []string
	// RoundInterval is the nominal spacing between ticks; it only shapes the
	// announced commitment deadline, the scheduler owns actual timing.
	RoundInterval time.Duration
	// AllowStale settles rounds on stale prices (with a warning) instead of
	// skipping the tick.
	AllowStale bool
}

// channelState is one channel's in-memory game state. It resets on restart;
// the ledger and the journal are the durable records.
type channelState struct {
	prev     *domain.PriceObservation
	round    uint64
	roster   *Roster
	finished bool
}

// Settler resolves rounds. Each tick compares the latest price against the
// previous round's price, records the binary outcome on the ledger, and
// eliminates every participant whose prediction did not match. The first tick
// of a channel only seeds the baseline price.
//
// A failed ledger write is logged and journaled but the local round still
// advances: the game keeps its cadence and the journal carries the divergence.
type Settler struct {
	cfg     SettlerConfig
	prices  PriceSource
	ledger  domain.Ledger
	journal domain.JournalStore // optional
	bc      Broadcaster
	alerter Alerter // optional

	mu       sync.Mutex
	channels map[string]*channelState

	logger *slog.Logger
	now    func() time.Time
}

// NewSettler creates a Settler for the configured channels. journal and
// alerter may be nil.
func NewSettler(
	cfg SettlerConfig,
	prices PriceSource,
	ledger domain.Ledger,
	journal domain.JournalStore,
	bc Broadcaster,
	alerter Alerter,
	logger *slog.Logger,
) *Settler {
	if cfg.RoundInterval <= 0 {
		cfg.RoundInterval = 5 * time.Second
	}
	if bc == nil {
		bc = NopBroadcaster{}
	}
	channels := make(map[string]*channelState, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		channels[ch] = &channelState{roster: NewRoster()}
	}
	return &Settler{
		cfg:      cfg,
		prices:   prices,
		ledger:   ledger,
		journal:  journal,
		bc:       bc,
		alerter:  alerter,
		channels: channels,
		logger:   logger.With(slog.String("component", "settler")),
		now:      time.Now,
	}
}

// Channels returns the configured channel keys.
func (s *Settler) Channels() []string {
	return append([]string(nil), s.cfg.Channels...)
}

// Settle runs one settlement cycle for the channel. It is the scheduler's tick
// body; the scheduler guarantees at most one concurrent call per channel.
func (s *Settler) Settle(ctx context.Context, channel string) error {
	s.mu.Lock()
	state, ok := s.channels[channel]
	finished := ok && state.finished
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("game: %s: %w", channel, domain.ErrUnknownChannel)
	}
	if finished {
		return fmt.Errorf("game: %s: %w", channel, domain.ErrChannelFinished)
	}

	obs, stale, err := s.prices.Latest(channel)
	if err != nil {
		if errors.Is(err, domain.ErrNoPriceData) {
			s.logger.WarnContext(ctx, "no price data, skipping tick",
				slog.String("channel", channel),
			)
			return nil
		}
		return fmt.Errorf("game: %s: latest price: %w", channel, err)
	}
	if stale {
		if !s.cfg.AllowStale {
			s.logger.WarnContext(ctx, "price stale, skipping tick",
				slog.String("channel", channel),
				slog.Time("observed_at", obs.ObservedAt),
			)
			return nil
		}
		s.logger.WarnContext(ctx, "settling on stale price",
			slog.String("channel", channel),
			slog.Time("observed_at", obs.ObservedAt),
		)
	}

	now := s.now()

	// First tick: establish the baseline and open round one. There is no
	// outcome to settle yet.
	if state.prev == nil {
		s.mu.Lock()
		state.prev = &obs
		state.round = 1
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "first round, seeding base price",
			slog.String("channel", channel),
			slog.Float64("price", obs.Value),
		)
		s.broadcastRoundStart(ctx, channel, state, obs, stale, now)
		return nil
	}

	outcome := domain.NewRoundOutcome(channel, state.round, *state.prev, obs, stale, now)
	s.logger.InfoContext(ctx, "round settled",
		slog.String("channel", channel),
		slog.Uint64("round", outcome.Round),
		slog.Float64("previous", outcome.PreviousPrice),
		slog.Float64("current", outcome.CurrentPrice),
		slog.Bool("went_up", outcome.WentUp),
	)

	s.recordOutcome(ctx, outcome)

	for _, p := range state.roster.EliminateLosers(outcome.WentUp) {
		active, total := state.roster.Counts()
		s.bc.ParticipantUpdate(ctx, domain.ParticipantUpdateEvent{
			Channel:     channel,
			Address:     p.Address,
			Eliminated:  true,
			Reason:      eliminationReason(p.Committed, outcome.WentUp),
			ActiveCount: active,
			TotalCount:  total,
		})
	}

	active, total := state.roster.Counts()
	s.bc.RoundEnd(ctx, domain.RoundEndEvent{
		Channel:       channel,
		Round:         outcome.Round,
		PreviousPrice: outcome.PreviousPrice,
		CurrentPrice:  outcome.CurrentPrice,
		WentUp:        outcome.WentUp,
		Delta:         outcome.Delta,
		DeltaPercent:  outcome.DeltaPercent,
		Stale:         outcome.Stale,
		Survivors:     active,
		SettledAt:     outcome.SettledAt,
	})

	if total > 0 && active <= 1 {
		s.finish(ctx, channel, state, active, now)
		return nil
	}

	s.mu.Lock()
	state.round++
	state.prev = &obs
	s.mu.Unlock()
	s.broadcastRoundStart(ctx, channel, state, obs, stale, now)
	return nil
}

// Snapshot returns the channel's current round number and the price the round
// opened at. ok is false for unknown channels and before the first tick has
// seeded a baseline. The read API merges this into pool status responses.
func (s *Settler) Snapshot(channel string) (round uint64, lastPrice float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.channels[channel]
	if !exists || state.prev == nil {
		return 0, 0, false
	}
	return state.round, state.prev.Value, true
}

// recordOutcome writes the outcome to the ledger and journals the attempt.
// Failures are reported but never propagate: the round advances regardless.
func (s *Settler) recordOutcome(ctx context.Context, outcome domain.RoundOutcome) {
	entry := domain.JournalEntry{
		ID:            uuid.NewString(),
		Channel:       outcome.Channel,
		Round:         outcome.Round,
		WentUp:        outcome.WentUp,
		PreviousPrice: outcome.PreviousPrice,
		CurrentPrice:  outcome.CurrentPrice,
		CreatedAt:     outcome.SettledAt,
	}

	receipt, err := s.ledger.RecordOutcome(ctx, outcome.Channel, outcome.WentUp)
	if err != nil {
		entry.LedgerError = err.Error()
		s.logger.ErrorContext(ctx, "ledger write failed, round advances locally",
			slog.String("channel", outcome.Channel),
			slog.Uint64("round", outcome.Round),
			slog.String("error", err.Error()),
		)
		s.alert(ctx, EventLedgerFailed,
			fmt.Sprintf("Ledger write failed: %s round %d", outcome.Channel, outcome.Round),
			err.Error(),
		)
	} else {
		entry.TxHash = receipt.TxHash
	}

	if s.journal != nil {
		if jerr := s.journal.Record(ctx, entry); jerr != nil {
			s.logger.WarnContext(ctx, "journal write failed",
				slog.String("channel", outcome.Channel),
				slog.String("error", jerr.Error()),
			)
		}
	}
}

// finish closes the channel's game run: one survivor wins, zero survivors is
// a draw and the run is void.
func (s *Settler) finish(ctx context.Context, channel string, state *channelState, active int, now time.Time) {
	s.mu.Lock()
	state.finished = true
	s.mu.Unlock()

	event := domain.GameEndEvent{
		Channel: channel,
		Round:   state.round,
		EndedAt: now,
	}
	if active == 1 {
		event.WinnerAddress = state.roster.Active()[0].Address
		s.logger.InfoContext(ctx, "game ended with winner",
			slog.String("channel", channel),
			slog.Uint64("round", state.round),
			slog.String("winner", event.WinnerAddress),
		)
		s.alert(ctx, EventGameEnded,
			fmt.Sprintf("Game ended: %s", channel),
			fmt.Sprintf("Winner %s after round %d", event.WinnerAddress, state.round),
		)
	} else {
		event.Draw = true
		s.logger.InfoContext(ctx, "game ended in draw, run void",
			slog.String("channel", channel),
			slog.Uint64("round", state.round),
		)
		s.alert(ctx, EventGameEnded,
			fmt.Sprintf("Game void: %s", channel),
			fmt.Sprintf("All remaining players eliminated in round %d", state.round),
		)
	}
	s.bc.GameEnd(ctx, event)
}

func (s *Settler) broadcastRoundStart(ctx context.Context, channel string, state *channelState, obs domain.PriceObservation, stale bool, now time.Time) {
	s.bc.RoundStart(ctx, domain.RoundStartEvent{
		Channel:   channel,
		Round:     state.round,
		BasePrice: obs.Value,
		Stale:     stale,
		Question:  fmt.Sprintf("Will %s go up in the next %s?", channel, s.cfg.RoundInterval),
		StartTime: now,
		Deadline:  now.Add(s.cfg.RoundInterval),
	})
}

func (s *Settler) alert(ctx context.Context, event, title, message string) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func eliminationReason(committed domain.Direction, wentUp bool) string {
	if committed == domain.DirectionNone {
		return "no commitment"
	}
	return fmt.Sprintf("committed %s, price went %s", committed, directionWord(wentUp))
}

func directionWord(wentUp bool) string {
	if wentUp {
		return "up"
	}
	return "down"
}

// PlayerJoined adds a participant to the channel's roster and broadcasts the
// roster change. It implements the ledger event sink.
func (s *Settler) PlayerJoined(ctx context.Context, channel, address string) {
	s.mu.Lock()
	state, ok := s.channels[channel]
	open := ok && !state.finished
	s.mu.Unlock()
	if !open {
		return
	}

	if !state.roster.Join(address, s.now()) {
		return
	}
	active, total := state.roster.Counts()
	s.bc.ParticipantUpdate(ctx, domain.ParticipantUpdateEvent{
		Channel:     channel,
		Address:     address,
		ActiveCount: active,
		TotalCount:  total,
	})
}

// PlayerCommitted records a participant's prediction for the current round.
// Late or duplicate commits are dropped with a log line.
func (s *Settler) PlayerCommitted(ctx context.Context, channel, address string, predictUp bool) {
	s.mu.Lock()
	state, ok := s.channels[channel]
	open := ok && !state.finished
	s.mu.Unlock()
	if !open {
		return
	}

	dir := domain.DirectionDown
	if predictUp {
		dir = domain.DirectionUp
	}
	if err := state.roster.Commit(address, dir); err != nil {
		s.logger.DebugContext(ctx, "commit rejected",
			slog.String("channel", channel),
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
	}
}
