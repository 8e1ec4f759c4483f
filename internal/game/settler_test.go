package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

type fakePrices struct {
	mu    sync.Mutex
	obs   map[string]domain.PriceObservation
	stale bool
	err   error
}

func (f *fakePrices) set(channel string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.obs == nil {
		f.obs = make(map[string]domain.PriceObservation)
	}
	f.obs[channel] = domain.PriceObservation{Channel: channel, Value: value, ObservedAt: time.Now()}
}

func (f *fakePrices) Latest(channel string) (domain.PriceObservation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.PriceObservation{}, false, f.err
	}
	obs, ok := f.obs[channel]
	if !ok {
		return domain.PriceObservation{}, false, domain.ErrNoPriceData
	}
	return obs, f.stale, nil
}

type fakeLedger struct {
	mu    sync.Mutex
	fail  bool
	calls []bool // wentUp per call
}

func (f *fakeLedger) RecordOutcome(_ context.Context, _ string, wentUp bool) (domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, wentUp)
	if f.fail {
		return domain.Receipt{}, domain.ErrLedgerCall
	}
	return domain.Receipt{TxHash: "0xabc", ConfirmedAt: time.Now()}, nil
}

func (f *fakeLedger) PoolInfo(context.Context, string) (domain.PoolInfo, bool) {
	return domain.PoolInfo{}, false
}

// recorder captures broadcasts in emission order.
type recorder struct {
	mu     sync.Mutex
	order  []string
	starts []domain.RoundStartEvent
	ends   []domain.RoundEndEvent
	parts  []domain.ParticipantUpdateEvent
	games  []domain.GameEndEvent
}

func (r *recorder) RoundStart(_ context.Context, e domain.RoundStartEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, domain.ChanRoundStart)
	r.starts = append(r.starts, e)
}

func (r *recorder) RoundEnd(_ context.Context, e domain.RoundEndEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, domain.ChanRoundEnd)
	r.ends = append(r.ends, e)
}

func (r *recorder) PriceTick(_ context.Context, e domain.PriceTickEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, domain.ChanPriceTick)
}

func (r *recorder) ParticipantUpdate(_ context.Context, e domain.ParticipantUpdateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, domain.ChanParticipantUpdate)
	r.parts = append(r.parts, e)
}

func (r *recorder) GameEnd(_ context.Context, e domain.GameEndEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, domain.ChanGameEnd)
	r.games = append(r.games, e)
}

type flakyJournal struct {
	mu      sync.Mutex
	fail    bool
	entries []domain.JournalEntry
}

func (f *flakyJournal) Record(_ context.Context, entry domain.JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("journal unavailable")
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *flakyJournal) ListRecent(context.Context, string, int) ([]domain.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.JournalEntry(nil), f.entries...), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestSettler(t *testing.T, prices *fakePrices, ledger *fakeLedger, bc Broadcaster) *Settler {
	t.Helper()
	s := NewSettler(
		SettlerConfig{Channels: []string{"ETH"}, RoundInterval: 5 * time.Second, AllowStale: true},
		prices, ledger, nil, bc, nil, testLogger(),
	)
	return s
}

func TestSettleFirstTickSeedsBaseline(t *testing.T) {
	prices := &fakePrices{}
	ledger := &fakeLedger{}
	rec := &recorder{}
	s := newTestSettler(t, prices, ledger, rec)

	prices.set("ETH", 2000)
	if err := s.Settle(context.Background(), "ETH"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if len(ledger.calls) != 0 {
		t.Fatalf("seeding tick must not call ledger, got %d calls", len(ledger.calls))
	}
	if len(rec.ends) != 0 {
		t.Fatalf("seeding tick must not broadcast round_end")
	}
	if len(rec.starts) != 1 {
		t.Fatalf("want 1 round_start, got %d", len(rec.starts))
	}
	start := rec.starts[0]
	if start.Round != 1 || start.BasePrice != 2000 {
		t.Fatalf("round_start = round %d base %v, want round 1 base 2000", start.Round, start.BasePrice)
	}
	if !start.Deadline.Equal(start.StartTime.Add(5 * time.Second)) {
		t.Fatalf("deadline %v not 5s after start %v", start.Deadline, start.StartTime)
	}
}

func TestSettleDirection(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr float64
		wantUp     bool
	}{
		{"up", 2000, 2020, true},
		{"down", 2000, 1990, false},
		{"tie counts as down", 100, 100, false},
		{"tiny increase is up", 100, 100.01, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices := &fakePrices{}
			ledger := &fakeLedger{}
			rec := &recorder{}
			s := newTestSettler(t, prices, ledger, rec)

			prices.set("ETH", tt.prev)
			if err := s.Settle(context.Background(), "ETH"); err != nil {
				t.Fatalf("seed: %v", err)
			}
			prices.set("ETH", tt.curr)
			if err := s.Settle(context.Background(), "ETH"); err != nil {
				t.Fatalf("settle: %v", err)
			}

			if len(ledger.calls) != 1 {
				t.Fatalf("want 1 ledger call, got %d", len(ledger.calls))
			}
			if ledger.calls[0] != tt.wantUp {
				t.Errorf("ledger wentUp = %v, want %v", ledger.calls[0], tt.wantUp)
			}
			if len(rec.ends) != 1 {
				t.Fatalf("want 1 round_end, got %d", len(rec.ends))
			}
			if rec.ends[0].WentUp != tt.wantUp {
				t.Errorf("round_end WentUp = %v, want %v", rec.ends[0].WentUp, tt.wantUp)
			}
		})
	}
}

func TestSettleEliminatesWrongAndUncommitted(t *testing.T) {
	prices := &fakePrices{}
	ledger := &fakeLedger{}
	rec := &recorder{}
	s := newTestSettler(t, prices, ledger, rec)

	ctx := context.Background()
	s.PlayerJoined(ctx, "ETH", "0xaaa")
	s.PlayerJoined(ctx, "ETH", "0xbbb")
	s.PlayerJoined(ctx, "ETH", "0xccc")
	s.PlayerJoined(ctx, "ETH", "0xddd")

	prices.set("ETH", 2000)
	if err := s.Settle(ctx, "ETH"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s.PlayerCommitted(ctx, "ETH", "0xaaa", true)  // correct
	s.PlayerCommitted(ctx, "ETH", "0xbbb", true)  // correct
	s.PlayerCommitted(ctx, "ETH", "0xccc", false) // wrong
	// 0xddd never commits.

	prices.set("ETH", 2020)
	if err := s.Settle(ctx, "ETH"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	eliminated := map[string]bool{}
	for _, p := range rec.parts {
		if p.Eliminated {
			eliminated[p.Address] = true
		}
	}
	if !eliminated["0xccc"] || !eliminated["0xddd"] {
		t.Fatalf("wrong/uncommitted not eliminated: %v", eliminated)
	}
	if eliminated["0xaaa"] || eliminated["0xbbb"] {
		t.Fatalf("correct players eliminated: %v", eliminated)
	}
	if rec.ends[0].Survivors != 2 {
		t.Fatalf("survivors = %d, want 2", rec.ends[0].Survivors)
	}
}

func TestSettleEliminationIsOneWay(t *testing.T) {
	prices := &fakePrices{}
	rec := &recorder{}
	s := newTestSettler(t, prices, &fakeLedger{}, rec)

	ctx := context.Background()
	s.PlayerJoined(ctx, "ETH", "0xaaa")
	s.PlayerJoined(ctx, "ETH", "0xbbb")
	s.PlayerJoined(ctx, "ETH", "0xccc")

	prices.set("ETH", 100)
	_ = s.Settle(ctx, "ETH")

	// Round 1: 0xccc is wrong, the other two survive.
	s.PlayerCommitted(ctx, "ETH", "0xaaa", true)
	s.PlayerCommitted(ctx, "ETH", "0xbbb", true)
	s.PlayerCommitted(ctx, "ETH", "0xccc", false)
	prices.set("ETH", 110)
	_ = s.Settle(ctx, "ETH")

	// A commit from the eliminated player must be rejected silently.
	s.PlayerCommitted(ctx, "ETH", "0xccc", true)
	s.PlayerCommitted(ctx, "ETH", "0xaaa", true)
	s.PlayerCommitted(ctx, "ETH", "0xbbb", false)
	prices.set("ETH", 120)
	_ = s.Settle(ctx, "ETH")

	// 0xbbb was wrong in round 2, so 0xaaa is the sole survivor and wins.
	if len(rec.games) != 1 {
		t.Fatalf("want 1 game_end, got %d", len(rec.games))
	}
	end := rec.games[0]
	if end.Draw || end.WinnerAddress != "0xaaa" {
		t.Fatalf("game_end = %+v, want winner 0xaaa", end)
	}
}

func TestSettleDrawWhenAllEliminated(t *testing.T) {
	prices := &fakePrices{}
	rec := &recorder{}
	s := newTestSettler(t, prices, &fakeLedger{}, rec)

	ctx := context.Background()
	s.PlayerJoined(ctx, "ETH", "0xaaa")
	s.PlayerJoined(ctx, "ETH", "0xbbb")

	prices.set("ETH", 100)
	_ = s.Settle(ctx, "ETH")

	s.PlayerCommitted(ctx, "ETH", "0xaaa", false)
	s.PlayerCommitted(ctx, "ETH", "0xbbb", false)
	prices.set("ETH", 101)
	_ = s.Settle(ctx, "ETH")

	if len(rec.games) != 1 {
		t.Fatalf("want 1 game_end, got %d", len(rec.games))
	}
	if !rec.games[0].Draw || rec.games[0].WinnerAddress != "" {
		t.Fatalf("game_end = %+v, want draw without winner", rec.games[0])
	}

	// The run is over; further ticks must refuse.
	prices.set("ETH", 102)
	if err := s.Settle(ctx, "ETH"); !errors.Is(err, domain.ErrChannelFinished) {
		t.Fatalf("settle after game end = %v, want ErrChannelFinished", err)
	}
}

func TestSettleRoundEndPrecedesNextRoundStart(t *testing.T) {
	prices := &fakePrices{}
	rec := &recorder{}
	s := newTestSettler(t, prices, &fakeLedger{}, rec)

	ctx := context.Background()
	prices.set("ETH", 2000)
	_ = s.Settle(ctx, "ETH")
	prices.set("ETH", 2020)
	_ = s.Settle(ctx, "ETH")

	// Emission order after the seed tick: round_end for round 1, then
	// round_start for round 2.
	want := []string{domain.ChanRoundStart, domain.ChanRoundEnd, domain.ChanRoundStart}
	if len(rec.order) != len(want) {
		t.Fatalf("order = %v, want %v", rec.order, want)
	}
	for i := range want {
		if rec.order[i] != want[i] {
			t.Fatalf("order[%d] = %s, want %s (full: %v)", i, rec.order[i], want[i], rec.order)
		}
	}
	if rec.starts[1].Round != 2 {
		t.Fatalf("second round_start round = %d, want 2", rec.starts[1].Round)
	}
	if rec.starts[1].BasePrice != 2020 {
		t.Fatalf("second round base = %v, want 2020", rec.starts[1].BasePrice)
	}
}

func TestSettleLedgerFailureStillAdvancesRound(t *testing.T) {
	prices := &fakePrices{}
	ledger := &fakeLedger{fail: true}
	rec := &recorder{}
	s := newTestSettler(t, prices, ledger, rec)

	ctx := context.Background()
	prices.set("ETH", 2000)
	_ = s.Settle(ctx, "ETH")
	prices.set("ETH", 2020)
	if err := s.Settle(ctx, "ETH"); err != nil {
		t.Fatalf("settle with failing ledger = %v, want nil", err)
	}

	if len(rec.ends) != 1 {
		t.Fatalf("round_end not broadcast despite ledger failure")
	}
	if len(rec.starts) != 2 || rec.starts[1].Round != 2 {
		t.Fatalf("round did not advance past failed ledger write: %+v", rec.starts)
	}

	// Next round settles against the new baseline, not the old one.
	prices.set("ETH", 2010)
	_ = s.Settle(ctx, "ETH")
	if rec.ends[1].PreviousPrice != 2020 || rec.ends[1].WentUp {
		t.Fatalf("round 2 end = %+v, want previous 2020 and went_up=false", rec.ends[1])
	}
}

func TestSettleJournalFailureIsContained(t *testing.T) {
	prices := &fakePrices{}
	ledger := &fakeLedger{}
	rec := &recorder{}
	journal := &flakyJournal{fail: true}
	s := NewSettler(
		SettlerConfig{Channels: []string{"ETH"}, RoundInterval: 5 * time.Second, AllowStale: true},
		prices, ledger, journal, rec, nil, testLogger(),
	)

	ctx := context.Background()
	prices.set("ETH", 2000)
	_ = s.Settle(ctx, "ETH")
	prices.set("ETH", 2020)
	if err := s.Settle(ctx, "ETH"); err != nil {
		t.Fatalf("settle with failing journal = %v, want nil", err)
	}

	// The outcome still reaches the ledger and the round still advances.
	if len(ledger.calls) != 1 {
		t.Fatalf("ledger calls = %d, want 1", len(ledger.calls))
	}
	if len(rec.ends) != 1 || len(rec.starts) != 2 || rec.starts[1].Round != 2 {
		t.Fatalf("round did not advance past failed journal write: starts=%d ends=%d", len(rec.starts), len(rec.ends))
	}

	// With the journal healthy again the next settlement is recorded.
	journal.fail = false
	prices.set("ETH", 2010)
	_ = s.Settle(ctx, "ETH")
	if len(journal.entries) != 1 || journal.entries[0].TxHash != "0xabc" {
		t.Fatalf("journal entries = %+v, want one entry with tx hash", journal.entries)
	}
}

func TestSnapshot(t *testing.T) {
	prices := &fakePrices{}
	s := newTestSettler(t, prices, &fakeLedger{}, &recorder{})

	if _, _, ok := s.Snapshot("ETH"); ok {
		t.Fatal("snapshot before the first tick should report ok=false")
	}
	if _, _, ok := s.Snapshot("DOGE"); ok {
		t.Fatal("snapshot for an unknown channel should report ok=false")
	}

	ctx := context.Background()
	prices.set("ETH", 2000)
	_ = s.Settle(ctx, "ETH")
	round, price, ok := s.Snapshot("ETH")
	if !ok || round != 1 || price != 2000 {
		t.Fatalf("snapshot = (%d, %v, %v), want (1, 2000, true)", round, price, ok)
	}

	prices.set("ETH", 2020)
	_ = s.Settle(ctx, "ETH")
	round, price, ok = s.Snapshot("ETH")
	if !ok || round != 2 || price != 2020 {
		t.Fatalf("snapshot = (%d, %v, %v), want (2, 2020, true)", round, price, ok)
	}
}

func TestSettleSkipsWithoutPriceData(t *testing.T) {
	prices := &fakePrices{}
	rec := &recorder{}
	s := newTestSettler(t, prices, &fakeLedger{}, rec)

	if err := s.Settle(context.Background(), "ETH"); err != nil {
		t.Fatalf("settle without data = %v, want nil", err)
	}
	if len(rec.order) != 0 {
		t.Fatalf("broadcasts on skipped tick: %v", rec.order)
	}
}

func TestSettleStalePolicy(t *testing.T) {
	prices := &fakePrices{}
	rec := &recorder{}
	s := NewSettler(
		SettlerConfig{Channels: []string{"ETH"}, RoundInterval: 5 * time.Second, AllowStale: false},
		prices, &fakeLedger{}, nil, rec, nil, testLogger(),
	)

	prices.set("ETH", 2000)
	prices.stale = true
	if err := s.Settle(context.Background(), "ETH"); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(rec.order) != 0 {
		t.Fatalf("stale tick must be skipped when stale settling is disabled, got %v", rec.order)
	}

	prices.stale = false
	_ = s.Settle(context.Background(), "ETH")
	if len(rec.starts) != 1 {
		t.Fatalf("fresh tick after stale skip should seed, got %v", rec.order)
	}
}

func TestSettleUnknownChannel(t *testing.T) {
	s := newTestSettler(t, &fakePrices{}, &fakeLedger{}, &recorder{})
	if err := s.Settle(context.Background(), "DOGE"); !errors.Is(err, domain.ErrUnknownChannel) {
		t.Fatalf("settle unknown channel = %v, want ErrUnknownChannel", err)
	}
}

func TestSettleWithoutParticipantsKeepsRunning(t *testing.T) {
	prices := &fakePrices{}
	rec := &recorder{}
	s := newTestSettler(t, prices, &fakeLedger{}, rec)

	ctx := context.Background()
	for i, price := range []float64{100, 105, 103, 108} {
		prices.set("ETH", price)
		if err := s.Settle(ctx, "ETH"); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	// An empty roster never triggers a game end; rounds keep rolling.
	if len(rec.games) != 0 {
		t.Fatalf("game_end broadcast with no participants: %+v", rec.games)
	}
	if got := rec.starts[len(rec.starts)-1].Round; got != 4 {
		t.Fatalf("round after 4 ticks = %d, want 4", got)
	}
}
