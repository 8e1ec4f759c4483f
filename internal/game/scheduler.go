package game

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// DefaultCronSpec fires every five seconds.
const DefaultCronSpec = "*/5 * * * * *"

// Scheduler drives settlement ticks on a cron cadence. Channels are processed
// sequentially within a tick; a channel whose previous settlement is still
// running is skipped, never queued, so a slow ledger call cannot pile up
// ticks behind it.
type Scheduler struct {
	cron    *cron.Cron
	settler *Settler
	busy    map[string]*atomic.Bool
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler ticking on the given cron spec (with a
// seconds field). An empty spec uses DefaultCronSpec.
func NewScheduler(spec string, settler *Settler, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultCronSpec
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		settler: settler,
		busy:    make(map[string]*atomic.Bool),
		logger:  logger.With(slog.String("component", "scheduler")),
	}
	for _, channel := range settler.Channels() {
		s.busy[channel] = new(atomic.Bool)
	}

	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the cron loop and blocks until ctx is cancelled. In-flight
// settlements are allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", slog.Int("channels", len(s.busy)))
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	for _, channel := range s.settler.Channels() {
		flag := s.busy[channel]
		if !flag.CompareAndSwap(false, true) {
			s.logger.Warn("previous settlement still running, skipping tick",
				slog.String("channel", channel),
			)
			continue
		}
		s.settleChannel(ctx, channel)
		flag.Store(false)
	}
}

// settleChannel runs one settlement with a per-channel recover boundary so a
// panic in one channel cannot take down the others or the cron loop.
func (s *Scheduler) settleChannel(ctx context.Context, channel string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("settlement panicked",
				slog.String("channel", channel),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	err := s.settler.Settle(ctx, channel)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrChannelFinished):
		// Run is over for this channel; nothing to do until restart.
	default:
		s.logger.Error("settlement failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
