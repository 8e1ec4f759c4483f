// Package pricefeed ingests push-delivered prices and buffers the latest
// observation per channel for the settlement core.
package pricefeed

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// Source buffers the most recent observation per channel. It is written only
// by the feed-ingestion path and read everywhere else. Reads never block on
// I/O; staleness is derived from the observation age at lookup time.
type Source struct {
	mu        sync.RWMutex
	latest    map[string]domain.PriceObservation
	freshness time.Duration

	// cache is an optional write-through mirror for the read API. Mirror
	// failures are logged, never surfaced: the in-memory copy is authoritative.
	cache  domain.PriceCache
	logger *slog.Logger
	now    func() time.Time
}

// NewSource creates a Source with the given freshness threshold. cache may be
// nil to disable the write-through mirror.
func NewSource(freshness time.Duration, cache domain.PriceCache, logger *slog.Logger) *Source {
	return &Source{
		latest:    make(map[string]domain.PriceObservation),
		freshness: freshness,
		cache:     cache,
		logger:    logger.With(slog.String("component", "price_source")),
		now:       time.Now,
	}
}

// Record stores a new observation, superseding the previous one. Non-finite or
// non-positive values are discarded and logged; they never reach the settler.
func (s *Source) Record(ctx context.Context, obs domain.PriceObservation) {
	if math.IsNaN(obs.Value) || math.IsInf(obs.Value, 0) || obs.Value <= 0 {
		s.logger.WarnContext(ctx, "discarding invalid price observation",
			slog.String("channel", obs.Channel),
			slog.Float64("value", obs.Value),
		)
		return
	}

	s.mu.Lock()
	s.latest[obs.Channel] = obs
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SetPrice(ctx, obs.Channel, obs.Value, obs.ObservedAt); err != nil {
			s.logger.WarnContext(ctx, "price cache write-through failed",
				slog.String("channel", obs.Channel),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Latest returns the most recent observation for a channel. stale is true when
// the observation is older than the freshness threshold; the observation is
// still returned and the caller decides policy. It returns ErrNoPriceData when
// no observation was ever recorded for the channel.
func (s *Source) Latest(channel string) (obs domain.PriceObservation, stale bool, err error) {
	s.mu.RLock()
	obs, ok := s.latest[channel]
	s.mu.RUnlock()

	if !ok {
		return domain.PriceObservation{}, false, domain.ErrNoPriceData
	}
	return obs, s.now().Sub(obs.ObservedAt) > s.freshness, nil
}
