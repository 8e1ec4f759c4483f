package pricefeed

import (
	"context"
	"log/slog"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// TickBroadcaster publishes informational price ticks to connected clients.
type TickBroadcaster interface {
	PriceTick(ctx context.Context, event domain.PriceTickEvent)
}

// Ingester drains an observation channel into the Source and mirrors each
// accepted observation as a price tick broadcast.
type Ingester struct {
	source      *Source
	broadcaster TickBroadcaster
	logger      *slog.Logger
}

// NewIngester creates an Ingester. broadcaster may be nil to disable tick
// broadcasts.
func NewIngester(source *Source, broadcaster TickBroadcaster, logger *slog.Logger) *Ingester {
	return &Ingester{
		source:      source,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "price_ingest")),
	}
}

// Run consumes observations until the channel closes or ctx is cancelled.
func (i *Ingester) Run(ctx context.Context, observations <-chan domain.PriceObservation) error {
	i.logger.Info("price ingestion started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case obs, open := <-observations:
			if !open {
				i.logger.Info("observation channel closed, ingestion stopping")
				return nil
			}
			i.source.Record(ctx, obs)
			if i.broadcaster != nil {
				i.broadcaster.PriceTick(ctx, domain.PriceTickEvent{
					Channel:   obs.Channel,
					Price:     obs.Value,
					Timestamp: obs.ObservedAt,
				})
			}
		}
	}
}
