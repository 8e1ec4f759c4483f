package game

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// Broadcaster fans game events out to connected clients. Delivery is
// fire-and-forget: a failed or slow broadcast never delays or fails
// settlement.
type Broadcaster interface {
	RoundStart(ctx context.Context, event domain.RoundStartEvent)
	RoundEnd(ctx context.Context, event domain.RoundEndEvent)
	PriceTick(ctx context.Context, event domain.PriceTickEvent)
	ParticipantUpdate(ctx context.Context, event domain.ParticipantUpdateEvent)
	GameEnd(ctx context.Context, event domain.GameEndEvent)
}

// Envelope is the wire frame every broadcast is wrapped in. Type carries the
// broadcast channel name so clients multiplex on a single connection.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// BusBroadcaster publishes envelopes to the signal bus, from which the
// WebSocket hub mirrors them to clients.
type BusBroadcaster struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

var _ Broadcaster = (*BusBroadcaster)(nil)

// NewBusBroadcaster creates a BusBroadcaster over the given bus.
func NewBusBroadcaster(bus domain.SignalBus, logger *slog.Logger) *BusBroadcaster {
	return &BusBroadcaster{
		bus:    bus,
		logger: logger.With(slog.String("component", "broadcaster")),
	}
}

func (b *BusBroadcaster) publish(ctx context.Context, channel string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.ErrorContext(ctx, "broadcast marshal failed",
			slog.String("type", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	frame, err := json.Marshal(Envelope{Type: channel, Payload: raw})
	if err != nil {
		return
	}
	if err := b.bus.Publish(ctx, channel, frame); err != nil {
		b.logger.WarnContext(ctx, "broadcast publish failed",
			slog.String("type", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (b *BusBroadcaster) RoundStart(ctx context.Context, event domain.RoundStartEvent) {
	b.publish(ctx, domain.ChanRoundStart, event)
}

func (b *BusBroadcaster) RoundEnd(ctx context.Context, event domain.RoundEndEvent) {
	b.publish(ctx, domain.ChanRoundEnd, event)
}

func (b *BusBroadcaster) PriceTick(ctx context.Context, event domain.PriceTickEvent) {
	b.publish(ctx, domain.ChanPriceTick, event)
}

func (b *BusBroadcaster) ParticipantUpdate(ctx context.Context, event domain.ParticipantUpdateEvent) {
	b.publish(ctx, domain.ChanParticipantUpdate, event)
}

func (b *BusBroadcaster) GameEnd(ctx context.Context, event domain.GameEndEvent) {
	b.publish(ctx, domain.ChanGameEnd, event)
}

// NopBroadcaster discards every event. Used when no bus is configured.
type NopBroadcaster struct{}

var _ Broadcaster = NopBroadcaster{}

func (NopBroadcaster) RoundStart(context.Context, domain.RoundStartEvent)               {}
func (NopBroadcaster) RoundEnd(context.Context, domain.RoundEndEvent)                   {}
func (NopBroadcaster) PriceTick(context.Context, domain.PriceTickEvent)                 {}
func (NopBroadcaster) ParticipantUpdate(context.Context, domain.ParticipantUpdateEvent) {}
func (NopBroadcaster) GameEnd(context.Context, domain.GameEndEvent)                     {}
