package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest prices outside the settlement
// process (read API, reconnecting clients). The in-memory price source is
// authoritative for settlement; the cache is a write-through mirror.
type PriceCache interface {
	SetPrice(ctx context.Context, channel string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, channel string) (float64, time.Time, error)
	GetPrices(ctx context.Context, channels []string) (map[string]float64, error)
}

// SignalBus is the pub/sub transport between the game core and the WebSocket
// hub. Delivery is fire-and-forget; subscribers that are offline miss events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
