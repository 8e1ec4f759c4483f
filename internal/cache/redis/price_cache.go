package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each channel's
// latest price is stored as a hash at key "price:{channel}" with fields
// "price" and "ts" (Unix nanosecond timestamp). It is a read mirror of the
// in-memory price source, serving the HTTP API and reconnecting clients.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(channel string) string {
	return "price:" + channel
}

// SetPrice stores the latest price and observation timestamp for a channel.
func (pc *PriceCache) SetPrice(ctx context.Context, channel string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(channel), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", channel, err)
	}
	return nil
}

// GetPrice retrieves the latest price and timestamp for a channel. It returns
// domain.ErrNotFound when no price was ever mirrored for the channel.
func (pc *PriceCache) GetPrice(ctx context.Context, channel string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(channel)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", channel, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", channel, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", channel, err)
	}
	return price, time.Unix(0, tsNano), nil
}

// GetPrices retrieves the latest prices for multiple channels using a
// pipeline. Channels with no mirrored price are omitted from the result.
func (pc *PriceCache) GetPrices(ctx context.Context, channels []string) (map[string]float64, error) {
	if len(channels) == 0 {
		return map[string]float64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(channels))
	for _, ch := range channels {
		cmds[ch] = pipe.HGetAll(ctx, priceKey(ch))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]float64, len(channels))
	for ch, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		price, err := strconv.ParseFloat(vals["price"], 64)
		if err != nil {
			continue
		}
		result[ch] = price
	}
	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
