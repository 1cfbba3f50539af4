package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/carepoint/booking-service/internal/booking"
)

// BlockedDateCache is a read-through cache over admin blocked-date lookups.
// Admin entries change rarely, so a short TTL is safe here; slot occupancy
// changes on every booking and must never be cached this way.
//
// The admin system calls Invalidate after mutating an entry, so a change is
// visible immediately instead of after the TTL.
type BlockedDateCache struct {
	client *redis.Client
	inner  booking.BlockageSource
	ttl    time.Duration
	log    *zap.Logger
}

func NewBlockedDateCache(client *redis.Client, inner booking.BlockageSource, ttl time.Duration, log *zap.Logger) *BlockedDateCache {
	return &BlockedDateCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		log:    log,
	}
}

// cachedBlockage is the wire form; the None variant is cached too, since
// most dates have no blockage at all.
type cachedBlockage struct {
	Kind   int      `json:"kind"`
	Reason string   `json:"reason,omitempty"`
	Slots  []string `json:"slots,omitempty"`
}

func blockedKey(date booking.CalendarDate) string {
	return fmt.Sprintf("blocked:date:%s", date)
}

func (c *BlockedDateCache) GetBlockage(ctx context.Context, date booking.CalendarDate) (booking.Blockage, error) {
	key := blockedKey(date)

	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var cached cachedBlockage
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return fromCached(cached), nil
		}
		// Corrupt entry: drop it and fall through to the store.
		_ = c.client.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("blocked-date cache read failed", zap.String("key", key), zap.Error(err))
	}

	blockage, err := c.inner.GetBlockage(ctx, date)
	if err != nil {
		return booking.Blockage{}, err
	}

	if data, jsonErr := json.Marshal(toCached(blockage)); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			c.log.Warn("blocked-date cache write failed", zap.String("key", key), zap.Error(setErr))
		}
	}

	return blockage, nil
}

// Invalidate drops the cached blockage for one date.
func (c *BlockedDateCache) Invalidate(ctx context.Context, date booking.CalendarDate) error {
	if err := c.client.Del(ctx, blockedKey(date)).Err(); err != nil {
		return fmt.Errorf("invalidate blocked-date cache: %w", err)
	}
	return nil
}

func toCached(b booking.Blockage) cachedBlockage {
	cached := cachedBlockage{Kind: int(b.Kind), Reason: b.Reason}
	for slot := range b.Slots {
		cached.Slots = append(cached.Slots, string(slot))
	}
	return cached
}

func fromCached(cached cachedBlockage) booking.Blockage {
	switch booking.BlockageKind(cached.Kind) {
	case booking.BlockageFullDay:
		return booking.FullDayBlockage(cached.Reason)
	case booking.BlockagePartial:
		slots := make([]booking.TimeSlot, 0, len(cached.Slots))
		for _, s := range cached.Slots {
			slots = append(slots, booking.TimeSlot(s))
		}
		return booking.PartialBlockage(cached.Reason, slots)
	default:
		return booking.NoBlockage()
	}
}
