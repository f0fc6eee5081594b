package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
)

// poolTTL bounds staleness of cached snapshots. Quote pricing checks the
// FetchedAt stamp against its own max-age, so the TTL is only a backstop.
const poolTTL = 10 * time.Minute

// PoolCache implements domain.PoolCache using Redis hashes. Each market's
// latest snapshot lives at key "pool:{marketID}" with fields "type", "yes",
// "no", "block", and "ts" (Unix nanoseconds).
type PoolCache struct {
	rdb *redis.Client
}

// NewPoolCache creates a PoolCache backed by the given Client.
func NewPoolCache(c *Client) *PoolCache {
	return &PoolCache{rdb: c.Underlying()}
}

func poolKey(marketID string) string { return "pool:" + marketID }

// SetSnapshot stores the latest pool snapshot for a market.
func (pc *PoolCache) SetSnapshot(ctx context.Context, snap domain.PoolSnapshot) error {
	key := poolKey(snap.MarketID)
	fields := map[string]interface{}{
		"type":  string(snap.MarketType),
		"yes":   snap.Yes.String(),
		"no":    snap.No.String(),
		"block": strconv.FormatUint(snap.BlockNumber, 10),
		"ts":    strconv.FormatInt(snap.FetchedAt.UnixNano(), 10),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, poolTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set pool snapshot %s: %w", snap.MarketID, err)
	}
	return nil
}

// GetSnapshot retrieves the latest pool snapshot for a market.
// It returns domain.ErrNotFound when the key does not exist.
func (pc *PoolCache) GetSnapshot(ctx context.Context, marketID string) (domain.PoolSnapshot, error) {
	vals, err := pc.rdb.HGetAll(ctx, poolKey(marketID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PoolSnapshot{}, domain.ErrNotFound
		}
		return domain.PoolSnapshot{}, fmt.Errorf("redis: get pool snapshot %s: %w", marketID, err)
	}
	if len(vals) == 0 {
		return domain.PoolSnapshot{}, domain.ErrNotFound
	}

	yes, err := decimal.NewFromString(vals["yes"])
	if err != nil {
		return domain.PoolSnapshot{}, fmt.Errorf("redis: parse pool yes %s: %w", marketID, err)
	}
	no, err := decimal.NewFromString(vals["no"])
	if err != nil {
		return domain.PoolSnapshot{}, fmt.Errorf("redis: parse pool no %s: %w", marketID, err)
	}
	block, err := strconv.ParseUint(vals["block"], 10, 64)
	if err != nil {
		return domain.PoolSnapshot{}, fmt.Errorf("redis: parse pool block %s: %w", marketID, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.PoolSnapshot{}, fmt.Errorf("redis: parse pool ts %s: %w", marketID, err)
	}

	return domain.PoolSnapshot{
		MarketID:    marketID,
		MarketType:  domain.MarketType(vals["type"]),
		Yes:         yes,
		No:          no,
		BlockNumber: block,
		FetchedAt:   time.Unix(0, tsNano).UTC(),
	}, nil
}

// Compile-time interface check.
var _ domain.PoolCache = (*PoolCache)(nil)
