package domain

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// PoolCache stores the latest pool snapshot per market.
type PoolCache interface {
	SetSnapshot(ctx context.Context, snap PoolSnapshot) error
	GetSnapshot(ctx context.Context, marketID string) (PoolSnapshot, error)
}

// PriceCache stores the latest spot price per market.
type PriceCache interface {
	SetPrice(ctx context.Context, marketID string, price decimal.Decimal, ts time.Time) error
	GetPrice(ctx context.Context, marketID string) (decimal.Decimal, time.Time, error)
}

// MarketCache stores market metadata with a short TTL in front of the store.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// StreamMessage is a single entry read back from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub fan-out and durable streams for market events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter enforces a per-key request budget over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobInfo is object metadata returned by cold-storage listings.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}
