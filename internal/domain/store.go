package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market metadata synced from the indexer and chain.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	GetBySlug(ctx context.Context, slug string) (Market, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// QuoteStore persists advisory quote history.
type QuoteStore interface {
	Insert(ctx context.Context, q Quote) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Quote, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]Quote, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// DepositStore persists parimutuel deposit events.
type DepositStore interface {
	InsertBatch(ctx context.Context, deposits []Deposit) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Deposit, error)
	GetLastTimestamp(ctx context.Context) (time.Time, error)
}
