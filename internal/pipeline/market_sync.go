// Package pipeline implements the background sync loops: market metadata from
// the indexer, live pools from the chain, and quote archival to cold storage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/metrics"
)

// MarketSyncer persists batches of markets and deposits to the store.
type MarketSyncer interface {
	SyncMarkets(ctx context.Context, markets []domain.Market) error
	SyncDeposits(ctx context.Context, deposits []domain.Deposit) error
	LastDepositTime(ctx context.Context) (time.Time, error)
}

// IndexerClient retrieves markets and deposit events from the subgraph.
type IndexerClient interface {
	FetchMarkets(ctx context.Context, since time.Time, first int) ([]domain.Market, error)
	FetchDeposits(ctx context.Context, since time.Time, first int) ([]domain.Deposit, error)
	FetchLatestBlock(ctx context.Context) (int64, error)
}

// HeadReader reports the chain head, used to measure indexer lag. May be nil.
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// MarketSync pulls market metadata and deposit events from the indexer into
// the store on a fixed interval.
type MarketSync struct {
	marketSvc MarketSyncer
	indexer   IndexerClient
	head      HeadReader
	batchSize int
	logger    *slog.Logger

	// lastMarketSync is the high-water mark for incremental market fetches.
	lastMarketSync time.Time
}

// NewMarketSync creates a new MarketSync. head may be nil, in which case the
// lag gauge is not updated.
func NewMarketSync(marketSvc MarketSyncer, indexer IndexerClient, head HeadReader, batchSize int, logger *slog.Logger) *MarketSync {
	return &MarketSync{
		marketSvc: marketSvc,
		indexer:   indexer,
		head:      head,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run executes a single sync pass: markets updated since the last pass, then
// deposit events newer than the stored high-water mark.
func (s *MarketSync) Run(ctx context.Context) error {
	since := s.lastMarketSync
	started := time.Now().UTC()

	markets, err := s.indexer.FetchMarkets(ctx, since, s.batchSize)
	if err != nil {
		return fmt.Errorf("fetching markets since %s: %w", since.Format(time.RFC3339), err)
	}
	if len(markets) > 0 {
		if err := s.marketSvc.SyncMarkets(ctx, markets); err != nil {
			return fmt.Errorf("syncing %d markets: %w", len(markets), err)
		}
	}
	s.lastMarketSync = started

	depositSince, err := s.marketSvc.LastDepositTime(ctx)
	if err != nil {
		return fmt.Errorf("resolving deposit high-water mark: %w", err)
	}
	deposits, err := s.indexer.FetchDeposits(ctx, depositSince, s.batchSize)
	if err != nil {
		return fmt.Errorf("fetching deposits since %s: %w", depositSince.Format(time.RFC3339), err)
	}
	if len(deposits) > 0 {
		if err := s.marketSvc.SyncDeposits(ctx, deposits); err != nil {
			return fmt.Errorf("syncing %d deposits: %w", len(deposits), err)
		}
	}

	s.updateLag(ctx)

	s.logger.Info("market sync pass complete",
		slog.Int("markets", len(markets)),
		slog.Int("deposits", len(deposits)),
	)
	return nil
}

// updateLag refreshes the indexer-lag gauge. Failures are logged only; lag is
// observability, not correctness.
func (s *MarketSync) updateLag(ctx context.Context) {
	if s.head == nil {
		return
	}

	indexed, err := s.indexer.FetchLatestBlock(ctx)
	if err != nil {
		s.logger.Warn("indexer head query failed", slog.String("error", err.Error()))
		return
	}
	head, err := s.head.BlockNumber(ctx)
	if err != nil {
		s.logger.Warn("chain head query failed", slog.String("error", err.Error()))
		return
	}

	lag := int64(head) - indexed
	if lag < 0 {
		lag = 0
	}
	metrics.SyncLag.Set(float64(lag))
}

// RunLoop runs sync passes on a ticker until the context is cancelled. The
// first pass runs immediately.
func (s *MarketSync) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := s.Run(ctx); err != nil {
		s.logger.Error("market sync pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("market sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("market sync pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
