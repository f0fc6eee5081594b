// Package service implements the application services sitting between the
// HTTP/WS surface and the store, cache, and chain layers.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/metrics"
)

// MarketService handles market discovery and metadata sync.
type MarketService struct {
	markets  domain.MarketStore
	deposits domain.DepositStore
	cache    domain.MarketCache
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	deposits domain.DepositStore,
	cache domain.MarketCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:  markets,
		deposits: deposits,
		cache:    cache,
		bus:      bus,
		logger:   logger,
	}
}

// SyncMarkets upserts a batch of markets into the persistent store and
// invalidates cached entries so subsequent reads pick up fresh data.
func (s *MarketService) SyncMarkets(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	if err := s.markets.UpsertBatch(ctx, markets); err != nil {
		return fmt.Errorf("market_service: upsert batch: %w", err)
	}

	for _, m := range markets {
		if err := s.cache.Invalidate(ctx, m.ID); err != nil {
			s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			// Non-fatal: the cache entry expires on its own.
		}
	}

	s.logger.InfoContext(ctx, "market_service: synced markets",
		slog.Int("count", len(markets)),
	)

	return nil
}

// SyncDeposits persists a batch of parimutuel deposit events. Replays are
// deduplicated by the store.
func (s *MarketService) SyncDeposits(ctx context.Context, deposits []domain.Deposit) error {
	if len(deposits) == 0 {
		return nil
	}
	if err := s.deposits.InsertBatch(ctx, deposits); err != nil {
		return fmt.Errorf("market_service: insert deposits: %w", err)
	}
	s.logger.InfoContext(ctx, "market_service: synced deposits",
		slog.Int("count", len(deposits)),
	)
	return nil
}

// LastDepositTime returns the newest stored deposit event time, used by the
// sync pipeline as its resume point. The zero time means no deposits are
// stored yet.
func (s *MarketService) LastDepositTime(ctx context.Context) (time.Time, error) {
	ts, err := s.deposits.GetLastTimestamp(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("market_service: last deposit time: %w", err)
	}
	return ts, nil
}

// GetMarket retrieves a market by ID, checking the cache first and falling
// back to the persistent store on a cache miss.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}

	// Cache miss or error -- fall through to store.
	m, err = s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by id %q: %w", id, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("market_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}

	return m, nil
}

// GetMarketBySlug retrieves a market by its URL slug from the persistent
// store.
func (s *MarketService) GetMarketBySlug(ctx context.Context, slug string) (domain.Market, error) {
	m, err := s.markets.GetBySlug(ctx, slug)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by slug %q: %w", slug, err)
	}
	return m, nil
}

// ListActive returns active markets directly from the persistent store and
// refreshes the active-markets gauge.
func (s *MarketService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list active: %w", err)
	}
	metrics.ActiveMarkets.Set(float64(len(markets)))
	return markets, nil
}

// List returns markets of any status from the persistent store.
func (s *MarketService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list: %w", err)
	}
	return markets, nil
}

// ListDeposits returns the deposit history of a market, oldest first.
func (s *MarketService) ListDeposits(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Deposit, error) {
	deposits, err := s.deposits.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list deposits for %q: %w", marketID, err)
	}
	return deposits, nil
}

// Count returns the total number of markets in the persistent store.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	count, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}
