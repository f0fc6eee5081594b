package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/metrics"
	"github.com/predyx-labs/predyxd/internal/pricing"
)

// ActiveLister returns the markets whose pools should be refreshed.
type ActiveLister interface {
	ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
}

// PoolReader reads live pool state from the chain.
type PoolReader interface {
	PoolSnapshot(ctx context.Context, market domain.Market) (domain.PoolSnapshot, error)
}

// PoolRefresher walks the active markets on a short interval, reads their live
// pools from the chain, and pushes fresh snapshots and spot prices into the
// caches. Price changes fan out on the "prices" channel for websocket clients.
type PoolRefresher struct {
	markets ActiveLister
	reader  PoolReader
	pools   domain.PoolCache
	prices  domain.PriceCache
	bus     domain.SignalBus
	logger  *slog.Logger
}

// NewPoolRefresher creates a new PoolRefresher.
func NewPoolRefresher(
	markets ActiveLister,
	reader PoolReader,
	pools domain.PoolCache,
	prices domain.PriceCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *PoolRefresher {
	return &PoolRefresher{
		markets: markets,
		reader:  reader,
		pools:   pools,
		prices:  prices,
		bus:     bus,
		logger:  logger,
	}
}

// Run executes a single refresh pass over every active market. Per-market
// failures are logged and skipped so one dead contract cannot stall the rest.
func (r *PoolRefresher) Run(ctx context.Context) error {
	markets, err := r.markets.ListActive(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("listing active markets: %w", err)
	}

	refreshed := 0
	for _, m := range markets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.refreshOne(ctx, m); err != nil {
			r.logger.Warn("pool refresh failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		refreshed++
	}

	r.logger.Debug("pool refresh pass complete",
		slog.Int("refreshed", refreshed),
		slog.Int("total", len(markets)),
	)
	return nil
}

// refreshOne reads one market's pools, caches the snapshot, and publishes the
// spot price when it moved.
func (r *PoolRefresher) refreshOne(ctx context.Context, m domain.Market) error {
	snap, err := r.reader.PoolSnapshot(ctx, m)
	if err != nil {
		return err
	}
	metrics.SnapshotRefreshes.WithLabelValues("scheduled").Inc()

	if err := r.pools.SetSnapshot(ctx, snap); err != nil {
		return err
	}

	price, err := pricing.SpotPrice(m.MarketType, snap)
	if err != nil {
		return err
	}

	prev, _, prevErr := r.prices.GetPrice(ctx, m.ID)
	if err := r.prices.SetPrice(ctx, m.ID, price, snap.FetchedAt); err != nil {
		return err
	}

	if prevErr == nil && prev.Equal(price) {
		return nil
	}

	evt, _ := json.Marshal(map[string]any{
		"event":     "price",
		"market_id": m.ID,
		"price":     price.String(),
		"block":     snap.BlockNumber,
		"timestamp": snap.FetchedAt.Format(time.RFC3339Nano),
	})
	return r.bus.Publish(ctx, "prices", evt)
}

// RunLoop runs refresh passes on a ticker until the context is cancelled.
func (r *PoolRefresher) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := r.Run(ctx); err != nil {
		r.logger.Error("pool refresh pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pool refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				r.logger.Error("pool refresh pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
