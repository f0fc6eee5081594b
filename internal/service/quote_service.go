package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/metrics"
	"github.com/predyx-labs/predyxd/internal/pricing"
)

// SnapshotReader reads live pool state from the chain. Satisfied by
// chain.Reader; nil when the process runs without an RPC endpoint.
type SnapshotReader interface {
	PoolSnapshot(ctx context.Context, market domain.Market) (domain.PoolSnapshot, error)
}

// QuoteService prices advisory previews against pool snapshots. Quotes are
// display-only: the contract recomputes everything at execution time.
type QuoteService struct {
	markets    *MarketService
	quotes     domain.QuoteStore
	pools      domain.PoolCache
	prices     domain.PriceCache
	reader     SnapshotReader
	bus        domain.SignalBus
	logger     *slog.Logger
	maxSnapAge time.Duration
}

// NewQuoteService creates a QuoteService with all required dependencies.
// reader may be nil, in which case stale cache entries are served with a
// warning instead of being refreshed from the chain.
func NewQuoteService(
	markets *MarketService,
	quotes domain.QuoteStore,
	pools domain.PoolCache,
	prices domain.PriceCache,
	reader SnapshotReader,
	bus domain.SignalBus,
	logger *slog.Logger,
	maxSnapAge time.Duration,
) *QuoteService {
	return &QuoteService{
		markets:    markets,
		quotes:     quotes,
		pools:      pools,
		prices:     prices,
		reader:     reader,
		bus:        bus,
		logger:     logger,
		maxSnapAge: maxSnapAge,
	}
}

// resolveSnapshot returns a pool snapshot no older than maxSnapAge, refreshing
// from the chain when the cached one is missing or stale.
func (s *QuoteService) resolveSnapshot(ctx context.Context, market domain.Market) (domain.PoolSnapshot, error) {
	snap, err := s.pools.GetSnapshot(ctx, market.ID)
	switch {
	case err == nil && time.Since(snap.FetchedAt) <= s.maxSnapAge:
		return snap, nil
	case err == nil:
		metrics.SnapshotRefreshes.WithLabelValues("stale").Inc()
	case errors.Is(err, domain.ErrNotFound):
		metrics.SnapshotRefreshes.WithLabelValues("miss").Inc()
	default:
		return domain.PoolSnapshot{}, fmt.Errorf("quote_service: pool cache %q: %w", market.ID, err)
	}

	if s.reader == nil {
		if err == nil {
			// Stale is better than nothing when no RPC endpoint is configured.
			s.logger.WarnContext(ctx, "quote_service: serving stale snapshot, no chain reader",
				slog.String("market_id", market.ID),
				slog.Time("fetched_at", snap.FetchedAt),
			)
			return snap, nil
		}
		return domain.PoolSnapshot{}, fmt.Errorf("quote_service: no snapshot for %q: %w", market.ID, domain.ErrNotFound)
	}

	fresh, err := s.reader.PoolSnapshot(ctx, market)
	if err != nil {
		return domain.PoolSnapshot{}, fmt.Errorf("quote_service: refresh snapshot %q: %w", market.ID, err)
	}

	if cacheErr := s.pools.SetSnapshot(ctx, fresh); cacheErr != nil {
		s.logger.WarnContext(ctx, "quote_service: pool cache set failed",
			slog.String("market_id", market.ID),
			slog.String("error", cacheErr.Error()),
		)
	}
	return fresh, nil
}

// Preview prices a quote request without persisting anything. Validation
// errors from the pricing layer pass through unwrapped sentinels so handlers
// can map them to 4xx responses.
func (s *QuoteService) Preview(ctx context.Context, marketID string, kind domain.QuoteKind, side domain.Outcome, amount decimal.Decimal) (domain.Quote, error) {
	start := time.Now()

	market, err := s.markets.GetMarket(ctx, marketID)
	if err != nil {
		return domain.Quote{}, err
	}

	now := time.Now().UTC()
	if !market.TradingOpen(now) {
		metrics.QuoteErrors.WithLabelValues(string(kind)).Inc()
		return domain.Quote{}, fmt.Errorf("quote_service: market %q: %w", marketID, domain.ErrMarketClosed)
	}

	pricer, err := pricing.ForMarket(market.MarketType)
	if err != nil {
		metrics.QuoteErrors.WithLabelValues(string(kind)).Inc()
		return domain.Quote{}, err
	}

	snap, err := s.resolveSnapshot(ctx, market)
	if err != nil {
		return domain.Quote{}, err
	}

	res, err := pricer.Quote(pricing.Request{
		Kind:         kind,
		Side:         side,
		Amount:       amount,
		Pool:         snap,
		FeeBps:       market.FeeBps,
		TimeDecayBps: market.TimeDecayBps,
		Now:          now,
		CreatedAt:    market.CreatedAt,
		CutoffTime:   market.CutoffTime,
	})
	if err != nil {
		metrics.QuoteErrors.WithLabelValues(string(kind)).Inc()
		return domain.Quote{}, err
	}

	metrics.QuotesTotal.WithLabelValues(string(kind), string(market.MarketType)).Inc()
	metrics.PricingLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	return domain.Quote{
		ID:          uuid.NewString(),
		MarketID:    market.ID,
		Kind:        kind,
		Side:        side,
		AmountIn:    amount,
		AmountOut:   res.AmountOut,
		EffPrice:    res.EffectivePrice,
		PriceImpact: res.PriceImpact,
		ROI:         res.ROI,
		Estimate:    res.Estimate,
		BlockNumber: snap.BlockNumber,
		CreatedAt:   now,
	}, nil
}

// Quote prices a request, persists the result for history, and fans it out on
// the signal bus. Persistence and fan-out failures are logged, not returned:
// the caller already has a correct quote.
func (s *QuoteService) Quote(ctx context.Context, marketID string, kind domain.QuoteKind, side domain.Outcome, amount decimal.Decimal) (domain.Quote, error) {
	q, err := s.Preview(ctx, marketID, kind, side, amount)
	if err != nil {
		return domain.Quote{}, err
	}

	if err := s.quotes.Insert(ctx, q); err != nil {
		s.logger.WarnContext(ctx, "quote_service: insert quote failed",
			slog.String("quote_id", q.ID),
			slog.String("error", err.Error()),
		)
	}

	evt, _ := json.Marshal(map[string]any{
		"event":      "quote",
		"market_id":  q.MarketID,
		"kind":       string(q.Kind),
		"side":       q.Side.String(),
		"amount_in":  q.AmountIn.String(),
		"amount_out": q.AmountOut.String(),
		"estimate":   q.Estimate,
		"block":      q.BlockNumber,
		"timestamp":  q.CreatedAt.Format(time.RFC3339Nano),
	})
	if pubErr := s.bus.Publish(ctx, "quotes:"+q.MarketID, evt); pubErr != nil {
		s.logger.WarnContext(ctx, "quote_service: publish quote event failed",
			slog.String("market_id", q.MarketID),
			slog.String("error", pubErr.Error()),
		)
	}
	if streamErr := s.bus.StreamAppend(ctx, "quotes", evt); streamErr != nil {
		s.logger.WarnContext(ctx, "quote_service: stream append failed",
			slog.String("market_id", q.MarketID),
			slog.String("error", streamErr.Error()),
		)
	}

	return q, nil
}

// SpotPrice returns the probability-style YES price for a market, refreshing
// the price cache and publishing a price event on change.
func (s *QuoteService) SpotPrice(ctx context.Context, marketID string) (decimal.Decimal, time.Time, error) {
	market, err := s.markets.GetMarket(ctx, marketID)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	snap, err := s.resolveSnapshot(ctx, market)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	price, err := pricing.SpotPrice(market.MarketType, snap)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	prev, _, cacheErr := s.prices.GetPrice(ctx, market.ID)
	changed := cacheErr != nil || !prev.Equal(price)

	if err := s.prices.SetPrice(ctx, market.ID, price, snap.FetchedAt); err != nil {
		s.logger.WarnContext(ctx, "quote_service: price cache set failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
	}

	if changed {
		evt, _ := json.Marshal(map[string]any{
			"event":     "price",
			"market_id": market.ID,
			"price":     price.String(),
			"block":     snap.BlockNumber,
			"timestamp": snap.FetchedAt.Format(time.RFC3339Nano),
		})
		if pubErr := s.bus.Publish(ctx, "prices", evt); pubErr != nil {
			s.logger.WarnContext(ctx, "quote_service: publish price event failed",
				slog.String("market_id", market.ID),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	return price, snap.FetchedAt, nil
}

// History returns stored quotes for a market, newest first.
func (s *QuoteService) History(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Quote, error) {
	quotes, err := s.quotes.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("quote_service: history for %q: %w", marketID, err)
	}
	return quotes, nil
}
