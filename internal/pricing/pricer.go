// Package pricing dispatches quote requests to the pricing engine matching a
// market's type. The two engines (constant-product and parimutuel) are pure
// calculators in their own sub-packages; this package provides the single
// Pricer interface selected once per market by a discriminated match, instead
// of per-call branching at every call site.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/pricing/cpmm"
	"github.com/predyx-labs/predyxd/internal/pricing/parimutuel"
)

// Request carries everything a pricer needs: plain snapshot values supplied by
// the caller. Pricers hold no ambient state and never touch the network.
type Request struct {
	Kind   domain.QuoteKind
	Side   domain.Outcome
	Amount decimal.Decimal // stake units for buy/payout, shares for sell

	Pool domain.PoolSnapshot

	FeeBps       int64
	TimeDecayBps int64

	Now        time.Time // evaluation instant for the time multiplier
	CreatedAt  time.Time
	CutoffTime time.Time
}

// Result is the priced preview in the shape the quote service stores.
type Result struct {
	AmountOut      decimal.Decimal // shares (buy), stake (sell), profit (payout)
	EffectivePrice decimal.Decimal
	PriceImpact    decimal.Decimal
	ROI            decimal.Decimal
	Estimate       bool
}

// Pricer prices a single request against a pool snapshot.
type Pricer interface {
	Quote(req Request) (Result, error)
}

// ForMarket returns the pricing engine for the given market type.
func ForMarket(t domain.MarketType) (Pricer, error) {
	switch t {
	case domain.MarketTypeCPMM:
		return constantProduct{}, nil
	case domain.MarketTypeParimutuel:
		return pariMutuel{}, nil
	default:
		return nil, fmt.Errorf("pricing: %w: %q", domain.ErrUnsupportedMarketType, t)
	}
}

// constantProduct adapts the cpmm package to the Pricer interface.
type constantProduct struct{}

func (constantProduct) Quote(req Request) (Result, error) {
	switch req.Kind {
	case domain.QuoteKindBuy:
		res, err := cpmm.BuyShares(req.Side, req.Amount, req.Pool.Yes, req.Pool.No, req.FeeBps)
		if err != nil {
			return Result{}, err
		}
		return Result{
			AmountOut:      res.SharesOut,
			EffectivePrice: res.EffectivePrice,
			PriceImpact:    res.PriceImpact,
		}, nil

	case domain.QuoteKindSell:
		res, err := cpmm.SellShares(req.Side, req.Amount, req.Pool.Yes, req.Pool.No, req.FeeBps)
		if err != nil {
			return Result{}, err
		}
		return Result{
			AmountOut:      res.AmountOut,
			EffectivePrice: res.EffectivePrice,
			PriceImpact:    res.PriceImpact,
		}, nil

	default:
		return Result{}, fmt.Errorf("pricing: cpmm market does not support %q quotes: %w",
			req.Kind, domain.ErrUnsupportedMarketType)
	}
}

// pariMutuel adapts the parimutuel package to the Pricer interface. Buy and
// payout quotes are the same projection: a buy is a hypothetical deposit.
type pariMutuel struct{}

func (pariMutuel) Quote(req Request) (Result, error) {
	switch req.Kind {
	case domain.QuoteKindBuy, domain.QuoteKindPayout:
		multiplier, err := parimutuel.TimeMultiplier(req.Now, req.CreatedAt, req.CutoffTime, req.TimeDecayBps)
		if err != nil {
			return Result{}, err
		}
		proj, err := parimutuel.ProjectedPayout(req.Amount, req.Side, req.Pool.Yes, req.Pool.No, multiplier, req.FeeBps)
		if err != nil {
			return Result{}, err
		}
		return Result{
			AmountOut: proj.Profit,
			ROI:       proj.ROI,
			Estimate:  true,
		}, nil

	default:
		// Parimutuel stakes are locked until resolution; there is no sell.
		return Result{}, fmt.Errorf("pricing: parimutuel market does not support %q quotes: %w",
			req.Kind, domain.ErrUnsupportedMarketType)
	}
}

// SpotPrice returns the probability-style price of YES for any market type:
// the AMM spot price for CPMM pools, the stake-share implied probability for
// parimutuel pools. Empty pools quote 0.5 by the bootstrap convention.
func SpotPrice(t domain.MarketType, pool domain.PoolSnapshot) (decimal.Decimal, error) {
	switch t {
	case domain.MarketTypeCPMM:
		return cpmm.SpotPrice(pool.Yes, pool.No), nil
	case domain.MarketTypeParimutuel:
		return parimutuel.ImpliedProbability(pool.Yes, pool.No), nil
	default:
		return decimal.Zero, fmt.Errorf("pricing: %w: %q", domain.ErrUnsupportedMarketType, t)
	}
}
