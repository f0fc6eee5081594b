package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteKind distinguishes the three pricing previews the service produces.
type QuoteKind string

const (
	QuoteKindBuy    QuoteKind = "buy"
	QuoteKindSell   QuoteKind = "sell"
	QuoteKindPayout QuoteKind = "payout"
)

// Quote is an advisory pricing preview computed from a pool snapshot. It is
// display-only: the transaction layer re-derives its own bounds and the
// contract recomputes everything at execution time, so a stored quote is never
// used as an authoritative on-chain value.
type Quote struct {
	ID          string // uuid
	MarketID    string
	Kind        QuoteKind
	Side        Outcome
	AmountIn    decimal.Decimal // stake for buy/payout, shares for sell
	AmountOut   decimal.Decimal // shares for buy, stake for sell, profit for payout
	EffPrice    decimal.Decimal // average execution price (buy/sell only)
	PriceImpact decimal.Decimal // fractional move vs marginal rate (buy/sell only)
	ROI         decimal.Decimal // percent (payout only)
	Estimate    bool            // payout quotes are disclosed approximations
	BlockNumber uint64          // snapshot block the quote was priced against
	CreatedAt   time.Time
}
