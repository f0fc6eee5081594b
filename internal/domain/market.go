package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketType selects which pricing engine a market was deployed with.
type MarketType string

const (
	// MarketTypeParimutuel is the time-weighted pool market: winners split the
	// losing pool pro rata to their effective (multiplier-weighted) stake.
	MarketTypeParimutuel MarketType = "parimutuel"

	// MarketTypeCPMM is the constant-product (x*y=k) two-outcome AMM market.
	MarketTypeCPMM MarketType = "cpmm"
)

// Valid reports whether t is one of the two deployed market types.
func (t MarketType) Valid() bool {
	return t == MarketTypeParimutuel || t == MarketTypeCPMM
}

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusClosed   MarketStatus = "closed"   // past cutoff, awaiting resolution
	MarketStatusResolved MarketStatus = "resolved" // winning outcome reported on-chain
)

// Market is a binary prediction market deployed through the router contract.
// All monetary fields are denominated in the smallest unit of the stake token
// (6 decimals). The on-chain contract owns the authoritative state; rows here
// are indexer/chain snapshots used for serving and pricing previews.
type Market struct {
	ID            string // market contract address (0x-hex, lowercase)
	Question      string
	Slug          string
	MarketType    MarketType
	Outcomes      [2]string // display labels, index matches Outcome encoding: [No, Yes]
	StakeToken    string    // ERC-20 address of the stake token
	FeeBps        int64     // protocol fee in basis points [0, 10000]
	CreatorFeeBps int64     // creator's share of the protocol fee, in basis points
	TimeDecayBps  int64     // parimutuel time-decay spread; 0 disables decay
	CreatedAt     time.Time
	CutoffTime    time.Time // trading closes at this instant
	Resolved      bool
	Winner        *Outcome // set once Resolved
	Volume        decimal.Decimal
	Status        MarketStatus
	UpdatedAt     time.Time
}

// TradingOpen reports whether the market still accepts deposits/trades at t.
func (m Market) TradingOpen(t time.Time) bool {
	return m.Status == MarketStatusActive && !m.Resolved && t.Before(m.CutoffTime)
}

// PoolSnapshot is a point-in-time read of a market's two pools. For CPMM
// markets Yes/No are the AMM reserves; for parimutuel markets they are the
// total staked per side. Both are smallest-unit integer quantities carried as
// decimals so downstream arithmetic never touches float64.
type PoolSnapshot struct {
	MarketID    string
	MarketType  MarketType
	Yes         decimal.Decimal
	No          decimal.Decimal
	BlockNumber uint64
	FetchedAt   time.Time
}

// Total returns the combined size of both pools.
func (s PoolSnapshot) Total() decimal.Decimal {
	return s.Yes.Add(s.No)
}

// Deposit is a single parimutuel stake read back from the indexer.
type Deposit struct {
	ID        string // txhash:logindex, unique per event
	MarketID  string
	Account   string
	Side      Outcome
	Amount    decimal.Decimal
	TxHash    string
	Timestamp time.Time
}
