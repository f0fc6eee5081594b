package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
)

func d(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func cpmmRequest(kind domain.QuoteKind) Request {
	return Request{
		Kind:   kind,
		Side:   domain.OutcomeYes,
		Amount: d(10_000),
		Pool: domain.PoolSnapshot{
			MarketType: domain.MarketTypeCPMM,
			Yes:        d(750_000),
			No:         d(250_000),
		},
		FeeBps: 300,
	}
}

func TestForMarket_Dispatch(t *testing.T) {
	if _, err := ForMarket(domain.MarketTypeCPMM); err != nil {
		t.Fatalf("cpmm: %v", err)
	}
	if _, err := ForMarket(domain.MarketTypeParimutuel); err != nil {
		t.Fatalf("parimutuel: %v", err)
	}
	if _, err := ForMarket(domain.MarketType("lmsr")); !errors.Is(err, domain.ErrUnsupportedMarketType) {
		t.Errorf("unknown type: got %v", err)
	}
}

func TestConstantProduct_BuyAndSell(t *testing.T) {
	pricer, _ := ForMarket(domain.MarketTypeCPMM)

	buy, err := pricer.Quote(cpmmRequest(domain.QuoteKindBuy))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !buy.AmountOut.IsPositive() {
		t.Errorf("buy sharesOut = %s, want > 0", buy.AmountOut)
	}
	if buy.Estimate {
		t.Error("cpmm buy is exact arithmetic, not an estimate")
	}

	sellReq := cpmmRequest(domain.QuoteKindSell)
	sellReq.Amount = d(1_000)
	sell, err := pricer.Quote(sellReq)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !sell.AmountOut.IsPositive() {
		t.Errorf("sell amountOut = %s, want > 0", sell.AmountOut)
	}

	if _, err := pricer.Quote(cpmmRequest(domain.QuoteKindPayout)); !errors.Is(err, domain.ErrUnsupportedMarketType) {
		t.Errorf("payout on cpmm: got %v", err)
	}
}

func TestPariMutuel_PayoutQuote(t *testing.T) {
	pricer, _ := ForMarket(domain.MarketTypeParimutuel)

	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	req := Request{
		Kind:   domain.QuoteKindPayout,
		Side:   domain.OutcomeYes,
		Amount: d(1_000),
		Pool: domain.PoolSnapshot{
			MarketType: domain.MarketTypeParimutuel,
			Yes:        d(12_500),
			No:         d(8_750),
		},
		FeeBps:       500,
		TimeDecayBps: 1000,
		Now:          created,
		CreatedAt:    created,
		CutoffTime:   created.Add(72 * time.Hour),
	}

	res, err := pricer.Quote(req)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !res.AmountOut.IsPositive() {
		t.Errorf("profit = %s, want > 0", res.AmountOut)
	}
	if !res.ROI.IsPositive() {
		t.Errorf("roi = %s, want > 0", res.ROI)
	}
	if !res.Estimate {
		t.Error("parimutuel projection must be flagged as an estimate")
	}

	req.Kind = domain.QuoteKindSell
	if _, err := pricer.Quote(req); !errors.Is(err, domain.ErrUnsupportedMarketType) {
		t.Errorf("sell on parimutuel: got %v", err)
	}
}

func TestSpotPrice_ByMarketType(t *testing.T) {
	pool := domain.PoolSnapshot{Yes: d(750_000), No: d(250_000)}

	got, err := SpotPrice(domain.MarketTypeCPMM, pool)
	if err != nil {
		t.Fatalf("cpmm: %v", err)
	}
	if !got.Equal(decimal.NewFromFloat(0.25)) {
		t.Errorf("cpmm spot = %s, want 0.25", got)
	}

	got, err = SpotPrice(domain.MarketTypeParimutuel, pool)
	if err != nil {
		t.Fatalf("parimutuel: %v", err)
	}
	if !got.Equal(decimal.NewFromFloat(0.75)) {
		t.Errorf("parimutuel implied = %s, want 0.75", got)
	}

	if _, err := SpotPrice(domain.MarketType("bad"), pool); !errors.Is(err, domain.ErrUnsupportedMarketType) {
		t.Errorf("unknown type: got %v", err)
	}
}
