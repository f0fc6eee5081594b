package cpmm

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/fixedpoint"
)

// d is a test helper for creating decimals from int64 smallest units.
func d(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestBuyShares_OutputBounds(t *testing.T) {
	tests := []struct {
		name                   string
		side                   domain.Outcome
		amountIn               int64
		reserveYes, reserveNo  int64
		feeBps                 int64
	}{
		{"yes small", domain.OutcomeYes, 10_000, 750_000, 250_000, 300},
		{"yes balanced", domain.OutcomeYes, 50_000, 500_000, 500_000, 0},
		{"no skewed", domain.OutcomeNo, 25_000, 100_000, 900_000, 500},
		{"huge order", domain.OutcomeYes, 100_000_000, 750_000, 250_000, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := BuyShares(tt.side, d(tt.amountIn), d(tt.reserveYes), d(tt.reserveNo), tt.feeBps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			_, reserveOut := orient(tt.side, d(tt.reserveYes), d(tt.reserveNo))
			if !res.SharesOut.IsPositive() {
				t.Errorf("sharesOut = %s, want > 0", res.SharesOut)
			}
			if res.SharesOut.GreaterThanOrEqual(reserveOut) {
				t.Errorf("sharesOut = %s, want < reserveOut %s", res.SharesOut, reserveOut)
			}
		})
	}
}

func TestBuyShares_BelowNaiveEstimate(t *testing.T) {
	// Spec scenario: fee and slippage both reduce output versus the
	// no-slippage ideal amountIn * reserveNo/reserveYes.
	res, err := BuyShares(domain.OutcomeYes, d(10_000), d(750_000), d(250_000), 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	naive := d(10_000).Mul(d(250_000)).Div(d(750_000))
	if res.SharesOut.GreaterThanOrEqual(naive) {
		t.Errorf("sharesOut = %s, want < naive estimate %s", res.SharesOut, naive)
	}
	if !res.PriceImpact.IsPositive() {
		t.Errorf("price impact = %s, want > 0", res.PriceImpact)
	}
}

func TestBuyShares_Monotone(t *testing.T) {
	var prev decimal.Decimal
	for i, amountIn := range []int64{1_000, 5_000, 10_000, 50_000, 250_000, 1_000_000} {
		res, err := BuyShares(domain.OutcomeYes, d(amountIn), d(750_000), d(250_000), 300)
		if err != nil {
			t.Fatalf("amountIn=%d: %v", amountIn, err)
		}
		if i > 0 && res.SharesOut.LessThanOrEqual(prev) {
			t.Errorf("sharesOut(%d) = %s not greater than previous %s", amountIn, res.SharesOut, prev)
		}
		prev = res.SharesOut
	}
}

func TestBuyShares_InvariantPreserved(t *testing.T) {
	reserveYes, reserveNo := d(750_000), d(250_000)
	amountIn := d(10_000)
	feeBps := int64(300)

	res, err := BuyShares(domain.OutcomeYes, amountIn, reserveYes, reserveNo, feeBps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	amountNet := fixedpoint.DeductBps(amountIn, feeBps)
	kBefore := reserveYes.Mul(reserveNo)
	kAfter := reserveYes.Add(amountNet).Mul(reserveNo.Sub(res.SharesOut))

	// Allow only downward drift from division rounding, bounded well below
	// one smallest unit of product.
	if kAfter.LessThan(kBefore.Sub(decimal.NewFromFloat(0.0001))) {
		t.Errorf("product shrank: before=%s after=%s", kBefore, kAfter)
	}
}

func TestBuySell_RoundTrip(t *testing.T) {
	reserveYes, reserveNo := d(600_000), d(400_000)
	amountIn := d(20_000)
	feeBps := int64(250)

	buy, err := BuyShares(domain.OutcomeYes, amountIn, reserveYes, reserveNo, feeBps)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	// Apply the buy to the pool, then immediately sell the shares back.
	amountNet := fixedpoint.DeductBps(amountIn, feeBps)
	postYes := reserveYes.Add(amountNet)
	postNo := reserveNo.Sub(buy.SharesOut)

	sell, err := SellShares(domain.OutcomeYes, buy.SharesOut, postYes, postNo, feeBps)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	// Buying then selling loses value only to the two fee applications.
	want := fixedpoint.DeductBps(fixedpoint.DeductBps(amountIn, feeBps), feeBps)
	diff := sell.AmountOut.Sub(want).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Errorf("round trip: got %s, want %s (diff %s)", sell.AmountOut, want, diff)
	}
	if sell.AmountOut.GreaterThan(amountIn) {
		t.Errorf("round trip produced free money: in=%s out=%s", amountIn, sell.AmountOut)
	}
}

func TestBuyShares_Errors(t *testing.T) {
	tests := []struct {
		name                  string
		amountIn              int64
		reserveYes, reserveNo int64
		feeBps                int64
		want                  error
	}{
		{"zero amount", 0, 500_000, 500_000, 300, domain.ErrInvalidAmount},
		{"negative amount", -5, 500_000, 500_000, 300, domain.ErrInvalidAmount},
		{"empty pool", 1_000, 0, 0, 300, domain.ErrUninitializedPool},
		{"one-sided pool", 1_000, 500_000, 0, 300, domain.ErrInsufficientLiquidity},
		{"fee too high", 1_000, 500_000, 500_000, 10_001, domain.ErrInvalidFee},
		{"negative fee", 1_000, 500_000, 500_000, -1, domain.ErrInvalidFee},
		{"total fee eats amount", 1_000, 500_000, 500_000, 10_000, domain.ErrInsufficientLiquidity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuyShares(domain.OutcomeYes, d(tt.amountIn), d(tt.reserveYes), d(tt.reserveNo), tt.feeBps)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSellShares_Errors(t *testing.T) {
	if _, err := SellShares(domain.OutcomeNo, d(0), d(10), d(10), 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero shares: got %v", err)
	}
	if _, err := SellShares(domain.OutcomeNo, d(100), d(0), d(0), 0); !errors.Is(err, domain.ErrUninitializedPool) {
		t.Errorf("empty pool: got %v", err)
	}
	if _, err := SellShares(domain.OutcomeYes, d(100), d(0), d(500), 0); !errors.Is(err, domain.ErrInsufficientLiquidity) {
		t.Errorf("drained side: got %v", err)
	}
}

func TestSpotPrice(t *testing.T) {
	half := decimal.NewFromFloat(0.5)

	if got := SpotPrice(d(0), d(0)); !got.Equal(half) {
		t.Errorf("SpotPrice(0,0) = %s, want 0.5", got)
	}
	if got := SpotPrice(d(100), d(0)); !got.IsZero() {
		t.Errorf("SpotPrice(100,0) = %s, want 0", got)
	}
	if got := SpotPrice(d(0), d(100)); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("SpotPrice(0,100) = %s, want 1", got)
	}
	if got := SpotPrice(d(750_000), d(250_000)); !got.Equal(decimal.NewFromFloat(0.25)) {
		t.Errorf("SpotPrice(750k,250k) = %s, want 0.25", got)
	}
	if got := SpotPrice(d(500_000), d(500_000)); !got.Equal(half) {
		t.Errorf("SpotPrice(balanced) = %s, want 0.5", got)
	}
}
