// Package cpmm implements the constant-product (x*y=k) automated market maker
// formulas used to preview trades against a two-outcome pool.
//
// The pool holds two reserves, YES and NO, in smallest stake-token units.
// Buying YES pays into the YES reserve and draws shares out of the NO reserve
// (mirrored for NO), preserving the product k = reserveYes * reserveNo. The
// fee is taken from the input amount before the swap, so the post-trade
// product never falls below the pre-trade product.
//
// All functions are pure: same inputs, same outputs, no I/O. Callers are
// expected to re-fetch reserves and call again rather than retry.
package cpmm

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/fixedpoint"
)

var two = decimal.NewFromInt(2)

// BuyResult is the preview of a buy against the pool.
type BuyResult struct {
	// SharesOut is the number of outcome shares received. Always strictly
	// less than the opposing reserve.
	SharesOut decimal.Decimal

	// EffectivePrice is the average stake paid per share, fee included.
	EffectivePrice decimal.Decimal

	// PriceImpact is the fractional worsening of EffectivePrice versus the
	// pre-trade marginal exchange rate reserveIn/reserveOut.
	PriceImpact decimal.Decimal
}

// SellResult is the preview of a sell back into the pool.
type SellResult struct {
	// AmountOut is the stake returned after the fee.
	AmountOut decimal.Decimal

	// EffectivePrice is the average stake received per share, fee included.
	EffectivePrice decimal.Decimal

	// PriceImpact is the fractional shortfall of EffectivePrice versus the
	// pre-trade marginal exchange rate.
	PriceImpact decimal.Decimal
}

// orient maps an outcome to its (reserveIn, reserveOut) pair. Buying YES pays
// into the YES reserve and takes shares from the NO reserve.
func orient(side domain.Outcome, reserveYes, reserveNo decimal.Decimal) (in, out decimal.Decimal) {
	if side == domain.OutcomeYes {
		return reserveYes, reserveNo
	}
	return reserveNo, reserveYes
}

// validate checks the shared input constraints for buys and sells.
func validate(amount, reserveYes, reserveNo decimal.Decimal, feeBps int64) error {
	if !amount.IsPositive() {
		return fmt.Errorf("cpmm: %w: %s", domain.ErrInvalidAmount, amount)
	}
	if !fixedpoint.ValidBps(feeBps) {
		return fmt.Errorf("cpmm: %w: fee %d bps", domain.ErrInvalidFee, feeBps)
	}
	if reserveYes.IsNegative() || reserveNo.IsNegative() {
		return fmt.Errorf("cpmm: %w: negative reserve", domain.ErrUninitializedPool)
	}
	if reserveYes.Add(reserveNo).IsZero() {
		return fmt.Errorf("cpmm: %w", domain.ErrUninitializedPool)
	}
	return nil
}

// BuyShares previews buying shares of side with amountIn stake units:
//
//	amountNet = amountIn * (10000 - feeBps) / 10000
//	sharesOut = reserveOut - reserveIn*reserveOut / (reserveIn + amountNet)
//
// SharesOut is monotonically increasing in amountIn for fixed reserves and is
// always strictly below reserveOut.
func BuyShares(side domain.Outcome, amountIn, reserveYes, reserveNo decimal.Decimal, feeBps int64) (BuyResult, error) {
	if err := validate(amountIn, reserveYes, reserveNo, feeBps); err != nil {
		return BuyResult{}, err
	}

	reserveIn, reserveOut := orient(side, reserveYes, reserveNo)
	if reserveIn.IsZero() || reserveOut.IsZero() {
		// A one-sided pool has no exchange rate; any swap would drain the
		// remaining reserve.
		return BuyResult{}, fmt.Errorf("cpmm: buy %s: %w", side, domain.ErrInsufficientLiquidity)
	}

	amountNet := fixedpoint.DeductBps(amountIn, feeBps)
	k := reserveIn.Mul(reserveOut)
	sharesOut := reserveOut.Sub(k.Div(reserveIn.Add(amountNet)))

	if !sharesOut.IsPositive() || sharesOut.GreaterThanOrEqual(reserveOut) {
		return BuyResult{}, fmt.Errorf("cpmm: buy %s: %w", side, domain.ErrInsufficientLiquidity)
	}

	effective := amountIn.Div(sharesOut)
	marginal := reserveIn.Div(reserveOut)
	impact := effective.Sub(marginal).Div(marginal)

	return BuyResult{
		SharesOut:      sharesOut,
		EffectivePrice: effective,
		PriceImpact:    impact,
	}, nil
}

// SellShares previews returning sharesIn shares of side to the pool. The
// inverse of BuyShares: shares go back into the opposing reserve and stake is
// withdrawn from the side's reserve, with the fee applied to the gross amount:
//
//	gross     = reserveIn - reserveIn*reserveOut / (reserveOut + sharesIn)
//	amountOut = gross * (10000 - feeBps) / 10000
func SellShares(side domain.Outcome, sharesIn, reserveYes, reserveNo decimal.Decimal, feeBps int64) (SellResult, error) {
	if err := validate(sharesIn, reserveYes, reserveNo, feeBps); err != nil {
		return SellResult{}, err
	}

	reserveIn, reserveOut := orient(side, reserveYes, reserveNo)
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return SellResult{}, fmt.Errorf("cpmm: sell %s: %w", side, domain.ErrInsufficientLiquidity)
	}

	k := reserveIn.Mul(reserveOut)
	gross := reserveIn.Sub(k.Div(reserveOut.Add(sharesIn)))
	amountOut := fixedpoint.DeductBps(gross, feeBps)

	if !amountOut.IsPositive() || gross.GreaterThanOrEqual(reserveIn) {
		return SellResult{}, fmt.Errorf("cpmm: sell %s: %w", side, domain.ErrInsufficientLiquidity)
	}

	effective := amountOut.Div(sharesIn)
	marginal := reserveIn.Div(reserveOut)
	impact := marginal.Sub(effective).Div(marginal)

	return SellResult{
		AmountOut:      amountOut,
		EffectivePrice: effective,
		PriceImpact:    impact,
	}, nil
}

// SpotPrice returns the probability-style price of YES:
//
//	priceYes = reserveNo / (reserveYes + reserveNo)
//
// A larger opposing reserve implies a higher implied probability for the other
// side, matching how the contract quotes. An empty pool returns exactly 0.5
// (bootstrap convention).
func SpotPrice(reserveYes, reserveNo decimal.Decimal) decimal.Decimal {
	total := reserveYes.Add(reserveNo)
	if total.IsZero() {
		return decimal.NewFromInt(1).Div(two)
	}
	return reserveNo.Div(total)
}
