// Package parimutuel models the time-weighted parimutuel payout scheme:
// depositing early earns a bonus multiplier and depositing late a penalty, and
// winners split the losing pool proportionally to effective
// (multiplier-weighted) stake rather than raw stake.
//
// Everything here is a pure calculation over snapshot values. The on-chain
// contract is the single source of truth for settlement; these functions
// reproduce its arithmetic for display, and the payout projection is an
// explicitly disclosed approximation (see ProjectedPayout).
package parimutuel

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/fixedpoint"
)

var (
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
	bpsOne  = decimal.NewFromInt(fixedpoint.BpsDenominator)
)

// TimeMultiplier computes the deposit-time bonus/penalty multiplier.
//
// The multiplier is linear in the fraction of the trading window remaining,
// spanning [1 - decay/2, 1 + decay/2] (decay as a fraction) and crossing
// exactly 1.0 at the window midpoint:
//
//	multiplierBps = 10000 - timeDecayBps/2 + timeRatio*timeDecayBps
//
// timeDecayBps == 0 disables decay and returns exactly 1. A zero-length
// window is a degenerate-but-harmless configuration and also returns the
// neutral 1 rather than an error.
func TimeMultiplier(now, createdAt, cutoffTime time.Time, timeDecayBps int64) (decimal.Decimal, error) {
	if !fixedpoint.ValidBps(timeDecayBps) {
		return decimal.Zero, fmt.Errorf("parimutuel: %w: decay %d bps", domain.ErrInvalidFee, timeDecayBps)
	}
	if timeDecayBps == 0 {
		return one, nil
	}

	totalWindow := cutoffTime.Unix() - createdAt.Unix()
	if totalWindow <= 0 {
		return one, nil
	}

	timeRemaining := cutoffTime.Unix() - now.Unix()
	if timeRemaining < 0 {
		timeRemaining = 0
	}

	timeRatio := decimal.NewFromInt(timeRemaining).Div(decimal.NewFromInt(totalWindow))
	if timeRatio.GreaterThan(one) {
		timeRatio = one
	}

	decay := decimal.NewFromInt(timeDecayBps)
	multiplierBps := bpsOne.Sub(decay.Div(two)).Add(timeRatio.Mul(decay))
	return multiplierBps.Div(bpsOne), nil
}

// EffectiveShares converts a raw deposit into multiplier-weighted shares.
// Not persisted anywhere — recomputed on demand.
func EffectiveShares(depositAmount, multiplier decimal.Decimal) decimal.Decimal {
	return depositAmount.Mul(multiplier)
}

// ImpliedProbability returns the crowd-implied probability of YES: the share
// of total stake sitting on the YES side. An empty market returns exactly 0.5.
func ImpliedProbability(poolYes, poolNo decimal.Decimal) decimal.Decimal {
	total := poolYes.Add(poolNo)
	if total.IsZero() {
		return one.Div(two)
	}
	return poolYes.Div(total)
}

// Projection is the preview of a winning payout for a hypothetical deposit.
type Projection struct {
	// EffectiveShares is investment * multiplier.
	EffectiveShares decimal.Decimal

	// Profit is the pro-rata share of the losing pool net of the protocol
	// fee. The original stake is returned on top of this.
	Profit decimal.Decimal

	// ROI is Profit / investment * 100, in percent.
	ROI decimal.Decimal

	// Estimate is always true: existing depositors' entry timestamps are not
	// available here, so their effective stake is approximated at multiplier
	// 1.0. The contract computes the authoritative number at resolution.
	Estimate bool
}

// ProjectedPayout models what the contract will pay if side wins after a
// hypothetical deposit of investment:
//
//	losingPool        = pool on the other side
//	availableWinnings = losingPool * (1 - feeBps/10000)
//	profit            = availableWinnings * yourEff / (existingEff + yourEff)
//
// where existingEff approximates the winning side's pre-existing effective
// stake by its raw pool amount. A zero investment returns a zero projection
// without error; a negative investment is a caller mistake.
func ProjectedPayout(investment decimal.Decimal, side domain.Outcome, poolYes, poolNo, multiplier decimal.Decimal, feeBps int64) (Projection, error) {
	if investment.IsNegative() {
		return Projection{}, fmt.Errorf("parimutuel: %w: %s", domain.ErrInvalidAmount, investment)
	}
	if !fixedpoint.ValidBps(feeBps) {
		return Projection{}, fmt.Errorf("parimutuel: %w: fee %d bps", domain.ErrInvalidFee, feeBps)
	}
	if poolYes.IsNegative() || poolNo.IsNegative() {
		return Projection{}, fmt.Errorf("parimutuel: %w: negative pool", domain.ErrUninitializedPool)
	}
	if investment.IsZero() {
		return Projection{Estimate: true}, nil
	}

	winningPool, losingPool := poolYes, poolNo
	if side == domain.OutcomeNo {
		winningPool, losingPool = poolNo, poolYes
	}

	yourEffective := EffectiveShares(investment, multiplier)
	totalEffective := winningPool.Add(yourEffective)
	availableWinnings := fixedpoint.DeductBps(losingPool, feeBps)

	profit := availableWinnings.Mul(yourEffective).Div(totalEffective)
	roi := profit.Div(investment).Mul(hundred)

	return Projection{
		EffectiveShares: yourEffective,
		Profit:          profit,
		ROI:             roi,
		Estimate:        true,
	}, nil
}
