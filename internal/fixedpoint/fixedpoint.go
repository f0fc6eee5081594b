// Package fixedpoint converts between human-entered decimal strings and the
// smallest-unit integer representation of on-chain token amounts, and performs
// basis-point percentage arithmetic. All math uses shopspring/decimal — never
// float64 for money.
package fixedpoint

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// StakeDecimals is the precision of the stake token (USDC-style).
	StakeDecimals int32 = 6

	// GovDecimals is the precision of the staking/governance token bonded
	// during market creation.
	GovDecimals int32 = 18

	// BpsDenominator is the basis-point scale: 10000 bps = 100%.
	BpsDenominator int64 = 10000
)

var bpsDenom = decimal.NewFromInt(BpsDenominator)

// ParseAmount converts a human decimal string (e.g. "12.50") into smallest
// token units at the given precision. It rejects empty input, negative
// amounts, and more fractional digits than the token supports: amounts feed
// on-chain calls, so silent rounding is never acceptable.
func ParseAmount(s string, decimals int32) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("fixedpoint: empty amount")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fixedpoint: parse %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("fixedpoint: negative amount %q", s)
	}

	units := d.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("fixedpoint: %q exceeds %d decimal places", s, decimals)
	}
	return units, nil
}

// FormatAmount renders smallest token units as a human decimal string.
// Round-trip law: ParseAmount(FormatAmount(x, d), d) == x for every integer
// unit amount x representable at precision d.
func FormatAmount(units decimal.Decimal, decimals int32) string {
	return units.Shift(-decimals).String()
}

// ValidBps reports whether bps lies in the closed range [0, 10000].
func ValidBps(bps int64) bool {
	return bps >= 0 && bps <= BpsDenominator
}

// Fraction returns bps as a decimal fraction (300 bps -> 0.03).
func Fraction(bps int64) decimal.Decimal {
	return decimal.NewFromInt(bps).Div(bpsDenom)
}

// ApplyBps returns amount * bps / 10000.
func ApplyBps(amount decimal.Decimal, bps int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(bps)).Div(bpsDenom)
}

// DeductBps returns amount with a bps-scaled fee removed:
// amount * (10000 - bps) / 10000.
func DeductBps(amount decimal.Decimal, bps int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(BpsDenominator - bps)).Div(bpsDenom)
}
