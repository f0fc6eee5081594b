package domain

import "errors"

// Store / cache errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrContextDone   = errors.New("context cancelled")
)

// Pricing errors. The pricers are pure calculators: these are returned
// synchronously and are never retryable at this layer — the caller re-fetches
// state and invokes the pricer again.
var (
	// ErrInvalidAmount is returned for a non-positive amount or share input.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidFee is returned when a fee or decay parameter is outside
	// [0, 10000] basis points.
	ErrInvalidFee = errors.New("basis points out of range")

	// ErrUninitializedPool is returned when both reserves are zero and a
	// reserve ratio is required.
	ErrUninitializedPool = errors.New("pool has no liquidity")

	// ErrInsufficientLiquidity is returned when the requested output would
	// meet or exceed the available reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for trade size")
)

// Market-level errors.
var (
	ErrMarketClosed          = errors.New("market past cutoff")
	ErrUnsupportedMarketType = errors.New("unsupported market type")
)
