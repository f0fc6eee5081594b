package domain

import "fmt"

// Outcome is the binary side of a market. The on-chain encoding is uint8:
// 0 = NO, 1 = YES. No other outcome values exist for these market types.
type Outcome uint8

const (
	OutcomeNo  Outcome = 0
	OutcomeYes Outcome = 1
)

// String returns the canonical lowercase name used in the API and storage.
func (o Outcome) String() string {
	if o == OutcomeYes {
		return "yes"
	}
	return "no"
}

// Opposite returns the other side.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// Valid reports whether o is one of the two defined outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeNo || o == OutcomeYes
}

// ParseOutcome converts an API/storage string into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "yes", "YES", "Yes", "1":
		return OutcomeYes, nil
	case "no", "NO", "No", "0":
		return OutcomeNo, nil
	default:
		return OutcomeNo, fmt.Errorf("unknown outcome %q", s)
	}
}
