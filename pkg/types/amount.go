package types

import (
	"fmt"
	"strings"
)

// MilliPerVIBE is the number of milli-VIBE units in one VIBE token.
// All ledger arithmetic is integer milli-VIBE; fractional token values
// exist only at the display layer.
const MilliPerVIBE = 1000

// Amount is a quantity of reward tokens in milli-VIBE.
type Amount uint64

// VIBE constructs an Amount from a whole number of VIBE.
func VIBE(n uint64) Amount {
	return Amount(n * MilliPerVIBE)
}

// Milli returns the raw milli-VIBE value.
func (a Amount) Milli() uint64 {
	return uint64(a)
}

// String formats the amount as a decimal VIBE value, e.g. "0.39".
func (a Amount) String() string {
	whole := uint64(a) / MilliPerVIBE
	frac := uint64(a) % MilliPerVIBE
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	s := fmt.Sprintf("%d.%03d", whole, frac)
	return strings.TrimRight(s, "0")
}
