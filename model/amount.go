package model

import (
	"fmt"

	"github.com/niklaslong/zebra/errors"
)

// MaxMoney is the total supply in satoshis.
const MaxMoney int64 = 21_000_000 * 100_000_000

// AmountConstraint selects the valid range of an Amount.
type AmountConstraint interface {
	validRange() (lo, hi int64)
	name() string
}

// NegativeAllowed accepts [-MaxMoney, MaxMoney]. Used for balance deltas relative to the
// finalized tip.
type NegativeAllowed struct{}

func (NegativeAllowed) validRange() (int64, int64) { return -MaxMoney, MaxMoney }
func (NegativeAllowed) name() string               { return "NegativeAllowed" }

// NonNegative accepts [0, MaxMoney]. Used for output values and finalized balances.
type NonNegative struct{}

func (NonNegative) validRange() (int64, int64) { return 0, MaxMoney }
func (NonNegative) name() string               { return "NonNegative" }

// Amount is a satoshi value whose arithmetic fails instead of leaving the range allowed by C.
type Amount[C AmountConstraint] int64

func checkRange[C AmountConstraint](v int64) (Amount[C], error) {
	var c C

	lo, hi := c.validRange()
	if v < lo || v > hi {
		return 0, errors.NewAmountRangeError("amount %d outside %s range [%d, %d]", v, c.name(), lo, hi)
	}

	return Amount[C](v), nil
}

func NewAmount[C AmountConstraint](v int64) (Amount[C], error) {
	return checkRange[C](v)
}

// NewAmountFromSatoshis converts an output value.
func NewAmountFromSatoshis[C AmountConstraint](sats uint64) (Amount[C], error) {
	if sats > uint64(MaxMoney) {
		var c C
		return 0, errors.NewAmountRangeError("amount %d outside %s range", sats, c.name())
	}

	return checkRange[C](int64(sats))
}

// Constrain converts a into an amount with a different constraint.
func Constrain[D, C AmountConstraint](a Amount[C]) (Amount[D], error) {
	return checkRange[D](int64(a))
}

// Add returns a+b. Both operands are within ±MaxMoney so the sum cannot overflow int64.
func (a Amount[C]) Add(b Amount[C]) (Amount[C], error) {
	return checkRange[C](int64(a) + int64(b))
}

func (a Amount[C]) Sub(b Amount[C]) (Amount[C], error) {
	return checkRange[C](int64(a) - int64(b))
}

func (a Amount[C]) Int64() int64 {
	return int64(a)
}

func (a Amount[C]) IsZero() bool {
	return a == 0
}

func (a Amount[C]) String() string {
	return fmt.Sprintf("%d", int64(a))
}
