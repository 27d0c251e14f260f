package domain

import (
	"github.com/shopspring/decimal"
)

// Money is an amount in pence. Arithmetic stays in integers; conversion
// to pounds only happens at the edges.
type Money int64

// Pounds returns the amount as a two-place decimal in pounds.
func (m Money) Pounds() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders the amount as e.g. "£62.38".
func (m Money) String() string {
	return "£" + m.Pounds().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number in pounds with two
// decimal places, e.g. 62.38.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Pounds().StringFixed(2)), nil
}

// Pence returns the raw integer amount.
func (m Money) Pence() int64 {
	return int64(m)
}

// MoneyFromPounds parses a pound amount such as "25.99". Values with more
// than two decimal places are rounded half away from zero.
func MoneyFromPounds(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return Money(d.Shift(2).Round(0).IntPart()), nil
}
