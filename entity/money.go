package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

var ErrInvalidMoney = errors.New("invalid money amount")

// Money is a non-negative fixed-point amount with two decimals. It serialises as decimal text
// ("10.00") and is never held in binary floating point.
type Money struct {
	d decimal.Decimal
}

// ParseMoney accepts decimal text with at most two fractional digits.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	return moneyOf(d)
}

// MustMoney is ParseMoney for literals.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func moneyOf(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s is negative", ErrInvalidMoney, d)
	}
	if !d.Equal(d.Truncate(moneyScale)) {
		return Money{}, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidMoney, d, moneyScale)
	}
	return Money{d: d.Round(moneyScale)}, nil
}

// Times multiplies by a quantity exactly.
func (m Money) Times(qty int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty))).Round(moneyScale)}
}

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) Decimal() decimal.Decimal { return m.d }

// String returns the canonical two-decimal text.
func (m Money) String() string { return m.d.StringFixed(moneyScale) }

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts decimal text or a bare JSON number.
func (m *Money) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMoney, b)
	}
	v, err := moneyOf(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
