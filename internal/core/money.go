// Package core holds the cooperative's domain types and money handling.
//
// Amounts are stored as integer minor units (cents/poisha). Decimal input and
// output go through shopspring/decimal so that no binary float ever touches a
// balance.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// Money is an amount in minor units.
type Money struct {
	Cents int64
}

// NewMoney builds Money from a whole-unit amount, e.g. NewMoney(2000) is 2000.00.
func NewMoney(units int64) Money {
	return Money{Cents: units * 100}
}

// MoneyFromDecimal converts a decimal amount to cents, rounding half away from zero
// on the third fractional digit.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	c := d.Mul(hundred).Round(0)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return Money{}, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	return Money{Cents: c.IntPart()}, nil
}

// ParseMoney parses a decimal string. Both "12.34" and "12,34" are accepted, and
// thousands separators are not.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// CheckedAdd is Add that reports int64 overflow as a validation error.
func (m Money) CheckedAdd(o Money) (Money, error) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return Money{}, invalid(fmt.Errorf("%w: %s + %s", ErrAmountOverflow, m, o))
	}
	return Money{Cents: sum}, nil
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) IsNegative() bool {
	return m.Cents < 0
}

// MarshalJSON writes the amount as a bare JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string with at most
// two fractional digits. Sub-cent input is rejected rather than rounded.
func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return ErrInvalidAmount
	}
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(b))
	}
	if !d.Mul(hundred).IsInteger() {
		return fmt.Errorf("%w: %s has more than 2 decimal places", ErrInvalidAmount, d.String())
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
