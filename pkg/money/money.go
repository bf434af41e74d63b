// Package money provides a fixed-scale decimal amount for ledger arithmetic.
// Amounts always carry exactly two fractional digits and never round
// silently: inputs with more precision are rejected, and arithmetic that
// leaves the representable range fails instead of wrapping.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 2

var (
	// ErrInvalidAmount indicates input that is not a decimal number or has
	// more than Scale fractional digits.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrOverflow indicates a value outside the representable range.
	ErrOverflow = errors.New("amount overflow")
)

// maxAbs bounds amounts to what NUMERIC(20,2) can hold.
var maxAbs = decimal.New(1, 18)

// Money is a signed decimal amount with a fixed scale of 2.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero returns the 0.00 amount.
func Zero() Money {
	return Money{}
}

// Parse converts a decimal string such as "100.00" or "42" into a Money.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is Parse for statically known inputs; it panics on error.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal validates scale and range of d and wraps it.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if d.Exponent() < -Scale {
		return Money{}, fmt.Errorf("%w: more than %d fractional digits in %s", ErrInvalidAmount, Scale, d)
	}
	if d.Abs().GreaterThanOrEqual(maxAbs) {
		return Money{}, fmt.Errorf("%w: %s", ErrOverflow, d)
	}
	return Money{d: d}, nil
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Add returns m + other, failing with ErrOverflow if the sum leaves the
// representable range.
func (m Money) Add(other Money) (Money, error) {
	sum := m.d.Add(other.d)
	if sum.Abs().GreaterThanOrEqual(maxAbs) {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrOverflow, m, other)
	}
	return Money{d: sum}, nil
}

// Sub returns m - other, failing with ErrOverflow if the difference leaves
// the representable range.
func (m Money) Sub(other Money) (Money, error) {
	diff := m.d.Sub(other.d)
	if diff.Abs().GreaterThanOrEqual(maxAbs) {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrOverflow, m, other)
	}
	return Money{d: diff}, nil
}

// Neg returns -m. Negation cannot overflow.
func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// Cmp compares m and other: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

func (m Money) LessThan(other Money) bool {
	return m.d.LessThan(other.d)
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// String renders the amount with exactly two fractional digits, e.g. "100.00".
func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

// MarshalJSON encodes the amount as a decimal string with two fractional
// digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a JSON number or a decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
		}
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer for NUMERIC columns.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	parsed, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
