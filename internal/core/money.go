// Package core provides money parsing and handling utilities.
//
// Amounts are kept as arbitrary-precision decimals so that totals computed
// by the service match what the user typed, without float rounding.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount. It is encoded in JSON as a bare number and
// decoded from either a number or a numeric string, since the add form
// submits what the user typed.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MustMoney parses s and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Negative and zero amounts are rejected.
//
// Examples:
//
//	ParseMoney("12.34") -> 12.34, nil
//	ParseMoney("12,34") -> 12.34, nil
//	ParseMoney("-1")    -> error
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
	m := Money{Decimal: d}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

func (m Money) Validate() error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	m.Decimal = d
	return nil
}
