// Package core defines the domain types of the ledger.
//
// Money is stored as signed integer kopecks so that running-balance prefix
// sums are exact; the decimal library is used only at the string boundary.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in kopecks. Negative values are expenses,
// positive values income.
type Money struct {
	Kopecks int64
}

var hundred = decimal.NewFromInt(100)

// ParseMoney converts a decimal string to Money with half-up rounding on the
// third decimal place. Both dot and comma separators are accepted because
// stored cells contain either, depending on the sheet locale.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{Kopecks: d.Mul(hundred).Round(0).IntPart()}, nil
}

// String renders the amount as a plain decimal, the format written back to
// sheet cells.
func (m Money) String() string {
	return decimal.NewFromInt(m.Kopecks).Div(hundred).StringFixed(2)
}

// Units returns the amount in currency units for display math only.
func (m Money) Units() float64 {
	return float64(m.Kopecks) / 100.0
}

func (m Money) IsZero() bool { return m.Kopecks == 0 }

func (m Money) IsExpense() bool { return m.Kopecks < 0 }

func (m Money) IsIncome() bool { return m.Kopecks > 0 }

func (m Money) Add(other Money) Money { return Money{Kopecks: m.Kopecks + other.Kopecks} }

func (m Money) Neg() Money { return Money{Kopecks: -m.Kopecks} }

func (m Money) Abs() Money {
	if m.Kopecks < 0 {
		return m.Neg()
	}
	return m
}
