// Package core implements the deterministic budget-analytics pipeline:
// normalization, account and category classification, transaction filtering,
// monthly aggregation, metrics, and trend comparisons. Everything in this
// package is a pure in-memory transform; all I/O lives behind service ports.
package core

import (
	"fmt"
	"math"
)

// Money is an exact amount in cents of the budget's base currency.
// Negative cents mean an outflow.
type Money struct {
	Cents int64
}

// FromMilliunits converts a provider milliunit amount (1000 = one currency
// unit) into Money. This is the only conversion from milliunits; the rest of
// the pipeline never sees them. Half cents round away from zero.
func FromMilliunits(milli int64) Money {
	if milli >= 0 {
		return Money{Cents: (milli + 5) / 10}
	}
	return Money{Cents: (milli - 5) / 10}
}

// FromUnits converts whole currency units to Money.
func FromUnits(units int64) Money {
	return Money{Cents: units * 100}
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) IsZero() bool { return m.Cents == 0 }

func (m Money) IsNegative() bool { return m.Cents < 0 }

// ClampZero returns m, or zero when m is negative. Used when reporting
// bucket totals that refund netting drove below zero.
func (m Money) ClampZero() Money {
	if m.Cents < 0 {
		return Money{}
	}
	return m
}

// DivInt divides the amount by n, truncating toward zero.
func (m Money) DivInt(n int) Money {
	if n == 0 {
		return Money{}
	}
	return Money{Cents: m.Cents / int64(n)}
}

// Units returns the amount in whole currency units for display and
// percentage math. Use cents for aggregation to keep results exact.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// PercentOf returns m as a percentage of total, or 0 when total is zero.
func (m Money) PercentOf(total Money) float64 {
	if total.Cents == 0 {
		return 0
	}
	return float64(m.Cents) / float64(total.Cents) * 100.0
}

// String formats the amount as a plain decimal, e.g. "-123.45".
func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// roundPercent keeps emitted percentages stable across runs.
func roundPercent(p float64) float64 {
	return math.Round(p*10) / 10
}
