package core

import "sort"

// MonthlyTotals are the per-month aggregates keyed by YYYY-MM. Expenses and
// TrueExpenses are non-negative magnitudes; refunds reduce them.
type MonthlyTotals struct {
	Income       Money
	Expenses     Money
	TrueExpenses Money // fixedCosts + guiltFree only
}

// Net is income minus expenses, computed last per the aggregation contract.
func (m MonthlyTotals) Net() Money {
	return m.Income.Sub(m.Expenses)
}

// AggregateMonthly folds the filtered stream into per-month totals.
// Income adds its signed amount to income; an outflow adds its magnitude to
// expenses; a refund subtracts from expenses (a single category may go
// negative, the monthly aggregate normally does not).
func AggregateMonthly(txns []ClassifiedTxn) map[string]MonthlyTotals {
	months := make(map[string]MonthlyTotals)

	for _, t := range txns {
		key := MonthKey(t.Date)
		m := months[key]

		switch t.Class {
		case ClassIncome:
			m.Income = m.Income.Add(t.Amount)
		case ClassRefund:
			m.Expenses = m.Expenses.Sub(t.Amount)
			if IsTrueExpense(t.Bucket) {
				m.TrueExpenses = m.TrueExpenses.Sub(t.Amount)
			}
		default: // expense, transferToInvestment
			m.Expenses = m.Expenses.Add(t.Amount.Abs())
			if IsTrueExpense(t.Bucket) {
				m.TrueExpenses = m.TrueExpenses.Add(t.Amount.Abs())
			}
		}

		months[key] = m
	}

	return months
}

// MonthKeys returns the aggregate's keys sorted ascending.
func MonthKeys(months map[string]MonthlyTotals) []string {
	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
