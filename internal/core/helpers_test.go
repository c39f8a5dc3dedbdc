package core

import (
	"math"
	"time"
)

// shared fixtures for the analytics tests

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func units(u float64) Money {
	return Money{Cents: int64(math.Round(u * 100))}
}

func incomeTxn(date string, amount float64) Transaction {
	return Transaction{
		Date:         day(date),
		AccountID:    "checking",
		CategoryID:   "cat-income",
		CategoryName: "Inflow: Ready to Assign",
		PayeeName:    "Employer",
		Amount:       units(amount),
	}
}

func expenseTxn(date, category, group string, amount float64) Transaction {
	return Transaction{
		Date:          day(date),
		AccountID:     "checking",
		CategoryID:    "cat-" + category,
		CategoryName:  category,
		CategoryGroup: group,
		PayeeName:     "Store",
		Amount:        units(amount),
	}
}

func baseAccounts() []Account {
	return []Account{
		{ID: "checking", Name: "Checking", Type: "checking", Balance: FromUnits(10000), OnBudget: true},
		{ID: "retire", Name: "401(k)", Type: "otherasset", Balance: FromUnits(50000)},
	}
}
