package core

import (
	"sort"
	"time"
)

// Change is an absolute and relative delta between two amounts.
type Change struct {
	Amount  Money   `json:"amount"`
	Percent float64 `json:"percent"`
}

func changeBetween(current, previous Money) Change {
	c := Change{Amount: current.Sub(previous)}
	if previous.Cents != 0 {
		c.Percent = roundPercent(float64(c.Amount.Cents) / float64(previous.Abs().Cents) * 100)
	}
	return c
}

// trueExpensesInRange sums net true-expense magnitudes over [from, to).
func trueExpensesInRange(txns []ClassifiedTxn, from, to time.Time) Money {
	var total Money
	for _, t := range txns {
		if t.Class == ClassIncome || !IsTrueExpense(t.Bucket) {
			continue
		}
		if t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		total = total.Add(netExpense(t))
	}
	return total
}

// WeeklyTrend compares the current partial week against the last complete
// week and a six-week rolling average. True expenses only.
type WeeklyTrend struct {
	WeekStart      time.Time `json:"weekStart"`
	CurrentWeek    Money     `json:"currentWeek"`
	PreviousWeek   Money     `json:"previousWeek"`
	SixWeekAverage Money     `json:"sixWeekAverage"`
	Change         Change    `json:"change"`
}

// CategoryDelta is one category's movement between two matched windows.
type CategoryDelta struct {
	Name     string `json:"name"`
	Current  Money  `json:"current"`
	Previous Money  `json:"previous"`
	Change   Money  `json:"change"`
}

// MonthCompare is a matched-partial-period comparison: if today is the
// 12th, both windows run from the 1st through the 12th of their month.
type MonthCompare struct {
	Available bool   `json:"available"`
	Month     string `json:"month"` // comparison month key, YYYY-MM

	CurrentIncome    Money `json:"currentIncome"`
	PreviousIncome   Money `json:"previousIncome"`
	CurrentExpenses  Money `json:"currentExpenses"`
	PreviousExpenses Money `json:"previousExpenses"`

	IncomeChange  Change `json:"incomeChange"`
	ExpenseChange Change `json:"expenseChange"`

	CurrentSavingsRate  float64 `json:"currentSavingsRate"`
	PreviousSavingsRate float64 `json:"previousSavingsRate"`
	SavingsRateDelta    float64 `json:"savingsRateDelta"`

	CategoryDeltas []CategoryDelta `json:"categoryDeltas,omitempty"`
}

// NetWorthCompare is a snapshot-derived net-worth delta.
type NetWorthCompare struct {
	Available bool   `json:"available"`
	Previous  Money  `json:"previous"`
	Change    Change `json:"change"`
}

// YTDProgress is the year-to-date report with linear projections and goal
// tracking.
type YTDProgress struct {
	YearProgress float64 `json:"yearProgress"`

	Income      Money   `json:"income"`
	Expenses    Money   `json:"expenses"`
	Savings     Money   `json:"savings"`
	SavingsRate float64 `json:"savingsRate"`

	ProjectedIncome   Money `json:"projectedIncome"`
	ProjectedExpenses Money `json:"projectedExpenses"`
	ProjectedSavings  Money `json:"projectedSavings"`

	SavingsRateGoal float64 `json:"savingsRateGoal"`
	SavingsOnTrack  bool    `json:"savingsOnTrack"`

	InvestmentContributions Money `json:"investmentContributions"`
	InvestmentGoal          Money `json:"investmentGoal"`
	InvestmentOnTrack       bool  `json:"investmentOnTrack"`

	NetWorthGrowth NetWorthCompare `json:"netWorthGrowth"`

	PriorYearAvailable bool  `json:"priorYearAvailable"`
	PriorYearIncome    Money `json:"priorYearIncome"`
	PriorYearExpenses  Money `json:"priorYearExpenses"`
}

// Trends is the full output of the trends engine.
type Trends struct {
	Weekly        WeeklyTrend     `json:"weekly"`
	MoM           MonthCompare    `json:"mom"`
	YoY           MonthCompare    `json:"yoy"`
	NetWorthYoY   NetWorthCompare `json:"netWorthYoY"`
	YTD           YTDProgress     `json:"ytd"`
	SeasonalNotes []string        `json:"seasonalNotes,omitempty"`
}

// categoryDeltaThreshold hides noise: category movements at or under this
// magnitude are not reported.
var categoryDeltaThreshold = FromUnits(10)

const categoryDeltaLimit = 5

// ComputeTrends derives all comparisons from the analysis output and the
// stored snapshot history. Snapshots are expected newest-first.
func ComputeTrends(a Analysis, settings NewsletterSettings, snapshots []Snapshot, now time.Time) Trends {
	txns := a.Filtered.Kept

	return Trends{
		Weekly:        computeWeekly(txns, now),
		MoM:           compareMonths(txns, now, monthsAgo(now, 1)),
		YoY:           compareMonths(txns, now, monthsAgo(now, 12)),
		NetWorthYoY:   netWorthAgainst(snapshots, MonthKey(monthsAgo(now, 12)), a.Metrics.NetWorth.Total),
		YTD:           computeYTD(a, settings, snapshots, now),
		SeasonalNotes: seasonalNotes(now),
	}
}

func computeWeekly(txns []ClassifiedTxn, now time.Time) WeeklyTrend {
	weekStart := StartOfWeek(now)
	prevStart := weekStart.AddDate(0, 0, -7)
	historyStart := weekStart.AddDate(0, 0, -7*6)

	w := WeeklyTrend{
		WeekStart:      weekStart,
		CurrentWeek:    trueExpensesInRange(txns, weekStart, now.AddDate(0, 0, 1)),
		PreviousWeek:   trueExpensesInRange(txns, prevStart, weekStart),
		SixWeekAverage: trueExpensesInRange(txns, historyStart, weekStart).DivInt(6),
	}
	w.Change = changeBetween(w.CurrentWeek, w.PreviousWeek)
	return w
}

// compareMonths builds a matched-partial-period comparison between now's
// month and the month containing ref. The comparison window always covers
// the 1st through now's day-of-month, clamped to the shorter month.
func compareMonths(txns []ClassifiedTxn, now, ref time.Time) MonthCompare {
	curFrom, curTo := partialMonthRange(now, now.Day())
	prevFrom, prevTo := partialMonthRange(ref, now.Day())

	curIncome, curExpenses, curByCat, _ := windowTotals(txns, curFrom, curTo)
	prevIncome, prevExpenses, prevByCat, prevCount := windowTotals(txns, prevFrom, prevTo)

	mc := MonthCompare{
		Available:        prevCount > 0,
		Month:            MonthKey(ref),
		CurrentIncome:    curIncome,
		PreviousIncome:   prevIncome,
		CurrentExpenses:  curExpenses,
		PreviousExpenses: prevExpenses,
	}
	if !mc.Available {
		return mc
	}

	mc.IncomeChange = changeBetween(curIncome, prevIncome)
	mc.ExpenseChange = changeBetween(curExpenses, prevExpenses)
	mc.CurrentSavingsRate = savingsRate(curIncome, curExpenses)
	mc.PreviousSavingsRate = savingsRate(prevIncome, prevExpenses)
	mc.SavingsRateDelta = roundPercent(mc.CurrentSavingsRate - mc.PreviousSavingsRate)
	mc.CategoryDeltas = topCategoryDeltas(curByCat, prevByCat)
	return mc
}

// partialMonthRange returns [1st, day-th] of t's month as a half-open
// range, clamping day to the month's length.
func partialMonthRange(t time.Time, day int) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := from.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return from, from.AddDate(0, 0, day)
}

func windowTotals(txns []ClassifiedTxn, from, to time.Time) (income, expenses Money, byCategory map[string]Money, count int) {
	byCategory = make(map[string]Money)
	for _, t := range txns {
		if t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		count++
		if t.Class == ClassIncome {
			income = income.Add(t.Amount)
			continue
		}
		net := netExpense(t)
		expenses = expenses.Add(net)
		byCategory[t.CategoryName] = byCategory[t.CategoryName].Add(net)
	}
	return income, expenses, byCategory, count
}

func savingsRate(income, expenses Money) float64 {
	if income.Cents == 0 {
		return 0
	}
	return roundPercent(income.Sub(expenses).PercentOf(income))
}

func topCategoryDeltas(current, previous map[string]Money) []CategoryDelta {
	names := make(map[string]bool, len(current)+len(previous))
	for n := range current {
		names[n] = true
	}
	for n := range previous {
		names[n] = true
	}

	deltas := make([]CategoryDelta, 0, len(names))
	for name := range names {
		d := CategoryDelta{
			Name:     name,
			Current:  current[name],
			Previous: previous[name],
		}
		d.Change = d.Current.Sub(d.Previous)
		if d.Change.Abs().Cents <= categoryDeltaThreshold.Cents {
			continue
		}
		deltas = append(deltas, d)
	}

	sort.Slice(deltas, func(i, j int) bool {
		ai, aj := deltas[i].Change.Abs().Cents, deltas[j].Change.Abs().Cents
		if ai != aj {
			return ai > aj
		}
		return deltas[i].Name < deltas[j].Name
	})
	if len(deltas) > categoryDeltaLimit {
		deltas = deltas[:categoryDeltaLimit]
	}
	return deltas
}

func netWorthAgainst(snapshots []Snapshot, month string, current Money) NetWorthCompare {
	for _, s := range snapshots {
		if s.Month == month {
			return NetWorthCompare{
				Available: true,
				Previous:  s.NetWorth,
				Change:    changeBetween(current, s.NetWorth),
			}
		}
	}
	return NetWorthCompare{}
}

func computeYTD(a Analysis, settings NewsletterSettings, snapshots []Snapshot, now time.Time) YTDProgress {
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	daysInYear := 365.0
	if yearStart.AddDate(1, 0, 0).Sub(yearStart).Hours() > 365*24 {
		daysInYear = 366
	}

	p := YTDProgress{
		YearProgress:    float64(now.YearDay()) / daysInYear,
		SavingsRateGoal: settings.SavingsRateGoal,
		InvestmentGoal:  settings.InvestmentGoal,
	}

	income, expenses, _, _ := windowTotals(a.Filtered.Kept, yearStart, now.AddDate(0, 0, 1))
	p.Income = income
	p.Expenses = expenses
	p.Savings = income.Sub(expenses)
	p.SavingsRate = savingsRate(income, expenses)

	if p.YearProgress > 0 {
		p.ProjectedIncome = scaleMoney(p.Income, 1/p.YearProgress)
		p.ProjectedExpenses = scaleMoney(p.Expenses, 1/p.YearProgress)
		p.ProjectedSavings = p.ProjectedIncome.Sub(p.ProjectedExpenses)
	}

	p.SavingsOnTrack = p.SavingsRate >= p.SavingsRateGoal

	for _, t := range a.Filtered.Kept {
		if t.Date.Before(yearStart) || t.Class == ClassIncome || t.Bucket != BucketInvestments {
			continue
		}
		p.InvestmentContributions = p.InvestmentContributions.Add(netExpense(t))
	}
	expected := scaleMoney(p.InvestmentGoal, p.YearProgress)
	p.InvestmentOnTrack = float64(p.InvestmentContributions.Cents) >= 0.9*float64(expected.Cents)

	// Net-worth growth against the latest snapshot taken by end of January.
	febFirst := time.Date(now.Year(), 2, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range snapshots {
		if s.WeekEnding.Before(febFirst) {
			p.NetWorthGrowth = NetWorthCompare{
				Available: true,
				Previous:  s.NetWorth,
				Change:    changeBetween(a.Metrics.NetWorth.Total, s.NetWorth),
			}
			break
		}
	}

	// Prior-year performance over the same day range.
	prevStart := yearStart.AddDate(-1, 0, 0)
	prevEnd := prevStart.AddDate(0, 0, now.YearDay())
	pyIncome, pyExpenses, _, pyCount := windowTotals(a.Filtered.Kept, prevStart, prevEnd)
	if pyCount > 0 {
		p.PriorYearAvailable = true
		p.PriorYearIncome = pyIncome
		p.PriorYearExpenses = pyExpenses
	}

	return p
}

func scaleMoney(m Money, factor float64) Money {
	return Money{Cents: int64(float64(m.Cents) * factor)}
}

func seasonalNotes(now time.Time) []string {
	switch now.Month() {
	case time.January:
		return []string{"January statements carry December's holiday spending, so a high fixed-costs month now is usually noise, not a trend."}
	case time.December:
		return []string{"Holiday season: guilt-free spending typically runs 20-40% above average this month. Budget for it rather than fighting it."}
	case time.June, time.July, time.August:
		return []string{"Summer months often show elevated travel and dining spending. Compare against last summer, not last month."}
	default:
		return nil
	}
}
