package core

import (
	"fmt"
	"sort"
	"time"
)

// DefaultPeriodMonths is the history window for runway, buckets, burn rate,
// and category averages.
const DefaultPeriodMonths = 6

// NetWorth is the balance-sheet summary. Debt is a non-negative magnitude
// and Total = Assets + Investments + Savings - Debt.
type NetWorth struct {
	Assets      Money `json:"assets"` // property
	Investments Money `json:"investments"`
	Savings     Money `json:"savings"` // cash + savings accounts
	Debt        Money `json:"debt"`
	Total       Money `json:"total"`
}

// ComputeNetWorth sums balances per classified group.
func ComputeNetWorth(accounts ClassifiedAccounts) NetWorth {
	nw := NetWorth{
		Assets:      sumBalances(accounts.Property),
		Investments: sumBalances(accounts.Investment),
		Savings:     sumBalances(accounts.Cash).Add(sumBalances(accounts.Savings)),
	}
	for _, a := range accounts.Debt {
		nw.Debt = nw.Debt.Add(a.Balance.Abs())
	}
	nw.Total = nw.Assets.Add(nw.Investments).Add(nw.Savings).Sub(nw.Debt)
	return nw
}

// ComputeCashReserves sums cash and savings balances only; investment and
// property balances are not spendable reserves.
func ComputeCashReserves(accounts ClassifiedAccounts) Money {
	return sumBalances(accounts.Cash).Add(sumBalances(accounts.Savings))
}

func sumBalances(accounts []Account) Money {
	var total Money
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// RunwayHealth buckets how long the household could coast on reserves.
type RunwayHealth string

const (
	HealthExcellent RunwayHealth = "excellent"
	HealthHealthy   RunwayHealth = "healthy"
	HealthCaution   RunwayHealth = "caution"
	HealthCritical  RunwayHealth = "critical"
)

// Runway reports how many months cash reserves cover. True expenses only;
// wealth-building outflows never shorten runway.
type Runway struct {
	AvgIncome    Money        `json:"avgIncome"`
	AvgExpenses  Money        `json:"avgExpenses"`
	AvgNet       Money        `json:"avgNet"`
	PureMonths   float64      `json:"pureMonths"`
	PureInfinite bool         `json:"pureInfinite"`
	NetMonths    float64      `json:"netMonths"`
	NetInfinite  bool         `json:"netInfinite"`
	Health       RunwayHealth `json:"health"`
}

// ComputeRunway averages the last periodMonths of true-expense history
// against cash reserves. n is the number of window months with activity,
// never less than one.
func ComputeRunway(cash Money, months map[string]MonthlyTotals, now time.Time, periodMonths int) Runway {
	var r Runway

	var sumIncome, sumExpenses Money
	active := 0
	for _, key := range windowMonthKeys(now, periodMonths) {
		m, ok := months[key]
		if !ok {
			continue
		}
		if m.Income.IsZero() && m.Expenses.IsZero() {
			continue
		}
		sumIncome = sumIncome.Add(m.Income)
		sumExpenses = sumExpenses.Add(m.TrueExpenses)
		active++
	}
	n := active
	if n < 1 {
		n = 1
	}

	r.AvgIncome = sumIncome.DivInt(n)
	r.AvgExpenses = sumExpenses.DivInt(n)
	r.AvgNet = r.AvgIncome.Sub(r.AvgExpenses)

	if r.AvgExpenses.Cents <= 0 {
		r.PureInfinite = true
	} else {
		r.PureMonths = float64(cash.Cents) / float64(r.AvgExpenses.Cents)
	}

	if r.AvgNet.Cents >= 0 {
		r.NetInfinite = true
	} else {
		r.NetMonths = float64(cash.Cents) / float64(-r.AvgNet.Cents)
	}

	switch {
	case r.NetInfinite:
		r.Health = HealthExcellent
	case r.NetMonths < 3:
		r.Health = HealthCritical
	case r.NetMonths < 6:
		r.Health = HealthCaution
	case r.NetMonths < 12:
		r.Health = HealthHealthy
	default:
		r.Health = HealthExcellent
	}

	return r
}

// BucketReport is one Conscious Spending Plan allocation over the window.
type BucketReport struct {
	Bucket     Bucket  `json:"bucket"`
	Total      Money   `json:"total"`
	Monthly    Money   `json:"monthly"`
	Percent    float64 `json:"percent"`
	OnTarget   bool    `json:"onTarget"`
	Suggestion string  `json:"suggestion,omitempty"`
}

// CSPReport is the four-bucket allocation summary.
type CSPReport struct {
	Buckets         []BucketReport `json:"buckets"`
	MonthlyIncome   Money          `json:"monthlyIncome"`
	IsOnTrack       bool           `json:"isOnTrack"`
	ExcludedIncome  Money          `json:"excludedIncome"`
	ExcludedExpense Money          `json:"excludedExpense"`
}

// BucketPercents returns the percentage per bucket, for snapshots.
func (r CSPReport) BucketPercents() map[Bucket]float64 {
	out := make(map[Bucket]float64, len(r.Buckets))
	for _, b := range r.Buckets {
		out[b.Bucket] = b.Percent
	}
	return out
}

// ComputeCSP accumulates expense amounts per resolved bucket over the last
// periodMonths and scores each bucket against its target range. Refund
// netting can drive a bucket negative; reported totals clamp at zero.
func ComputeCSP(filtered FilterResult, now time.Time, periodMonths int) CSPReport {
	window := make(map[string]bool, periodMonths)
	for _, key := range windowMonthKeys(now, periodMonths) {
		window[key] = true
	}

	totals := make(map[Bucket]Money, 4)
	var income Money
	for _, t := range filtered.Kept {
		if !window[MonthKey(t.Date)] {
			continue
		}
		switch t.Class {
		case ClassIncome:
			income = income.Add(t.Amount)
		case ClassRefund:
			totals[t.Bucket] = totals[t.Bucket].Sub(t.Amount)
		default:
			totals[t.Bucket] = totals[t.Bucket].Add(t.Amount.Abs())
		}
	}

	report := CSPReport{
		MonthlyIncome:   income.DivInt(periodMonths),
		IsOnTrack:       true,
		ExcludedIncome:  filtered.ExcludedIncome,
		ExcludedExpense: filtered.ExcludedExpense,
	}

	for _, bucket := range BucketOrder {
		total := totals[bucket].ClampZero()
		monthly := total.DivInt(periodMonths)
		percent := roundPercent(monthly.PercentOf(report.MonthlyIncome))

		br := BucketReport{
			Bucket:  bucket,
			Total:   total,
			Monthly: monthly,
			Percent: percent,
		}
		br.OnTarget, br.Suggestion = scoreBucket(bucket, percent)
		if !br.OnTarget {
			report.IsOnTrack = false
		}
		report.Buckets = append(report.Buckets, br)
	}

	return report
}

// scoreBucket applies the target table: spending buckets must stay at or
// under their max, wealth-building buckets must reach their min.
func scoreBucket(bucket Bucket, percent float64) (bool, string) {
	target := BucketTargets[bucket]
	if IsTrueExpense(bucket) {
		if percent <= target.Max {
			return true, ""
		}
		return false, fmt.Sprintf("%s is at %.1f%% of income, above the %.0f%% ceiling; look for cuts here first", bucket, percent, target.Max)
	}
	if percent >= target.Min {
		return true, ""
	}
	return false, fmt.Sprintf("%s is at %.1f%% of income, below the %.0f%% floor; consider raising automatic contributions", bucket, percent, target.Min)
}

// BurnTrend is the direction of recent spending.
type BurnTrend string

const (
	TrendIncreasing BurnTrend = "increasing"
	TrendDecreasing BurnTrend = "decreasing"
	TrendStable     BurnTrend = "stable"
)

// BurnRate summarizes monthly true-expense history.
type BurnRate struct {
	MonthlyAverage Money     `json:"monthlyAverage"`
	CurrentMonth   Money     `json:"currentMonth"`
	Trend          BurnTrend `json:"trend"`
}

// ComputeBurnRate averages the window and compares the last three calendar
// months against the three before them; a move beyond ±5% is a trend.
func ComputeBurnRate(months map[string]MonthlyTotals, now time.Time, periodMonths int) BurnRate {
	keys := windowMonthKeys(now, periodMonths)

	var sum Money
	active := 0
	for _, key := range keys {
		m := months[key]
		if m.Income.IsZero() && m.Expenses.IsZero() {
			continue
		}
		sum = sum.Add(m.TrueExpenses)
		active++
	}
	if active < 1 {
		active = 1
	}

	br := BurnRate{
		MonthlyAverage: sum.DivInt(active),
		CurrentMonth:   months[MonthKey(now)].TrueExpenses,
		Trend:          TrendStable,
	}

	recent := avgTrueExpenses(months, windowMonthKeys(now, 3))
	previous := avgTrueExpenses(months, windowMonthKeys(monthsAgo(now, 3), 3))
	switch {
	case previous.IsZero():
		if recent.Cents > 0 {
			br.Trend = TrendIncreasing
		}
	default:
		delta := float64(recent.Cents-previous.Cents) / float64(previous.Cents) * 100
		if delta > 5 {
			br.Trend = TrendIncreasing
		} else if delta < -5 {
			br.Trend = TrendDecreasing
		}
	}

	return br
}

func avgTrueExpenses(months map[string]MonthlyTotals, keys []string) Money {
	var sum Money
	for _, key := range keys {
		sum = sum.Add(months[key].TrueExpenses)
	}
	return sum.DivInt(len(keys))
}

// CategoryTrend is a category's spend against its own recent average.
type CategoryTrend struct {
	Name      string  `json:"name"`
	Amount    Money   `json:"amount"`
	Average   Money   `json:"average"`
	VsAverage float64 `json:"vsAverage"` // percent above/below average
}

const topCategoryLimit = 10

// TopCategoriesMonthly ranks current-calendar-month true-expense spending by
// category, annotated with each category's average over the previous
// periodMonths-1 months.
func TopCategoriesMonthly(txns []ClassifiedTxn, now time.Time, periodMonths int) []CategoryTrend {
	currentKey := MonthKey(now)
	history := make(map[string]bool, periodMonths-1)
	for _, key := range windowMonthKeys(monthsAgo(now, 1), periodMonths-1) {
		history[key] = true
	}

	current := make(map[string]Money)
	past := make(map[string]Money)
	for _, t := range txns {
		if t.Class == ClassIncome || !IsTrueExpense(t.Bucket) {
			continue
		}
		key := MonthKey(t.Date)
		switch {
		case key == currentKey:
			current[t.CategoryName] = current[t.CategoryName].Add(netExpense(t))
		case history[key]:
			past[t.CategoryName] = past[t.CategoryName].Add(netExpense(t))
		}
	}

	return rankCategories(current, past, periodMonths-1)
}

// TopCategoriesWeekly ranks the current Sunday-through-now true-expense
// spending by category against a rolling average of the six preceding
// complete Sunday–Saturday weeks.
func TopCategoriesWeekly(txns []ClassifiedTxn, now time.Time) []CategoryTrend {
	weekStart := StartOfWeek(now)
	historyStart := weekStart.AddDate(0, 0, -7*6)

	current := make(map[string]Money)
	past := make(map[string]Money)
	for _, t := range txns {
		if t.Class == ClassIncome || !IsTrueExpense(t.Bucket) {
			continue
		}
		switch {
		case !t.Date.Before(weekStart):
			current[t.CategoryName] = current[t.CategoryName].Add(netExpense(t))
		case !t.Date.Before(historyStart):
			past[t.CategoryName] = past[t.CategoryName].Add(netExpense(t))
		}
	}

	return rankCategories(current, past, 6)
}

// netExpense is the expense magnitude of a transaction: outflows count
// positive, refunds subtract.
func netExpense(t ClassifiedTxn) Money {
	if t.Class == ClassRefund {
		return t.Amount.Neg()
	}
	return t.Amount.Abs()
}

func rankCategories(current, past map[string]Money, historyPeriods int) []CategoryTrend {
	out := make([]CategoryTrend, 0, len(current))
	for name, amount := range current {
		avg := past[name].DivInt(historyPeriods)
		ct := CategoryTrend{Name: name, Amount: amount, Average: avg}
		if avg.Cents > 0 {
			ct.VsAverage = roundPercent(float64(amount.Cents-avg.Cents) / float64(avg.Cents) * 100)
		}
		out = append(out, ct)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topCategoryLimit {
		out = out[:topCategoryLimit]
	}
	return out
}

// Metrics is the full output of the metrics engine.
type Metrics struct {
	GeneratedAt  time.Time `json:"generatedAt"`
	PeriodMonths int       `json:"periodMonths"`

	NetWorth     NetWorth        `json:"netWorth"`
	CashReserves Money           `json:"cashReserves"`
	Runway       Runway          `json:"runway"`
	CSP          CSPReport       `json:"csp"`
	BurnRate     BurnRate        `json:"burnRate"`
	TopMonthly   []CategoryTrend `json:"topMonthly"`
	TopWeekly    []CategoryTrend `json:"topWeekly"`
}

// Analysis carries the intermediate pipeline products alongside the final
// metrics so the trends engine and prompt builder reuse the exact same
// filtered stream; the digest, the preview, and the AI prompt must never
// compute these numbers independently.
type Analysis struct {
	Accounts ClassifiedAccounts
	Filtered FilterResult
	Months   map[string]MonthlyTotals
	Metrics  Metrics
}

// Analyze runs the full analytics pipeline for one budget snapshot. It is
// deterministic: the same snapshot, settings, and clock produce identical
// output.
func Analyze(snap BudgetSnapshot, settings CSPSettings, now time.Time, periodMonths int) Analysis {
	if periodMonths <= 0 {
		periodMonths = DefaultPeriodMonths
	}

	accounts := ClassifyAccounts(snap.Accounts)
	filtered := FilterTransactions(snap, accounts, settings)
	months := AggregateMonthly(filtered.Kept)

	cash := ComputeCashReserves(accounts)
	m := Metrics{
		GeneratedAt:  now,
		PeriodMonths: periodMonths,
		NetWorth:     ComputeNetWorth(accounts),
		CashReserves: cash,
		Runway:       ComputeRunway(cash, months, now, periodMonths),
		CSP:          ComputeCSP(filtered, now, periodMonths),
		BurnRate:     ComputeBurnRate(months, now, periodMonths),
		TopMonthly:   TopCategoriesMonthly(filtered.Kept, now, periodMonths),
		TopWeekly:    TopCategoriesWeekly(filtered.Kept, now),
	}

	return Analysis{
		Accounts: accounts,
		Filtered: filtered,
		Months:   months,
		Metrics:  m,
	}
}

// monthsAgo returns the first of the month n calendar months before t's
// month. Anchoring to the 1st keeps AddDate from normalizing past short
// months, so May 31 minus one month is April, not May.
func monthsAgo(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -n, 0)
}

// windowMonthKeys returns the YYYY-MM keys for the n calendar months ending
// at now's month, ascending.
func windowMonthKeys(now time.Time, n int) []string {
	keys := make([]string, 0, n)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)
	for i := 0; i < n; i++ {
		keys = append(keys, MonthKey(first.AddDate(0, i, 0)))
	}
	return keys
}

// StartOfWeek returns the Sunday 00:00 UTC that begins t's week.
func StartOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -int(day.Weekday()))
}
