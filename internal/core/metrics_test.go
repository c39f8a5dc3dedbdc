package core

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)

func analyze(accounts []Account, txns ...Transaction) Analysis {
	snap := BudgetSnapshot{Accounts: accounts, Transactions: txns}
	return Analyze(snap, DefaultCSPSettings(), testNow, DefaultPeriodMonths)
}

func steadyMonth() []Transaction {
	return []Transaction{
		incomeTxn("2026-08-01", 5000),
		expenseTxn("2026-08-02", "Rent", "Fixed Costs", -2500),
		expenseTxn("2026-08-03", "Index Funds", "Investments", -500),
		expenseTxn("2026-08-04", "Vacation Fund", "Savings", -300),
		expenseTxn("2026-08-05", "Dining", "Guilt-Free Spending", -1200),
	}
}

func bucketByName(r CSPReport, b Bucket) BucketReport {
	for _, br := range r.Buckets {
		if br.Bucket == b {
			return br
		}
	}
	return BucketReport{}
}

func TestEmptyBudget(t *testing.T) {
	a := analyze([]Account{
		{ID: "a1", Name: "Checking", Type: "checking", Balance: FromUnits(1000), OnBudget: true},
	})

	if a.Metrics.NetWorth.Total.Cents != units(1000).Cents {
		t.Fatalf("net worth: got %v want 1000", a.Metrics.NetWorth.Total)
	}
	for _, b := range a.Metrics.CSP.Buckets {
		if !b.Total.IsZero() {
			t.Fatalf("bucket %s should be zero: %v", b.Bucket, b.Total)
		}
	}
	if !a.Metrics.Runway.PureInfinite || !a.Metrics.Runway.NetInfinite {
		t.Fatalf("runway should be infinite with no expenses: %+v", a.Metrics.Runway)
	}
	if a.Metrics.Runway.Health != HealthExcellent {
		t.Fatalf("health: got %s", a.Metrics.Runway.Health)
	}
}

func TestSteadyMonthPercentages(t *testing.T) {
	a := analyze(baseAccounts(), steadyMonth()...)
	csp := a.Metrics.CSP

	wants := map[Bucket]float64{
		BucketFixedCosts:  50,
		BucketInvestments: 10,
		BucketSavings:     6,
		BucketGuiltFree:   24,
	}
	for b, want := range wants {
		if got := bucketByName(csp, b).Percent; got != want {
			t.Fatalf("bucket %s: got %.1f%% want %.1f%%", b, got, want)
		}
	}
	if !csp.IsOnTrack {
		t.Fatalf("steady month should be on track")
	}
	for _, b := range csp.Buckets {
		if b.Suggestion != "" {
			t.Fatalf("no suggestions expected, got %q for %s", b.Suggestion, b.Bucket)
		}
	}
}

func TestOverspendSuggestion(t *testing.T) {
	txns := steadyMonth()
	txns[4] = expenseTxn("2026-08-05", "Dining", "Guilt-Free Spending", -2000)
	a := analyze(baseAccounts(), txns...)
	csp := a.Metrics.CSP

	if got := bucketByName(csp, BucketGuiltFree).Percent; got != 40 {
		t.Fatalf("guiltFree: got %.1f%% want 40", got)
	}
	if csp.IsOnTrack {
		t.Fatalf("overspend should not be on track")
	}
	suggestions := 0
	for _, b := range csp.Buckets {
		if b.Suggestion != "" {
			suggestions++
			if b.Bucket != BucketGuiltFree {
				t.Fatalf("unexpected suggestion for %s: %q", b.Bucket, b.Suggestion)
			}
		}
	}
	if suggestions != 1 {
		t.Fatalf("want exactly one suggestion, got %d", suggestions)
	}
}

func TestRefundInTopCategories(t *testing.T) {
	a := analyze(baseAccounts(),
		incomeTxn("2026-08-01", 5000),
		expenseTxn("2026-08-03", "Groceries", "", -400),
		expenseTxn("2026-08-08", "Groceries", "", 100),
	)

	if len(a.Metrics.TopMonthly) != 1 {
		t.Fatalf("want one top category, got %+v", a.Metrics.TopMonthly)
	}
	top := a.Metrics.TopMonthly[0]
	if top.Name != "Groceries" || top.Amount.Cents != units(300).Cents {
		t.Fatalf("refund not netted in top categories: %+v", top)
	}
}

func TestInvestmentTransfer(t *testing.T) {
	transfer := Transaction{
		Date:              day("2026-08-05"),
		AccountID:         "checking",
		PayeeName:         "Transfer : 401(k)",
		Amount:            units(-1000),
		TransferAccountID: "retire",
	}
	noTransfer := analyze(baseAccounts(),
		incomeTxn("2026-08-01", 5000),
		expenseTxn("2026-08-02", "Rent", "Fixed Costs", -2000),
	)
	withTransfer := analyze(baseAccounts(),
		incomeTxn("2026-08-01", 5000),
		expenseTxn("2026-08-02", "Rent", "Fixed Costs", -2000),
		transfer,
	)

	inv := bucketByName(withTransfer.Metrics.CSP, BucketInvestments)
	if inv.Total.Cents != units(1000).Cents {
		t.Fatalf("investments bucket: got %v want 1000", inv.Total)
	}
	found := false
	for _, tx := range withTransfer.Filtered.Kept {
		if tx.Class == ClassTransferToInvestment && tx.CategoryName == "Transfer: 401(k)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("synthetic transfer category missing")
	}

	// Runway uses true expenses only, so the transfer must not shorten it.
	if withTransfer.Metrics.Runway.AvgExpenses != noTransfer.Metrics.Runway.AvgExpenses {
		t.Fatalf("investment transfer changed runway expenses: %v vs %v",
			withTransfer.Metrics.Runway.AvgExpenses, noTransfer.Metrics.Runway.AvgExpenses)
	}
}

func TestBucketSumIdentity(t *testing.T) {
	a := analyze(baseAccounts(), steadyMonth()...)

	var bucketSum Money
	for _, b := range a.Metrics.CSP.Buckets {
		bucketSum = bucketSum.Add(b.Total)
	}

	var classified Money
	for _, tx := range a.Filtered.Kept {
		if tx.Class == ClassIncome {
			continue
		}
		classified = classified.Add(netExpense(tx))
	}

	if bucketSum != classified {
		t.Fatalf("bucket-sum identity violated: buckets %v, classified %v", bucketSum, classified)
	}
}

func TestNetWorthIdentity(t *testing.T) {
	accounts := []Account{
		{ID: "c", Name: "Checking", Type: "checking", Balance: FromUnits(5000), OnBudget: true},
		{ID: "s", Name: "Savings", Type: "savings", Balance: FromUnits(20000)},
		{ID: "i", Name: "Brokerage", Type: "otherasset", Balance: FromUnits(80000)},
		{ID: "h", Name: "Home Value", Balance: FromUnits(400000)},
		{ID: "m", Name: "Mortgage", Type: "mortgage", Balance: FromUnits(-300000)},
	}
	nw := ComputeNetWorth(ClassifyAccounts(accounts))

	if nw.Debt.IsNegative() {
		t.Fatalf("debt must be a non-negative magnitude: %v", nw.Debt)
	}
	want := nw.Assets.Add(nw.Investments).Add(nw.Savings).Sub(nw.Debt)
	if nw.Total != want {
		t.Fatalf("net-worth identity violated: total %v want %v", nw.Total, want)
	}
	if nw.Total.Cents != units(205000).Cents {
		t.Fatalf("total: got %v want 205000", nw.Total)
	}
}

func TestRunwayMonotonicity(t *testing.T) {
	months := map[string]MonthlyTotals{
		"2026-07": {Income: units(4000), Expenses: units(5000), TrueExpenses: units(5000)},
		"2026-08": {Income: units(4000), Expenses: units(5000), TrueExpenses: units(5000)},
	}

	// More cash never shortens pure runway.
	prev := ComputeRunway(units(1000), months, testNow, 6)
	for _, cash := range []float64{2000, 5000, 50000} {
		r := ComputeRunway(units(cash), months, testNow, 6)
		if r.PureMonths < prev.PureMonths {
			t.Fatalf("pure runway decreased with more cash: %v -> %v", prev.PureMonths, r.PureMonths)
		}
		prev = r
	}

	// A smaller deficit never shortens net runway.
	base := ComputeRunway(units(10000), months, testNow, 6)
	better := map[string]MonthlyTotals{
		"2026-07": {Income: units(4800), Expenses: units(5000), TrueExpenses: units(5000)},
		"2026-08": {Income: units(4800), Expenses: units(5000), TrueExpenses: units(5000)},
	}
	improved := ComputeRunway(units(10000), better, testNow, 6)
	if improved.NetMonths < base.NetMonths {
		t.Fatalf("net runway decreased with higher avg net: %v -> %v", base.NetMonths, improved.NetMonths)
	}
}

func TestRunwayHealthBrackets(t *testing.T) {
	months := func(expenses float64) map[string]MonthlyTotals {
		return map[string]MonthlyTotals{
			"2026-08": {Income: units(0), Expenses: units(expenses), TrueExpenses: units(expenses)},
		}
	}
	cases := []struct {
		cash float64
		want RunwayHealth
	}{
		{2000, HealthCritical},  // 2 months
		{4000, HealthCaution},   // 4 months
		{8000, HealthHealthy},   // 8 months
		{15000, HealthExcellent}, // 15 months
	}
	for i, tc := range cases {
		r := ComputeRunway(units(tc.cash), months(1000), testNow, 6)
		if r.Health != tc.want {
			t.Fatalf("case %d: got %s want %s (net months %v)", i, r.Health, tc.want, r.NetMonths)
		}
	}
}

func TestBurnRateTrend(t *testing.T) {
	months := map[string]MonthlyTotals{
		"2026-03": {Expenses: units(1000), TrueExpenses: units(1000)},
		"2026-04": {Expenses: units(1000), TrueExpenses: units(1000)},
		"2026-05": {Expenses: units(1000), TrueExpenses: units(1000)},
		"2026-06": {Expenses: units(1500), TrueExpenses: units(1500)},
		"2026-07": {Expenses: units(1500), TrueExpenses: units(1500)},
		"2026-08": {Expenses: units(1500), TrueExpenses: units(1500)},
	}
	br := ComputeBurnRate(months, testNow, 6)
	if br.Trend != TrendIncreasing {
		t.Fatalf("trend: got %s want increasing", br.Trend)
	}
	if br.CurrentMonth.Cents != units(1500).Cents {
		t.Fatalf("current month: got %v", br.CurrentMonth)
	}
}

func TestBurnRateMonthEndWindows(t *testing.T) {
	// At the end of a 31-day month the previous three-month window must
	// cover Feb-Apr exactly. A window sliding into May would average in a
	// high month and dilute the 5.5% rise below the 5% trend threshold.
	months := map[string]MonthlyTotals{
		"2026-02": {Expenses: units(1000), TrueExpenses: units(1000)},
		"2026-03": {Expenses: units(1000), TrueExpenses: units(1000)},
		"2026-04": {Expenses: units(1000), TrueExpenses: units(1000)},
		"2026-05": {Expenses: units(1055), TrueExpenses: units(1055)},
		"2026-06": {Expenses: units(1055), TrueExpenses: units(1055)},
		"2026-07": {Expenses: units(1055), TrueExpenses: units(1055)},
	}
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	br := ComputeBurnRate(months, now, 6)
	if br.Trend != TrendIncreasing {
		t.Fatalf("trend: got %s want increasing", br.Trend)
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	snap := BudgetSnapshot{Accounts: baseAccounts(), Transactions: steadyMonth()}
	a1 := Analyze(snap, DefaultCSPSettings(), testNow, DefaultPeriodMonths)
	a2 := Analyze(snap, DefaultCSPSettings(), testNow, DefaultPeriodMonths)

	if a1.Metrics.NetWorth != a2.Metrics.NetWorth || a1.Metrics.Runway != a2.Metrics.Runway {
		t.Fatalf("metrics differ across identical runs")
	}
	if len(a1.Metrics.TopMonthly) != len(a2.Metrics.TopMonthly) {
		t.Fatalf("top categories differ across identical runs")
	}
	for i := range a1.Metrics.TopMonthly {
		if a1.Metrics.TopMonthly[i] != a2.Metrics.TopMonthly[i] {
			t.Fatalf("top category %d differs", i)
		}
	}
}
