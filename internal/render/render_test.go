package render

import (
	"strings"
	"testing"
	"time"

	"budgetdigest/internal/core"
)

func sampleAnalysis() core.Analysis {
	return core.Analysis{
		Metrics: core.Metrics{
			GeneratedAt:  time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC),
			PeriodMonths: 6,
			NetWorth: core.NetWorth{
				Total: core.FromUnits(205000),
			},
			CashReserves: core.FromUnits(32000),
			Runway: core.Runway{
				NetMonths: 6.4,
				Health:    core.HealthHealthy,
			},
			CSP: core.CSPReport{
				MonthlyIncome: core.FromUnits(5000),
				IsOnTrack:     false,
				Buckets: []core.BucketReport{
					{Bucket: core.BucketFixedCosts, Monthly: core.FromUnits(2500), Percent: 50, OnTarget: true},
					{Bucket: core.BucketInvestments, Monthly: core.FromUnits(500), Percent: 10, OnTarget: true},
					{Bucket: core.BucketSavings, Monthly: core.FromUnits(300), Percent: 6, OnTarget: true},
					{Bucket: core.BucketGuiltFree, Monthly: core.FromUnits(2000), Percent: 40, OnTarget: false,
						Suggestion: "Guilt-Free Spending is at 40.0% of income, above the 35% ceiling; look for cuts here first"},
				},
			},
			BurnRate: core.BurnRate{Trend: core.TrendIncreasing},
			TopWeekly: []core.CategoryTrend{
				{Name: "Groceries", Amount: core.FromUnits(220), Average: core.FromUnits(150), VsAverage: 46.7},
				{Name: "Dining Out", Amount: core.FromUnits(90), Average: core.FromUnits(85), VsAverage: 5.9},
			},
		},
	}
}

func sampleTrends() core.Trends {
	return core.Trends{
		Weekly: core.WeeklyTrend{
			WeekStart:      time.Date(2026, 8, 9, 0, 0, 0, 0, time.UTC),
			CurrentWeek:    core.FromUnits(640),
			PreviousWeek:   core.FromUnits(580),
			SixWeekAverage: core.FromUnits(600),
			Change:         core.Change{Amount: core.FromUnits(60), Percent: 10.3},
		},
		MoM: core.MonthCompare{
			Available:           true,
			CurrentExpenses:     core.FromUnits(1700),
			PreviousExpenses:    core.FromUnits(1600),
			ExpenseChange:       core.Change{Amount: core.FromUnits(100), Percent: 6.3},
			CurrentSavingsRate:  24.0,
			PreviousSavingsRate: 27.5,
		},
		NetWorthYoY: core.NetWorthCompare{
			Available: true,
			Previous:  core.FromUnits(195000),
			Change:    core.Change{Amount: core.FromUnits(10000), Percent: 5.1},
		},
		YTD: core.YTDProgress{
			SavingsRate:             25.5,
			SavingsRateGoal:         25,
			SavingsOnTrack:          true,
			InvestmentContributions: core.FromUnits(14000),
			InvestmentGoal:          core.FromUnits(24000),
			InvestmentOnTrack:       true,
			ProjectedSavings:        core.FromUnits(18200),
		},
		SeasonalNotes: []string{"Summer months often show elevated travel and dining spending. Compare against last summer, not last month."},
	}
}

func TestSubject(t *testing.T) {
	m := sampleAnalysis().Metrics

	cases := []struct {
		trend core.BurnTrend
		emoji string
	}{
		{core.TrendIncreasing, "📈"},
		{core.TrendDecreasing, "📉"},
		{core.TrendStable, "📊"},
	}
	for i, tc := range cases {
		m.BurnRate.Trend = tc.trend
		got := Subject(m)
		if !strings.HasPrefix(got, tc.emoji) {
			t.Fatalf("case %d: subject %q should start with %s", i, got, tc.emoji)
		}
		if !strings.Contains(got, "Aug 15, 2026") {
			t.Fatalf("case %d: subject %q missing date", i, got)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	a := sampleAnalysis()
	tr := sampleTrends()
	now := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)

	prompt := BuildPrompt(a, tr, now)

	for _, want := range []string{
		"<week>", "</week>",
		"spent_this_week: 640.00",
		"net_worth: 205000.00",
		"runway_months: 6.4",
		"burn_trend: increasing",
		"Guilt-Free Spending: 40.0% of income",
		"[off target:",
		"Groceries: 220.00 (+46.7% vs usual week)",
		"savings_rate: 24.0% now vs 27.5% last month",
		"investment_contributions: 14000.00",
		"<seasonal_note>",
		"at most 150 words",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q\n\n%s", want, prompt)
		}
	}

	if EstimateTokens(prompt) != len(prompt)/4 {
		t.Fatal("token estimate should be len/4")
	}
}

func TestFallbackCommentary(t *testing.T) {
	a := sampleAnalysis()
	tr := sampleTrends()

	got := FallbackCommentary(a, tr)
	if !strings.Contains(got, "You spent 640.00 this week, 60.00 more than last week.") {
		t.Fatalf("missing weekly line: %q", got)
	}
	if !strings.Contains(got, "6.4 months") {
		t.Fatalf("missing runway line: %q", got)
	}
	if !strings.Contains(got, "One thing to look at: Guilt-Free Spending") {
		t.Fatalf("missing suggestion line: %q", got)
	}
	if n := len(paragraphs(got)); n != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", n)
	}

	// All buckets on target falls back to the top category.
	for i := range a.Metrics.CSP.Buckets {
		a.Metrics.CSP.Buckets[i].OnTarget = true
		a.Metrics.CSP.Buckets[i].Suggestion = ""
	}
	got = FallbackCommentary(a, tr)
	if !strings.Contains(got, "biggest spending category this week was Groceries") {
		t.Fatalf("missing top category line: %q", got)
	}

	// Infinite runway reads differently.
	a.Metrics.Runway = core.Runway{NetInfinite: true, Health: core.HealthExcellent}
	got = FallbackCommentary(a, tr)
	if !strings.Contains(got, "income currently covers your expenses") {
		t.Fatalf("missing infinite runway line: %q", got)
	}
}

func TestRenderEmail(t *testing.T) {
	a := sampleAnalysis()
	tr := sampleTrends()
	commentary := FallbackCommentary(a, tr)

	email, err := RenderEmail(a, tr, commentary, "https://digest.example.com")
	if err != nil {
		t.Fatalf("render email: %v", err)
	}

	for _, want := range []string{
		"$205,000.00",             // hero net worth
		"6.4 mo",                  // runway
		"$640.00",                 // current week
		"Guilt-Free Spending",     // bucket row
		"above the 35% ceiling",   // suggestion
		"46.7% vs usual",          // alert on Groceries
		"This Week's Take",        // commentary section present
		"https://digest.example.com",
		"+$10,000.00",             // net worth YoY delta
		"last 6 months",
	} {
		if !strings.Contains(email.HTML, want) {
			t.Fatalf("html missing %q", want)
		}
	}

	// Dining Out is near its average and must not carry an alert.
	if strings.Contains(email.HTML, "5.9% vs usual") {
		t.Fatal("alert rendered for a category within threshold")
	}

	if email.Subject != Subject(a.Metrics) {
		t.Fatalf("unexpected subject %q", email.Subject)
	}

	for _, want := range []string{"Net Worth", "$205,000.00", "Spending Plan", "Groceries"} {
		if !strings.Contains(email.Text, want) {
			t.Fatalf("text alternative missing %q\n\n%s", want, email.Text)
		}
	}
	if strings.Contains(email.Text, "<") && strings.Contains(email.Text, ">") {
		if anyTag.MatchString(email.Text) {
			t.Fatal("text alternative still contains markup")
		}
	}
}

func TestRenderEmailWithoutOptionalSections(t *testing.T) {
	a := sampleAnalysis()
	a.Metrics.TopWeekly = nil
	tr := sampleTrends()
	tr.NetWorthYoY = core.NetWorthCompare{}

	email, err := RenderEmail(a, tr, "", "")
	if err != nil {
		t.Fatalf("render email: %v", err)
	}
	if strings.Contains(email.HTML, "Top Categories This Week") {
		t.Fatal("top categories section rendered with no data")
	}
	if strings.Contains(email.HTML, "vs a year ago") {
		t.Fatal("YoY line rendered without history")
	}
	if strings.Contains(email.HTML, "This Week's Take") {
		t.Fatal("commentary section rendered without commentary")
	}
	if strings.Contains(email.HTML, "Open your dashboard") {
		t.Fatal("dashboard link rendered without a frontend URL")
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   core.Money
		want string
	}{
		{core.Money{Cents: 0}, "$0.00"},
		{core.Money{Cents: 950}, "$9.50"},
		{core.Money{Cents: 123456}, "$1,234.56"},
		{core.Money{Cents: 123456789}, "$1,234,567.89"},
		{core.Money{Cents: -500000}, "-$5,000.00"},
	}
	for i, tc := range cases {
		if got := formatMoney(tc.in); got != tc.want {
			t.Fatalf("case %d: formatMoney(%d) = %q, want %q", i, tc.in.Cents, got, tc.want)
		}
	}
}
