// Package render turns an analysis into the newsletter: the AI prompt,
// the HTML email, and its plain-text alternative.
package render

import (
	"fmt"
	"strings"
	"time"

	"budgetdigest/internal/core"
)

// EstimateTokens approximates the token count of a prompt. Four characters
// per token is close enough for budget logging.
func EstimateTokens(s string) int {
	return len(s) / 4
}

// BuildPrompt assembles the commentary prompt. All numbers come from the
// analysis; the model is asked to interpret, never to compute.
func BuildPrompt(a core.Analysis, tr core.Trends, now time.Time) string {
	var b strings.Builder

	b.WriteString("You are a calm, encouraging personal finance coach writing the commentary section of a household's weekly money newsletter.\n\n")
	b.WriteString("Write at most 150 words, in exactly three short sections:\n")
	b.WriteString("1. What went well this week.\n")
	b.WriteString("2. What to watch.\n")
	b.WriteString("3. One concrete suggestion for next week.\n\n")
	b.WriteString("Rules: plain sentences, no headers, no Markdown, no bullet characters. ")
	b.WriteString("Use only the numbers provided below; never invent figures. ")
	b.WriteString("Refer to the reader as \"you\".\n\n")

	m := a.Metrics

	b.WriteString("<week>\n")
	fmt.Fprintf(&b, "date: %s\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "spent_this_week: %s\n", tr.Weekly.CurrentWeek)
	fmt.Fprintf(&b, "spent_last_week: %s\n", tr.Weekly.PreviousWeek)
	fmt.Fprintf(&b, "six_week_average: %s\n", tr.Weekly.SixWeekAverage)
	b.WriteString("</week>\n")

	b.WriteString("<position>\n")
	fmt.Fprintf(&b, "net_worth: %s\n", m.NetWorth.Total)
	fmt.Fprintf(&b, "cash_reserves: %s\n", m.CashReserves)
	fmt.Fprintf(&b, "runway_months: %s\n", runwayLabel(m.Runway))
	fmt.Fprintf(&b, "runway_health: %s\n", m.Runway.Health)
	fmt.Fprintf(&b, "burn_trend: %s\n", m.BurnRate.Trend)
	b.WriteString("</position>\n")

	b.WriteString("<spending_plan>\n")
	for _, bucket := range m.CSP.Buckets {
		fmt.Fprintf(&b, "%s: %.1f%% of income (monthly %s)", bucket.Bucket, bucket.Percent, bucket.Monthly)
		if bucket.Suggestion != "" {
			fmt.Fprintf(&b, " [off target: %s]", bucket.Suggestion)
		}
		b.WriteString("\n")
	}
	b.WriteString("</spending_plan>\n")

	if len(m.TopWeekly) > 0 {
		b.WriteString("<top_categories_this_week>\n")
		for _, c := range m.TopWeekly {
			fmt.Fprintf(&b, "%s: %s", c.Name, c.Amount)
			if c.VsAverage != 0 {
				fmt.Fprintf(&b, " (%+.1f%% vs usual week)", c.VsAverage)
			}
			b.WriteString("\n")
		}
		b.WriteString("</top_categories_this_week>\n")
	}

	if tr.MoM.Available {
		b.WriteString("<month_over_month>\n")
		fmt.Fprintf(&b, "expenses_so_far: %s vs %s same days last month (%+.1f%%)\n",
			tr.MoM.CurrentExpenses, tr.MoM.PreviousExpenses, tr.MoM.ExpenseChange.Percent)
		fmt.Fprintf(&b, "savings_rate: %.1f%% now vs %.1f%% last month\n",
			tr.MoM.CurrentSavingsRate, tr.MoM.PreviousSavingsRate)
		b.WriteString("</month_over_month>\n")
	}

	b.WriteString("<year_to_date>\n")
	fmt.Fprintf(&b, "savings_rate: %.1f%% (goal %.1f%%, on_track: %v)\n",
		tr.YTD.SavingsRate, tr.YTD.SavingsRateGoal, tr.YTD.SavingsOnTrack)
	fmt.Fprintf(&b, "investment_contributions: %s (annual goal %s, on_track: %v)\n",
		tr.YTD.InvestmentContributions, tr.YTD.InvestmentGoal, tr.YTD.InvestmentOnTrack)
	b.WriteString("</year_to_date>\n")

	for _, note := range tr.SeasonalNotes {
		fmt.Fprintf(&b, "<seasonal_note>%s</seasonal_note>\n", note)
	}

	return b.String()
}

func runwayLabel(r core.Runway) string {
	if r.NetInfinite {
		return "infinite (income covers expenses)"
	}
	return fmt.Sprintf("%.1f", r.NetMonths)
}
