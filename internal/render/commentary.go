package render

import (
	"fmt"
	"strings"

	"budgetdigest/internal/core"
)

// FallbackCommentary produces deterministic commentary from the metrics
// when the AI is skipped or unavailable. Same shape as the model output:
// three short paragraphs.
func FallbackCommentary(a core.Analysis, tr core.Trends) string {
	m := a.Metrics
	var parts []string

	switch {
	case tr.Weekly.Change.Amount.IsNegative():
		parts = append(parts, fmt.Sprintf(
			"You spent %s this week, %s less than last week.",
			tr.Weekly.CurrentWeek, tr.Weekly.Change.Amount.Abs()))
	case tr.Weekly.Change.Amount.IsZero():
		parts = append(parts, fmt.Sprintf(
			"You spent %s this week, level with last week.", tr.Weekly.CurrentWeek))
	default:
		parts = append(parts, fmt.Sprintf(
			"You spent %s this week, %s more than last week.",
			tr.Weekly.CurrentWeek, tr.Weekly.Change.Amount))
	}

	switch {
	case m.Runway.NetInfinite:
		parts = append(parts, fmt.Sprintf(
			"Your income currently covers your expenses, and cash reserves stand at %s.",
			m.CashReserves))
	case m.Runway.Health == core.HealthCritical:
		parts = append(parts, fmt.Sprintf(
			"Cash reserves cover %.1f months of net spending, which is below the comfortable range. Rebuilding the buffer should come first.",
			m.Runway.NetMonths))
	default:
		parts = append(parts, fmt.Sprintf(
			"Cash reserves cover %.1f months of net spending (%s).",
			m.Runway.NetMonths, m.Runway.Health))
	}

	if suggestion := firstSuggestion(m.CSP); suggestion != "" {
		parts = append(parts, "One thing to look at: "+suggestion+".")
	} else if len(m.TopWeekly) > 0 {
		top := m.TopWeekly[0]
		parts = append(parts, fmt.Sprintf(
			"Your biggest spending category this week was %s at %s.", top.Name, top.Amount))
	} else {
		parts = append(parts, "Your spending plan is on track across all four buckets. Keep it up.")
	}

	return strings.Join(parts, "\n\n")
}

func firstSuggestion(csp core.CSPReport) string {
	for _, b := range csp.Buckets {
		if b.Suggestion != "" {
			return b.Suggestion
		}
	}
	return ""
}

// Subject builds the email subject line. The emoji tracks the burn trend.
func Subject(m core.Metrics) string {
	emoji := "📊"
	switch m.BurnRate.Trend {
	case core.TrendIncreasing:
		emoji = "📈"
	case core.TrendDecreasing:
		emoji = "📉"
	}
	return fmt.Sprintf("%s Your Money This Week: %s", emoji, m.GeneratedAt.Format("Jan 2, 2006"))
}
