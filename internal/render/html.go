package render

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"budgetdigest/internal/core"
)

//go:embed templates/*.html
var templatesFS embed.FS

// alertThreshold flags a category in the email when its weekly spend runs
// this far above its usual week, in percent.
const alertThreshold = 20.0

// Email is a fully rendered newsletter.
type Email struct {
	Subject string
	HTML    string
	Text    string
}

// Data is everything the newsletter template needs.
type Data struct {
	Subject     string
	GeneratedAt time.Time
	Metrics     core.Metrics
	Trends      core.Trends
	Commentary  string
	FrontendURL string
}

var newsletterTmpl = template.Must(template.New("newsletter.html").
	Funcs(template.FuncMap{
		"money":       formatMoney,
		"signedMoney": formatSignedMoney,
		"pct":         formatPercent,
		"runway":      formatRunway,
		"paragraphs":  paragraphs,
		"alert": func(c core.CategoryTrend) bool {
			return c.VsAverage > alertThreshold
		},
	}).
	ParseFS(templatesFS, "templates/newsletter.html"))

// RenderEmail produces the subject, HTML body, and plain-text alternative
// for one analysis.
func RenderEmail(a core.Analysis, tr core.Trends, commentary, frontendURL string) (Email, error) {
	data := Data{
		Subject:     Subject(a.Metrics),
		GeneratedAt: a.Metrics.GeneratedAt,
		Metrics:     a.Metrics,
		Trends:      tr,
		Commentary:  commentary,
		FrontendURL: frontendURL,
	}

	var b strings.Builder
	if err := newsletterTmpl.Execute(&b, data); err != nil {
		return Email{}, fmt.Errorf("render newsletter: %w", err)
	}
	html := b.String()

	return Email{
		Subject: data.Subject,
		HTML:    html,
		Text:    HTMLToText(html),
	}, nil
}

func formatMoney(m core.Money) string {
	sign := ""
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%s.%02d", sign, groupThousands(cents/100), cents%100)
}

func formatSignedMoney(m core.Money) string {
	if m.Cents >= 0 {
		return "+" + formatMoney(m)
	}
	return formatMoney(m)
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

func formatRunway(r core.Runway) string {
	if r.NetInfinite {
		return "∞"
	}
	return fmt.Sprintf("%.1f mo", r.NetMonths)
}

func paragraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
