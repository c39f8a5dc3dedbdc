package render

import (
	"regexp"
	"strings"
)

var (
	headAndStyle = regexp.MustCompile(`(?s)<(head|style|script)[^>]*>.*?</(head|style|script)>`)
	blockEnd     = regexp.MustCompile(`(?i)</(p|div|tr|h[1-6]|table)>`)
	anyTag       = regexp.MustCompile(`<[^>]*>`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
)

// HTMLToText derives the plain-text alternative from the rendered HTML.
// Block-level closers become line breaks; everything else is stripped.
func HTMLToText(html string) string {
	s := headAndStyle.ReplaceAllString(html, "")
	s = blockEnd.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, " ")

	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&#34;", `"`)
	s = strings.ReplaceAll(s, "&#9650;", "^")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
