package core

import "strings"

// groupBuckets maps case-folded category group names straight to buckets.
var groupBuckets = map[string]Bucket{
	"fixed costs":   BucketFixedCosts,
	"fixed":         BucketFixedCosts,
	"bills":         BucketFixedCosts,
	"monthly bills": BucketFixedCosts,

	"investments":          BucketInvestments,
	"investing":            BucketInvestments,
	"post tax investments": BucketInvestments,
	"post-tax investments": BucketInvestments,

	"savings":       BucketSavings,
	"saving":        BucketSavings,
	"savings goals": BucketSavings,

	"true expenses":        BucketGuiltFree,
	"guilt free":           BucketGuiltFree,
	"guilt-free":           BucketGuiltFree,
	"guilt-free spending":  BucketGuiltFree,
	"guilt free spending":  BucketGuiltFree,
	"discretionary":        BucketGuiltFree,
	"fun money":            BucketGuiltFree,
	"spending":             BucketGuiltFree,
	"variable expenses":    BucketGuiltFree,
}

// Keyword fallback lists, scanned in a fixed order over the category name.
// Only consulted when UseKeywordFallback is set.
var (
	investKeywords = []string{
		"401k", "401(k)", "ira", "roth", "hsa", "invest", "brokerage",
		"retirement", "stock", "index fund",
	}
	savingsKeywords = []string{
		"saving", "emergency", "rainy day", "goal", "sinking fund",
	}
	fixedKeywords = []string{
		"rent", "mortgage", "utilities", "electric", "water", "internet",
		"phone", "insurance", "subscription",
	}
)

// ResolveBucket maps a category to its spending-plan bucket using the
// priority cascade; the first hit wins:
//
//  1. explicit mapping by category id
//  2. explicit mapping by category name
//  3. group-name lookup table
//  4. keyword scan (opt-in), investments then savings then fixed costs
//  5. guiltFree: anything not explicitly an obligation, investment, or
//     savings goal is discretionary
func (s CSPSettings) ResolveBucket(categoryID, categoryName, groupName string) Bucket {
	if b, ok := s.CategoryMappings[categoryID]; ok && categoryID != "" {
		return b
	}
	if b, ok := s.CategoryMappings[categoryName]; ok && categoryName != "" {
		return b
	}
	if b, ok := groupBuckets[foldName(groupName)]; ok {
		return b
	}
	if s.UseKeywordFallback {
		name := foldName(categoryName)
		switch {
		case containsAny(name, investKeywords):
			return BucketInvestments
		case containsAny(name, savingsKeywords):
			return BucketSavings
		case containsAny(name, fixedKeywords):
			return BucketFixedCosts
		}
	}
	return BucketGuiltFree
}

func foldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
