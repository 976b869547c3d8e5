package domain

import "strings"

// CategoryAll is the synthetic category that selects every quote.
const CategoryAll = "all"

// IsAllCategory reports whether category means "no filter".
// Blank input and any casing of "all" qualify, so selections persisted as
// "All" keep working.
func IsAllCategory(category string) bool {
	return category == "" || strings.EqualFold(category, CategoryAll)
}

// NormalizeCategory maps every spelling of the unfiltered selection onto
// CategoryAll and trims everything else.
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if IsAllCategory(category) {
		return CategoryAll
	}

	return category
}

// Categories returns the distinct categories of quotes in first-seen order.
func Categories(quotes []Quote) []string {
	seen := make(map[string]struct{}, len(quotes))
	categories := make([]string, 0, len(quotes))

	for _, q := range quotes {
		if _, ok := seen[q.Category]; ok {
			continue
		}

		seen[q.Category] = struct{}{}
		categories = append(categories, q.Category)
	}

	return categories
}

// CategoryOptions returns Categories prefixed with CategoryAll, the list a
// category selector offers.
func CategoryOptions(quotes []Quote) []string {
	return append([]string{CategoryAll}, Categories(quotes)...)
}

// FilterByCategory returns the quotes matching category, preserving order.
// The unfiltered selection returns a copy of every quote. A category with
// no matches yields an empty slice, never the full list.
func FilterByCategory(quotes []Quote, category string) []Quote {
	if IsAllCategory(category) {
		return append([]Quote(nil), quotes...)
	}

	filtered := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Category == category {
			filtered = append(filtered, q)
		}
	}

	return filtered
}
