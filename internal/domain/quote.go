package domain

import "strings"

// Quote is a text/category pair, the only persisted entity.
// Text doubles as the natural key during reconciliation; there is no ID.
type Quote struct {
	// Text is the quotation itself.
	Text string

	// Category groups quotes for filtering (e.g. "Wisdom").
	Category string
}

// NewQuote trims both fields and validates them.
// Returns a ValidationError naming the first empty field.
func NewQuote(text, category string) (Quote, error) {
	q := Quote{
		Text:     strings.TrimSpace(text),
		Category: strings.TrimSpace(category),
	}

	if err := q.Validate(); err != nil {
		return Quote{}, err
	}

	return q, nil
}

// Validate reports whether both fields are present after trimming.
func (q Quote) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("text", "must not be empty")
	}

	if strings.TrimSpace(q.Category) == "" {
		return NewValidationError("category", "must not be empty")
	}

	return nil
}

// Key returns the natural key used to match local and remote records.
// Matching is exact: no case folding or whitespace normalization.
func (q Quote) Key() string {
	return q.Text
}

// DefaultQuotes returns the seed list used when nothing usable is persisted.
func DefaultQuotes() []Quote {
	return []Quote{
		{Text: "Stay hungry, stay foolish.", Category: "Motivation"},
		{Text: "Knowledge is power.", Category: "Wisdom"},
		{Text: "Be yourself; everyone else is already taken.", Category: "Inspiration"},
	}
}
