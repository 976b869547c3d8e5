package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"all", true},
		{"All", true},
		{"ALL", true},
		{"", true},
		{"Wisdom", false},
		{"allies", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsAllCategory(tt.input))
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, CategoryAll, NormalizeCategory("All"))
	assert.Equal(t, CategoryAll, NormalizeCategory("  "))
	assert.Equal(t, "Wisdom", NormalizeCategory(" Wisdom "))
}

func TestCategories(t *testing.T) {
	tests := []struct {
		name     string
		quotes   []Quote
		expected []string
	}{
		{
			name:     "empty store",
			quotes:   nil,
			expected: []string{},
		},
		{
			name: "first-seen order with duplicates removed",
			quotes: []Quote{
				{Text: "a", Category: "Wisdom"},
				{Text: "b", Category: "Motivation"},
				{Text: "c", Category: "Wisdom"},
				{Text: "d", Category: "Server"},
			},
			expected: []string{"Wisdom", "Motivation", "Server"},
		},
		{
			name: "case-sensitive",
			quotes: []Quote{
				{Text: "a", Category: "wisdom"},
				{Text: "b", Category: "Wisdom"},
			},
			expected: []string{"wisdom", "Wisdom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categories(tt.quotes))
		})
	}
}

func TestCategoryOptions(t *testing.T) {
	quotes := []Quote{
		{Text: "A", Category: "Wisdom"},
		{Text: "B", Category: "Motivation"},
	}

	assert.Equal(t, []string{"all", "Wisdom", "Motivation"}, CategoryOptions(quotes))
	assert.Equal(t, []string{"all"}, CategoryOptions(nil))
}

func TestFilterByCategory(t *testing.T) {
	quotes := []Quote{
		{Text: "A", Category: "Wisdom"},
		{Text: "B", Category: "Motivation"},
		{Text: "C", Category: "Wisdom"},
	}

	t.Run("all returns a copy of everything", func(t *testing.T) {
		got := FilterByCategory(quotes, CategoryAll)
		assert.Equal(t, quotes, got)

		got[0].Text = "mutated"
		assert.Equal(t, "A", quotes[0].Text)
	})

	t.Run("named category keeps order", func(t *testing.T) {
		got := FilterByCategory(quotes, "Wisdom")
		assert.Equal(t, []Quote{{Text: "A", Category: "Wisdom"}, {Text: "C", Category: "Wisdom"}}, got)
	})

	t.Run("unknown category is empty, not a fallback", func(t *testing.T) {
		got := FilterByCategory(quotes, "Humor")
		assert.Empty(t, got)
	})
}
