package dto

import (
	"time"

	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// AddQuoteRequest is the body of POST /quotes.
type AddQuoteRequest struct {
	Text     string `json:"text"     validate:"notempty"`
	Category string `json:"category" validate:"notempty"`
}

// SelectCategoryRequest is the body of PUT /categories/selected.
// A blank category selects "all".
type SelectCategoryRequest struct {
	Category string `json:"category"`
}

// QuoteResponse is the API representation of a quote.
type QuoteResponse struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// NewQuoteResponse converts a domain quote.
func NewQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{Text: q.Text, Category: q.Category}
}

// ListQuotesResponse is returned by GET /quotes.
type ListQuotesResponse struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Quotes   []QuoteResponse `json:"quotes"`
}

// NewListQuotesResponse converts a filtered list. Quotes is never null.
func NewListQuotesResponse(category string, quotes []domain.Quote) ListQuotesResponse {
	items := make([]QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		items = append(items, NewQuoteResponse(q))
	}

	return ListQuotesResponse{Category: category, Count: len(items), Quotes: items}
}

// CategoriesResponse is the filter selector: "all" first, then each
// distinct category in first-seen order.
type CategoriesResponse struct {
	Options  []string `json:"options"`
	Selected string   `json:"selected"`
}

// NewCategoriesResponse converts the category index.
func NewCategoriesResponse(idx app.CategoryIndex) CategoriesResponse {
	return CategoriesResponse{Options: idx.Options, Selected: idx.Selected}
}

// ImportResponse is returned by POST /quotes/import.
type ImportResponse struct {
	Imported  int    `json:"imported"`
	Discarded int    `json:"discarded"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
}

// NewImportResponse converts an import result; Message matches the notification text.
func NewImportResponse(r app.ImportResult) ImportResponse {
	return ImportResponse{
		Imported:  r.Imported,
		Discarded: r.Discarded,
		Total:     r.Total,
		Message:   domain.QuotesImported{Imported: r.Imported, Discarded: r.Discarded}.Message(),
	}
}

// SyncReportResponse describes one sync run.
type SyncReportResponse struct {
	Fetched  int       `json:"fetched"`
	Added    int       `json:"added"`
	Updated  int       `json:"updated"`
	Changed  bool      `json:"changed"`
	Error    string    `json:"error,omitempty"`
	Finished time.Time `json:"finishedAt"`
}

// NewSyncReportResponse converts a sync report. The error text is exposed
// because sync failures are reported, never raised.
func NewSyncReportResponse(r app.SyncReport) SyncReportResponse {
	resp := SyncReportResponse{
		Fetched:  r.Fetched,
		Added:    r.Added,
		Updated:  r.Updated,
		Changed:  r.Changed(),
		Finished: r.At,
	}

	if r.Err != nil {
		resp.Error = r.Err.Error()
	}

	return resp
}

// SyncStatusResponse is returned by GET /sync/status.
type SyncStatusResponse struct {
	Running bool                `json:"running"`
	Last    *SyncReportResponse `json:"last,omitempty"`
}

// NotificationResponse is the transient message region. Message is empty
// when nothing is showing.
type NotificationResponse struct {
	Message   string     `json:"message"`
	EventType string     `json:"eventType,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
