package domain

import "fmt"

// Event type identifiers, used for routing and as notification keys.
const (
	EventQuoteAdded     = "quote.added"
	EventQuotesImported = "quotes.imported"
	EventQuotesSynced   = "quotes.synced"
)

// QuoteAdded is published after a quote is appended and persisted.
type QuoteAdded struct {
	Quote Quote
}

// EventType implements ports.Event.
func (e QuoteAdded) EventType() string { return EventQuoteAdded }

// Payload implements ports.Event.
func (e QuoteAdded) Payload() any { return e.Quote }

// Message is the user-facing notification text.
func (e QuoteAdded) Message() string { return "Quote added successfully!" }

// QuotesImported is published after an import persisted at least one record.
type QuotesImported struct {
	Imported  int
	Discarded int
}

// EventType implements ports.Event.
func (e QuotesImported) EventType() string { return EventQuotesImported }

// Payload implements ports.Event.
func (e QuotesImported) Payload() any { return e }

// Message is the user-facing notification text.
func (e QuotesImported) Message() string {
	if e.Discarded > 0 {
		return fmt.Sprintf("Quotes imported successfully! (%d imported, %d skipped)", e.Imported, e.Discarded)
	}

	return "Quotes imported successfully!"
}

// QuotesSynced is published when a sync changed the local store.
type QuotesSynced struct {
	Result ReconcileResult
}

// EventType implements ports.Event.
func (e QuotesSynced) EventType() string { return EventQuotesSynced }

// Payload implements ports.Event.
func (e QuotesSynced) Payload() any { return e.Result }

// Message is the user-facing notification text.
func (e QuotesSynced) Message() string { return "Quotes synced with server!" }
