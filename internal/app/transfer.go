package app

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// ExportFilename is the download name offered for exported documents.
const ExportFilename = "quotes.json"

var utf8BOM = []byte("\xef\xbb\xbf")

// ExportDocument renders quotes as a pretty-printed JSON array of
// {text, category} objects. An empty list renders as "[]".
func ExportDocument(quotes []domain.Quote) ([]byte, error) {
	doc, err := json.MarshalIndent(toStored(quotes), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export document: %w", err)
	}

	return doc, nil
}

// ImportDocument is the result of parsing a user-supplied document.
type ImportDocument struct {
	// Quotes holds the valid records in document order.
	Quotes []domain.Quote

	// Discarded counts elements that were not objects or lacked text or category.
	Discarded int

	// Elements is the length of the top-level array.
	Elements int
}

// ParseImportDocument parses doc as a JSON array of {text, category}.
// It returns a FormatError when doc is not JSON or its top level is not an
// array. Invalid elements are dropped and counted, never fatal.
func ParseImportDocument(doc []byte) (ImportDocument, error) {
	doc = bytes.TrimSpace(bytes.TrimPrefix(doc, utf8BOM))

	if len(doc) == 0 {
		return ImportDocument{}, domain.NewFormatError("import", "document is empty", nil)
	}

	if !json.Valid(doc) {
		var probe any
		err := json.Unmarshal(doc, &probe)

		return ImportDocument{}, domain.NewFormatError("import", "not valid JSON", err)
	}

	if doc[0] != '[' {
		return ImportDocument{}, domain.NewFormatError("import", "top level must be an array", nil)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(doc, &elements); err != nil {
		return ImportDocument{}, domain.NewFormatError("import", "top level must be an array", err)
	}

	result := ImportDocument{Quotes: make([]domain.Quote, 0, len(elements)), Elements: len(elements)}

	for _, raw := range elements {
		q, ok := decodeImportRecord(raw)
		if !ok {
			result.Discarded++
			continue
		}

		result.Quotes = append(result.Quotes, q)
	}

	return result, nil
}

func decodeImportRecord(raw json.RawMessage) (domain.Quote, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return domain.Quote{}, false
	}

	var sq storedQuote
	if err := json.Unmarshal(raw, &sq); err != nil {
		return domain.Quote{}, false
	}

	q := domain.Quote{Text: sq.Text, Category: sq.Category}
	if q.Validate() != nil {
		return domain.Quote{}, false
	}

	return q, true
}
