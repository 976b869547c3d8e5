// Package ports declares the contracts between the quote service and the
// storage, remote and notification adapters behind it.
//
// Every method takes a context first, speaks domain types only, and reports
// failures with the domain error taxonomy.
package ports

import "context"

// KeyValueStore is the durable byte store behind the quote list. The
// service keeps three keys in it: the quote list, the selected category and
// the last shown quote.
//
//	raw, err := store.Get(ctx, "quotes")
//	if domain.IsNotFound(err) {
//		// first run: seed the defaults
//	}
type KeyValueStore interface {
	// Get returns the value under key, or domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
}
