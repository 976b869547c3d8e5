// Package memory provides a process-lifetime key-value store.
// It backs the session-scoped record, which survives requests but not a restart.
package memory

import (
	"context"
	"sync"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// KV implements ports.KeyValueStore over a map. Safe for concurrent use.
type KV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty store.
func New() *KV {
	return &KV{data: make(map[string][]byte)}
}

// Get returns a copy of the value under key, or domain.ErrNotFound.
func (s *KV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, domain.NewNotFoundError(key, "")
	}

	return clone(value), nil
}

// Set stores a copy of value under key.
func (s *KV) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = clone(value)

	return nil
}

// Delete removes key.
func (s *KV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

// Len returns the number of keys.
func (s *KV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)

	return out
}
