package app

import (
	"math/rand/v2"
	"sync"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// Selector picks uniformly at random from a pool of quotes.
// It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector over src. A nil src uses a randomly seeded PCG.
func NewSelector(src rand.Source) *Selector {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	return &Selector{rng: rand.New(src)}
}

// Pick returns a uniformly chosen quote, or false when the pool is empty.
func (s *Selector) Pick(pool []domain.Quote) (domain.Quote, bool) {
	if len(pool) == 0 {
		return domain.Quote{}, false
	}

	s.mu.Lock()
	i := s.rng.IntN(len(pool))
	s.mu.Unlock()

	return pool[i], true
}
