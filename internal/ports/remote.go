package ports

import (
	"context"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// RemoteQuoteSource is the remote post API the local list syncs with.
// Implementations honor the context deadline, translate the remote shape
// into domain.Quote and report every failure as domain.ErrUnavailable.
type RemoteQuoteSource interface {
	// FetchQuotes returns at most limit quotes in remote order.
	FetchQuotes(ctx context.Context, limit int) ([]domain.Quote, error)

	// PushQuote sends one quote. The remote's answer is discarded.
	PushQuote(ctx context.Context, q domain.Quote) error
}
