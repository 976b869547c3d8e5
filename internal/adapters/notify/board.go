// Package notify holds the transient notification region: the latest
// user-facing message, visible until it expires.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 3 * time.Second

// Notice is the message currently on the board.
type Notice struct {
	Message   string    `json:"message"`
	EventType string    `json:"eventType,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// Board implements ports.EventPublisher. Each published notification
// replaces the previous one and restarts the expiry.
type Board struct {
	mu      sync.RWMutex
	current Notice
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// BoardConfig configures a Board.
type BoardConfig struct {
	TTL time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// NewBoard creates an empty notification board.
func NewBoard(cfg BoardConfig) *Board {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Board{
		ttl:    ttl,
		now:    now,
		logger: logger.With(slog.String("component", "notify_board")),
	}
}

// Publish posts the event's message. Events without a user-facing message
// are ignored.
func (b *Board) Publish(ctx context.Context, event ports.Event) error {
	n, ok := event.(ports.Notification)
	if !ok || n.Message() == "" {
		return nil
	}

	notice := Notice{
		Message:   n.Message(),
		EventType: event.EventType(),
		ExpiresAt: b.now().Add(b.ttl),
	}

	b.mu.Lock()
	b.current = notice
	b.mu.Unlock()

	b.logger.DebugContext(ctx, "notification posted",
		slog.String("event_type", notice.EventType),
		slog.Time("expires_at", notice.ExpiresAt),
	)

	return nil
}

// Current returns the visible notification, or false once it has expired.
func (b *Board) Current() (Notice, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.current.Message == "" || !b.now().Before(b.current.ExpiresAt) {
		return Notice{}, false
	}

	return b.current, true
}

// Clear removes the current notification.
func (b *Board) Clear() {
	b.mu.Lock()
	b.current = Notice{}
	b.mu.Unlock()
}
