package acl

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

const (
	postsPath = "/posts"

	// DefaultSentinelCategory tags every quote that came from the remote.
	DefaultSentinelCategory = "Server"
)

// PlaceholderClientConfig contains configuration for the placeholder client.
type PlaceholderClientConfig struct {
	// Client is the HTTP client to use for requests.
	// Its BaseURL should point at the JSONPlaceholder-compatible API.
	Client *clients.Client

	// ServiceName names the remote in errors and health checks.
	ServiceName string

	// SentinelCategory is assigned to fetched quotes. Defaults to "Server".
	SentinelCategory string

	Logger *slog.Logger
}

// PlaceholderClient implements ports.RemoteQuoteSource against a
// JSONPlaceholder-style /posts resource.
type PlaceholderClient struct {
	remote   endpoint
	sentinel string
	logger   *slog.Logger
}

// NewPlaceholderClient creates the remote quote adapter.
// Panics if Client is nil.
func NewPlaceholderClient(cfg PlaceholderClientConfig) *PlaceholderClient {
	if cfg.Client == nil {
		panic("PlaceholderClient: Client is required")
	}

	name := cfg.ServiceName
	if name == "" {
		name = "jsonplaceholder"
	}

	sentinel := strings.TrimSpace(cfg.SentinelCategory)
	if sentinel == "" {
		sentinel = DefaultSentinelCategory
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PlaceholderClient{
		remote:   endpoint{client: cfg.Client, service: name},
		sentinel: sentinel,
		logger:   logger.With(slog.String("component", "placeholder_client")),
	}
}

// postDTO is the external post representation. Only the title is used.
type postDTO struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// newPostDTO is the body sent when pushing a quote.
type newPostDTO struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// FetchQuotes reads up to limit posts and translates them into quotes. A
// non-positive limit fetches whatever the remote returns.
// Implements ports.RemoteQuoteSource.
func (c *PlaceholderClient) FetchQuotes(ctx context.Context, limit int) ([]domain.Quote, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("_limit", strconv.Itoa(limit))
	}

	c.logger.Log(ctx, logging.LevelTrace, "starting request",
		slog.String("path", postsPath),
		slog.Int("limit", limit))

	body, err := c.remote.get(ctx, postsPath, query, "fetch posts")
	if err != nil {
		return nil, err
	}

	posts, err := decodeJSON[[]postDTO](body)
	if err != nil {
		return nil, domain.NewUnavailableError(c.remote.service, err.Error())
	}

	// _limit is only a hint; a remote that ignores it still yields one batch.
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}

	quotes, skipped, err := translateAll(posts, c.translatePost)
	if err != nil {
		return nil, domain.NewUnavailableError(c.remote.service, err.Error())
	}

	c.logger.DebugContext(ctx, "fetched remote quotes",
		slog.Int("posts", len(posts)),
		slog.Int("quotes", len(quotes)),
		slog.Int("skipped", skipped))

	return quotes, nil
}

// translatePost maps a post title to a quote in the sentinel category.
func (c *PlaceholderClient) translatePost(post *postDTO) (domain.Quote, error) {
	return domain.NewQuote(post.Title, c.sentinel)
}

// PushQuote posts a quote to the remote. The response body is ignored.
// Implements ports.RemoteQuoteSource.
func (c *PlaceholderClient) PushQuote(ctx context.Context, q domain.Quote) error {
	body, err := c.remote.post(ctx, postsPath, newPostDTO{Text: q.Text, Category: q.Category}, "push quote")
	if err != nil {
		return err
	}

	_ = body.Close()

	c.logger.Log(ctx, logging.LevelTrace, "pushed quote", slog.String("category", q.Category))

	return nil
}

// Name returns the health check name for this client.
// Implements ports.HealthChecker.
func (c *PlaceholderClient) Name() string {
	return c.remote.service
}

// Check fetches a single post to verify the remote answers.
// Implements ports.HealthChecker.
func (c *PlaceholderClient) Check(ctx context.Context) error {
	body, err := c.remote.get(ctx, postsPath, url.Values{"_limit": {"1"}}, "health check")
	if err != nil {
		return err
	}

	return body.Close()
}
