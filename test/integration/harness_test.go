//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/adapters/clients/acl"
	httpadapter "github.com/jsamuelsen/quote-sync/internal/adapters/http"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/adapters/notify"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// placeholderPost mirrors a JSONPlaceholder /posts element.
type placeholderPost struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// fakePlaceholder is an in-process JSONPlaceholder. GET /posts honors
// _limit; POST /posts records the body and answers 201 like the real API.
type fakePlaceholder struct {
	*httptest.Server

	mu       sync.Mutex
	posts    []placeholderPost
	pushed   []map[string]string
	gets     int
	failures int  // the next N requests answer 503
	down     bool // every request answers 503
	headers  http.Header
}

func newFakePlaceholder(t *testing.T, titles ...string) *fakePlaceholder {
	t.Helper()

	f := &fakePlaceholder{}
	f.SetTitles(titles...)
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)

	return f
}

func (f *fakePlaceholder) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.headers = r.Header.Clone()

	if f.down || f.failures > 0 {
		if f.failures > 0 {
			f.failures--
		}

		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	if r.URL.Path != "/posts" {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))

		return
	}

	switch r.Method {
	case http.MethodGet:
		f.gets++

		posts := f.posts
		if limit, err := strconv.Atoi(r.URL.Query().Get("_limit")); err == nil && limit < len(posts) {
			posts = posts[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(posts)

	case http.MethodPost:
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.pushed = append(f.pushed, body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":101}`))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SetTitles replaces the served posts.
func (f *fakePlaceholder) SetTitles(titles ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.posts = make([]placeholderPost, len(titles))
	for i, title := range titles {
		f.posts[i] = placeholderPost{ID: i + 1, UserID: 1, Title: title, Body: "ignored"}
	}
}

// SetDown makes every request fail until cleared.
func (f *fakePlaceholder) SetDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.down = down
}

// FailNext makes the next n requests fail.
func (f *fakePlaceholder) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures = n
}

// Pushed returns the bodies received on POST /posts.
func (f *fakePlaceholder) Pushed() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]map[string]string(nil), f.pushed...)
}

// Gets returns the number of successful GET /posts requests.
func (f *fakePlaceholder) Gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.gets
}

// LastHeaders returns the headers of the most recent request.
func (f *fakePlaceholder) LastHeaders() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.headers
}

// remoteClientConfig keeps retries and the breaker fast enough for tests.
func remoteClientConfig(baseURL string) *clients.Config {
	return &clients.Config{
		BaseURL:     baseURL,
		ServiceName: "jsonplaceholder",
		Timeout:     2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   5,
			Timeout:       100 * time.Millisecond,
			HalfOpenLimit: 1,
		},
		Logger: discardLogger(),
	}
}

func newPlaceholderClient(t *testing.T, cfg *clients.Config) *acl.PlaceholderClient {
	t.Helper()

	client, err := clients.New(cfg)
	require.NoError(t, err)

	return acl.NewPlaceholderClient(acl.PlaceholderClientConfig{
		Client:      client,
		ServiceName: cfg.ServiceName,
		Logger:      discardLogger(),
	})
}

// appOptions tunes newTestApp.
type appOptions struct {
	dbPath      string // empty opens an in-memory database
	pushOnAdd   bool
	pushImports bool
	now         func() time.Time
}

// testApp is the service wired the way cmd/service wires it, minus the
// listener and the scheduler.
type testApp struct {
	Engine *gin.Engine
	Store  *sqlite.KV
	Remote *fakePlaceholder
	Quotes *app.QuoteService
	Sync   *app.SyncService
	Pusher *app.Pusher
	Board  *notify.Board
}

func newTestApp(t *testing.T, remote *fakePlaceholder, opts appOptions) *testApp {
	t.Helper()

	ctx := context.Background()

	var (
		store *sqlite.KV
		err   error
	)

	if opts.dbPath == "" {
		store, err = sqlite.OpenMemory(ctx)
	} else {
		store, err = sqlite.Open(ctx, sqlite.Config{Path: opts.dbPath})
	}

	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	placeholder := newPlaceholderClient(t, remoteClientConfig(remote.URL))

	board := notify.NewBoard(notify.BoardConfig{TTL: 3 * time.Second, Now: opts.now, Logger: discardLogger()})

	pusher := app.NewPusher(app.PusherConfig{
		Remote:  placeholder,
		Workers: 2,
		Timeout: time.Second,
		Logger:  discardLogger(),
	})
	pusher.Start(ctx)
	t.Cleanup(pusher.Stop)

	quotes := app.NewQuoteService(app.QuoteServiceConfig{
		Store:       store,
		Session:     memory.New(),
		Publisher:   board,
		PushOnAdd:   opts.pushOnAdd,
		PushImports: opts.pushImports,
		Selector:    app.NewSelector(rand.NewPCG(1, 2)),
		Logger:      discardLogger(),
	})
	quotes.Init(ctx)

	syncSvc := app.NewSyncService(app.SyncServiceConfig{
		Remote:    placeholder,
		Quotes:    quotes,
		Pusher:    pusher,
		BatchSize: 3,
		Timeout:   time.Second,
		Logger:    discardLogger(),
	})
	quotes.ForwardTo(syncSvc)

	registry := ports.NewHealthRegistry()
	require.NoError(t, registry.Register(store))
	require.NoError(t, registry.RegisterOptional(placeholder))

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		Logger:        discardLogger(),
		AppConfig:     &config.AppConfig{Name: "quote-sync"},
		HealthHandler: handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "none", "now")),
		QuoteHandler: handlers.NewQuoteHandler(handlers.QuoteHandlerConfig{
			Quotes: quotes,
			Sync:   syncSvc,
			Board:  board,
		}),
		Timeout: 5 * time.Second,
	})

	return &testApp{
		Engine: engine,
		Store:  store,
		Remote: remote,
		Quotes: quotes,
		Sync:   syncSvc,
		Pusher: pusher,
		Board:  board,
	}
}
