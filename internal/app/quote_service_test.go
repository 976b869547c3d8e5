package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/mocks"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

var wisdomAndMotivation = []domain.Quote{
	{Text: "A", Category: "Wisdom"},
	{Text: "B", Category: "Motivation"},
}

func TestNewQuoteService_PanicsWithoutStore(t *testing.T) {
	assert.Panics(t, func() {
		NewQuoteService(QuoteServiceConfig{Logger: discardLogger()})
	})
}

func TestQuoteService_Init(t *testing.T) {
	t.Run("fresh store seeds defaults and selects all", func(t *testing.T) {
		svc := newTestService(t, memory.New())

		assert.Equal(t, 3, svc.Len())
		assert.Equal(t, domain.CategoryAll, svc.Categories(context.Background()).Selected)
	})

	t.Run("restores persisted selection", func(t *testing.T) {
		kv := memory.New()
		seedStore(t, kv, wisdomAndMotivation...)
		require.NoError(t, kv.Set(context.Background(), KeySelectedCategory, []byte("Motivation")))

		svc := newTestService(t, kv)

		assert.Equal(t, 2, svc.Len())
		assert.Equal(t, "Motivation", svc.Categories(context.Background()).Selected)
	})

	t.Run("unknown persisted selection is kept", func(t *testing.T) {
		kv := memory.New()
		seedStore(t, kv, wisdomAndMotivation...)
		require.NoError(t, kv.Set(context.Background(), KeySelectedCategory, []byte("Removed")))

		svc := newTestService(t, kv)

		assert.Equal(t, "Removed", svc.Categories(context.Background()).Selected)
	})
}

func TestQuoteService_Add(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		category  string
		wantField string
	}{
		{name: "valid", text: "Carpe diem", category: "Motivation"},
		{name: "trimmed", text: "  Carpe diem ", category: " Motivation", wantField: ""},
		{name: "empty text", text: "", category: "x", wantField: "text"},
		{name: "empty category", text: "x", category: "", wantField: "category"},
		{name: "blank text", text: "   ", category: "x", wantField: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := memory.New()
			svc := newTestService(t, kv)
			before := svc.Len()

			q, err := svc.Add(context.Background(), tt.text, tt.category)

			if tt.wantField != "" {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))

				var validation *domain.ValidationError
				require.ErrorAs(t, err, &validation)
				assert.Equal(t, tt.wantField, validation.Field)
				assert.Equal(t, before, svc.Len())

				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.Quote{Text: "Carpe diem", Category: "Motivation"}, q)
			assert.Equal(t, before+1, svc.Len())
			assert.Contains(t, svc.List(context.Background(), "Motivation"), q)
			assert.Contains(t, storedQuotes(t, kv), q)
		})
	}
}

func TestQuoteService_Add_GrowsByOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Z][a-zA-Z ]{0,15}`).Draw(t, "text")
		category := rapid.StringMatching(`[A-Z][a-z]{0,8}`).Draw(t, "category")

		svc := NewQuoteService(QuoteServiceConfig{Store: memory.New(), Logger: discardLogger()})
		svc.Init(context.Background())
		before := svc.Len()

		q, err := svc.Add(context.Background(), text, category)
		if err != nil {
			t.Fatalf("add(%q, %q): %v", text, category, err)
		}

		if svc.Len() != before+1 {
			t.Fatalf("expected %d quotes, got %d", before+1, svc.Len())
		}

		found := false
		for _, got := range svc.List(context.Background(), q.Category) {
			if got == q {
				found = true
			}
		}

		if !found {
			t.Fatalf("added quote %v not listed under %q", q, q.Category)
		}
	})
}

func TestQuoteService_Add_PersistFailureLeavesStoreUnchanged(t *testing.T) {
	kv := mocks.NewMockKeyValueStore(t)
	kv.EXPECT().Get(mock.Anything, KeyQuotes).Return(nil, domain.ErrNotFound)
	kv.EXPECT().Get(mock.Anything, KeySelectedCategory).Return(nil, domain.ErrNotFound)
	kv.EXPECT().Set(mock.Anything, KeyQuotes, mock.Anything).Return(errors.New("quota exceeded"))

	svc := newTestService(t, kv)

	_, err := svc.Add(context.Background(), "x", "y")

	require.Error(t, err)
	assert.Equal(t, 3, svc.Len())
}

func TestQuoteService_Add_PublishesAndPushes(t *testing.T) {
	publisher := mocks.NewMockEventPublisher(t)
	publisher.EXPECT().Publish(mock.Anything, mock.MatchedBy(func(e ports.Event) bool {
		return e.EventType() == domain.EventQuoteAdded
	})).Return(nil).Once()

	remote := mocks.NewMockRemoteQuoteSource(t)
	pusher := NewPusher(PusherConfig{Remote: remote, Logger: discardLogger()})

	svc := newTestService(t, memory.New(), func(cfg *QuoteServiceConfig) {
		cfg.Publisher = publisher
		cfg.PushOnAdd = true
	})
	svc.ForwardTo(newTestSync(t, remote, svc, func(cfg *SyncServiceConfig) { cfg.Pusher = pusher }))

	_, err := svc.Add(context.Background(), "Carpe diem", "Motivation")
	require.NoError(t, err)

	// Not started, so the push is still queued.
	require.Len(t, pusher.queue, 1)
	assert.Equal(t, []domain.Quote{{Text: "Carpe diem", Category: "Motivation"}}, <-pusher.queue)
}

func TestQuoteService_Add_Forwarding(t *testing.T) {
	tests := []struct {
		name      string
		pushOnAdd bool
		attach    bool
		want      []domain.Quote
	}{
		{name: "forwards when enabled", pushOnAdd: true, attach: true, want: []domain.Quote{{Text: "x", Category: "y"}}},
		{name: "disabled", pushOnAdd: false, attach: true},
		{name: "nothing attached", pushOnAdd: true, attach: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forward := &recordingPusher{}

			svc := newTestService(t, memory.New(), func(cfg *QuoteServiceConfig) { cfg.PushOnAdd = tt.pushOnAdd })
			if tt.attach {
				svc.ForwardTo(forward)
			}

			_, err := svc.Add(context.Background(), "x", "y")
			require.NoError(t, err)
			assert.Equal(t, tt.want, forward.pushed)
		})
	}
}

func TestQuoteService_Add_PublishFailureIsNotFatal(t *testing.T) {
	publisher := mocks.NewMockEventPublisher(t)
	publisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(domain.NewUnavailableError("board", "down"))

	svc := newTestService(t, memory.New(), func(cfg *QuoteServiceConfig) {
		cfg.Publisher = publisher
	})

	_, err := svc.Add(context.Background(), "x", "y")
	require.NoError(t, err)
}

func TestQuoteService_Categories(t *testing.T) {
	kv := memory.New()
	seedStore(t, kv, append(wisdomAndMotivation, domain.Quote{Text: "C", Category: "Wisdom"})...)
	svc := newTestService(t, kv)

	index := svc.Categories(context.Background())

	assert.Equal(t, []string{"all", "Wisdom", "Motivation"}, index.Options)
	assert.Equal(t, "all", index.Selected)
}

func TestQuoteService_SelectCategory(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"existing category", "Wisdom", "Wisdom"},
		{"unknown category is accepted", "Humor", "Humor"},
		{"blank means all", "  ", "all"},
		{"all is case-insensitive", "ALL", "all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := memory.New()
			seedStore(t, kv, wisdomAndMotivation...)
			svc := newTestService(t, kv)

			got, err := svc.SelectCategory(context.Background(), tt.input)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expected, svc.Categories(context.Background()).Selected)

			raw, err := kv.Get(context.Background(), KeySelectedCategory)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(raw))
		})
	}
}

func TestQuoteService_ShowRandom_FilteredOnlyReturnsCategory(t *testing.T) {
	kv := memory.New()
	seedStore(t, kv, wisdomAndMotivation...)
	svc := newTestService(t, kv)

	_, err := svc.SelectCategory(context.Background(), "Motivation")
	require.NoError(t, err)

	for range 100 {
		q, err := svc.ShowRandom(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.Quote{Text: "B", Category: "Motivation"}, q)
	}
}

func TestQuoteService_ShowRandom_UnfilteredCoversPool(t *testing.T) {
	kv := memory.New()
	seedStore(t, kv, wisdomAndMotivation...)
	svc := newTestService(t, kv)

	seen := map[string]bool{}
	for range 200 {
		q, err := svc.ShowRandom(context.Background())
		require.NoError(t, err)
		seen[q.Text] = true
	}

	assert.Equal(t, map[string]bool{"A": true, "B": true}, seen)
}

func TestQuoteService_ShowRandom_EmptyPool(t *testing.T) {
	tests := []struct {
		name     string
		quotes   []domain.Quote
		selected string
	}{
		{"unknown category", wisdomAndMotivation, "Humor"},
		{"empty store", []domain.Quote{}, "all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := memory.New()
			seedStore(t, kv, tt.quotes...)
			svc := newTestService(t, kv)

			_, err := svc.SelectCategory(context.Background(), tt.selected)
			require.NoError(t, err)

			_, err = svc.ShowRandom(context.Background())

			require.Error(t, err)
			assert.True(t, domain.IsEmptyPool(err))

			var pool *domain.EmptyPoolError
			require.ErrorAs(t, err, &pool)
			assert.Equal(t, tt.selected, pool.Category)
		})
	}
}

func TestQuoteService_Current(t *testing.T) {
	t.Run("restores last viewed without re-rolling", func(t *testing.T) {
		kv := memory.New()
		seedStore(t, kv, wisdomAndMotivation...)
		session := memory.New()
		require.NoError(t, session.Set(context.Background(), KeyLastViewedQuote, []byte(`{"text":"Z","category":"Elsewhere"}`)))

		svc := newTestService(t, kv, func(cfg *QuoteServiceConfig) { cfg.Session = session })

		q, err := svc.Current(context.Background())

		require.NoError(t, err)
		assert.Equal(t, domain.Quote{Text: "Z", Category: "Elsewhere"}, q)
	})

	t.Run("falls through to random and records the pick", func(t *testing.T) {
		kv := memory.New()
		seedStore(t, kv, wisdomAndMotivation...)
		session := memory.New()

		svc := newTestService(t, kv, func(cfg *QuoteServiceConfig) { cfg.Session = session })

		first, err := svc.Current(context.Background())
		require.NoError(t, err)

		for range 20 {
			again, err := svc.Current(context.Background())
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}

		_, err = session.Get(context.Background(), KeyLastViewedQuote)
		require.NoError(t, err)
	})

	t.Run("corrupt session record is replaced", func(t *testing.T) {
		kv := memory.New()
		seedStore(t, kv, wisdomAndMotivation...)
		session := memory.New()
		require.NoError(t, session.Set(context.Background(), KeyLastViewedQuote, []byte(`{"text":""}`)))

		svc := newTestService(t, kv, func(cfg *QuoteServiceConfig) { cfg.Session = session })

		q, err := svc.Current(context.Background())

		require.NoError(t, err)
		assert.Contains(t, wisdomAndMotivation, q)
	})
}

func TestQuoteService_Merge(t *testing.T) {
	t.Run("remote wins on matching text", func(t *testing.T) {
		kv := memory.New()
		seedStore(t, kv, wisdomAndMotivation...)
		svc := newTestService(t, kv)

		result, err := svc.Merge(context.Background(), []domain.Quote{{Text: "B", Category: "Server"}})

		require.NoError(t, err)
		assert.Equal(t, domain.ReconcileResult{Updated: 1}, result)
		assert.Equal(t, 2, svc.Len())
		assert.Equal(t, []domain.Quote{{Text: "A", Category: "Wisdom"}, {Text: "B", Category: "Server"}}, storedQuotes(t, kv))
	})

	t.Run("unchanged batch does not persist or publish", func(t *testing.T) {
		kv := mocks.NewMockKeyValueStore(t)
		kv.EXPECT().Get(mock.Anything, KeyQuotes).Return([]byte(`[{"text":"A","category":"Wisdom"}]`), nil)
		kv.EXPECT().Get(mock.Anything, KeySelectedCategory).Return(nil, domain.ErrNotFound)

		publisher := mocks.NewMockEventPublisher(t)

		svc := newTestService(t, kv, func(cfg *QuoteServiceConfig) { cfg.Publisher = publisher })

		result, err := svc.Merge(context.Background(), []domain.Quote{{Text: "A", Category: "Wisdom"}})

		require.NoError(t, err)
		assert.False(t, result.Changed())
	})
}

func TestQuoteService_ConcurrentAddAndMergeLoseNothing(t *testing.T) {
	kv := memory.New()
	seedStore(t, kv)
	svc := newTestService(t, kv)

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Go(func() {
			_, err := svc.Add(context.Background(), string(rune('a'+i)), "Local")
			assert.NoError(t, err)
		})

		wg.Go(func() {
			_, err := svc.Merge(context.Background(), []domain.Quote{{Text: string(rune('A' + i)), Category: "Server"}})
			assert.NoError(t, err)
		})
	}

	wg.Wait()

	assert.Equal(t, 40, svc.Len())
	assert.Len(t, storedQuotes(t, kv), 40)
}
