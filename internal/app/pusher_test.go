package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/mocks"
)

func receiveResult(t *testing.T, p *Pusher) PushResult {
	t.Helper()

	select {
	case r := <-p.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push result")
		return PushResult{}
	}
}

func TestNewPusher_PanicsWithoutRemote(t *testing.T) {
	assert.Panics(t, func() {
		NewPusher(PusherConfig{})
	})
}

func TestPusher_EnqueueDeliversResults(t *testing.T) {
	ok := domain.Quote{Text: "ok", Category: "x"}
	bad := domain.Quote{Text: "bad", Category: "x"}

	remote := mocks.NewMockRemoteQuoteSource(t)
	remote.EXPECT().PushQuote(mock.Anything, ok).Return(nil).Once()
	remote.EXPECT().PushQuote(mock.Anything, bad).Return(domain.NewUnavailableError("placeholder-api", "500")).Once()

	p := NewPusher(PusherConfig{Remote: remote, Workers: 1, Logger: discardLogger()})
	p.Start(context.Background())
	defer p.Stop()

	require.True(t, p.Enqueue(ok))
	require.True(t, p.Enqueue(bad))

	first := receiveResult(t, p)
	second := receiveResult(t, p)

	assert.Equal(t, ok, first.Quote)
	require.NoError(t, first.Err)

	assert.Equal(t, bad, second.Quote)
	assert.True(t, domain.IsUnavailable(second.Err))
}

func TestPusher_QueueFullDropsAndReports(t *testing.T) {
	remote := mocks.NewMockRemoteQuoteSource(t)
	p := NewPusher(PusherConfig{Remote: remote, QueueSize: 1, Logger: discardLogger()})

	q := domain.Quote{Text: "a", Category: "x"}

	require.True(t, p.Enqueue(q))
	assert.False(t, p.Enqueue(q))

	r := receiveResult(t, p)
	assert.ErrorIs(t, r.Err, ErrPushQueueFull)
}

func TestPusher_EnqueueAfterStop(t *testing.T) {
	p := NewPusher(PusherConfig{Remote: mocks.NewMockRemoteQuoteSource(t), Logger: discardLogger()})
	p.Stop()
	p.Stop()

	assert.False(t, p.Enqueue(domain.Quote{Text: "a", Category: "x"}))

	r := receiveResult(t, p)
	assert.ErrorIs(t, r.Err, ErrPusherStopped)
}

func TestPusher_StopDrainsQueue(t *testing.T) {
	var pushed atomic.Int32

	remote := mocks.NewMockRemoteQuoteSource(t)
	remote.EXPECT().PushQuote(mock.Anything, mock.Anything).RunAndReturn(func(context.Context, domain.Quote) error {
		pushed.Add(1)
		return nil
	}).Times(3)

	p := NewPusher(PusherConfig{Remote: remote, Workers: 2, Logger: discardLogger()})
	require.True(t, p.EnqueueAll([]domain.Quote{
		{Text: "a", Category: "x"},
		{Text: "b", Category: "x"},
		{Text: "c", Category: "x"},
	}))

	p.Start(context.Background())
	p.Stop()

	assert.Equal(t, int32(3), pushed.Load())
}

func TestPusher_PushAllKeepsOrderAndPartialFailures(t *testing.T) {
	quotes := []domain.Quote{
		{Text: "a", Category: "x"},
		{Text: "b", Category: "x"},
		{Text: "c", Category: "x"},
	}

	remote := mocks.NewMockRemoteQuoteSource(t)
	remote.EXPECT().PushQuote(mock.Anything, quotes[0]).Return(nil)
	remote.EXPECT().PushQuote(mock.Anything, quotes[1]).Return(errors.New("boom"))
	remote.EXPECT().PushQuote(mock.Anything, quotes[2]).Return(nil)

	p := NewPusher(PusherConfig{Remote: remote, Workers: 3, Logger: discardLogger()})

	results := p.PushAll(context.Background(), quotes)

	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, quotes[i], r.Quote)
	}

	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
}

func TestPusher_PushHonorsTimeout(t *testing.T) {
	remote := mocks.NewMockRemoteQuoteSource(t)
	remote.EXPECT().PushQuote(mock.Anything, mock.Anything).RunAndReturn(func(ctx context.Context, _ domain.Quote) error {
		<-ctx.Done()
		return ctx.Err()
	})

	p := NewPusher(PusherConfig{Remote: remote, Timeout: 20 * time.Millisecond, Logger: discardLogger()})

	results := p.PushAll(context.Background(), []domain.Quote{{Text: "slow", Category: "x"}})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}
