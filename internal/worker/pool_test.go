package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redisquery-backend/internal/models"
	"redisquery-backend/internal/session"
)

type blockingGenerator struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (g *blockingGenerator) Generate(ctx context.Context, _ models.SchemaContext, _ []models.Message, _ string) (*models.GenerationResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &models.GenerationResult{Command: "GET user:1", Explanation: "Direct key lookup"}, nil
}

func newSession() *session.Session {
	return session.New(0, models.Example{KeyPatterns: "user:{id}", SampleData: "{id:1}", IndexInfo: "none", OtherMetadata: "none"})
}

func begin(t *testing.T, s *session.Session, query string) Job {
	t.Helper()
	turn, ok := s.Begin(query)
	require.True(t, ok)
	return Job{Session: s, Turn: turn}
}

func TestPool_RunsSubmittedTurn(t *testing.T) {
	p := NewPool(&blockingGenerator{}, 2, 4, time.Second)
	p.Start()
	defer p.Stop()

	s := newSession()
	require.NoError(t, p.Submit(begin(t, s, "get user 1")))

	assert.Eventually(t, func() bool { return !s.Snapshot().Loading }, 2*time.Second, 10*time.Millisecond)

	state := s.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "GET user:1", state.Messages[1].Result.Command)
}

func TestPool_FullQueueRejects(t *testing.T) {
	// Not started: nothing drains the queue.
	p := NewPool(&blockingGenerator{}, 1, 1, 0)

	require.NoError(t, p.Submit(begin(t, newSession(), "one")))
	assert.ErrorIs(t, p.Submit(begin(t, newSession(), "two")), ErrQueueFull)
}

func TestPool_StopRollsBackQueuedTurns(t *testing.T) {
	p := NewPool(&blockingGenerator{}, 1, 2, 0)

	s := newSession()
	require.NoError(t, p.Submit(begin(t, s, "get user 1")))
	p.Stop()

	state := s.Snapshot()
	assert.Empty(t, state.Messages)
	assert.False(t, state.Loading)
	assert.Equal(t, ErrStopped.Error(), state.Error)
	assert.Equal(t, "get user 1", state.Input)

	assert.ErrorIs(t, p.Submit(Job{Session: s}), ErrStopped)
	p.Stop()
}

func TestPool_StaleTurnIsDiscarded(t *testing.T) {
	gen := &blockingGenerator{release: make(chan struct{})}
	p := NewPool(gen, 1, 1, 5*time.Second)
	p.Start()
	defer p.Stop()

	s := newSession()
	require.NoError(t, p.Submit(begin(t, s, "get user 1")))

	assert.Eventually(t, func() bool {
		gen.mu.Lock()
		defer gen.mu.Unlock()
		return gen.calls == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Clear()
	close(gen.release)

	// The late result must not reappear in the cleared transcript.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, s.Snapshot().Messages)
}
