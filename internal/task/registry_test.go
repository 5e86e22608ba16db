package task

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	results map[Handle]Result
}

func newMemoryStore() *memoryStore {
	return &memoryStore{results: map[Handle]Result{}}
}

func (m *memoryStore) Save(_ context.Context, h Handle, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[h] = r
	return nil
}

func (m *memoryStore) Load(_ context.Context, h Handle) (Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[h]
	return r, ok, nil
}

func (m *memoryStore) Remove(_ context.Context, h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, h)
	return nil
}

type recordingDispatcher struct {
	jobs []Job
	err  error
}

func (d *recordingDispatcher) Publish(_ context.Context, payload any) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, payload.(Job))
	return nil
}

func TestSubmitThenPollLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	dispatcher := &recordingDispatcher{}
	reg := NewRegistry(store, dispatcher)

	h, err := reg.Submit(ctx, KindSummarize, "doc-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, Handle("summarize:doc-1"), h)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, "doc-1", dispatcher.jobs[0].Subject)
	assert.Equal(t, "alice", dispatcher.jobs[0].Submitter)

	res, err := reg.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)

	require.NoError(t, reg.Complete(ctx, h, "a summary"))
	res, err = reg.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "a summary", res.Value)

	require.NoError(t, reg.Forget(ctx, h))
	res, err = reg.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, res.Status)
}

func TestSubmitDispatchFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	reg := NewRegistry(store, &recordingDispatcher{err: errors.New("broker down")})

	_, err := reg.Submit(ctx, KindSummarize, "doc-1", "alice")
	require.Error(t, err)

	res, err := reg.Poll(ctx, HandleFor(KindSummarize, "doc-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "broker down")
}

func TestFail(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMemoryStore(), &recordingDispatcher{})
	h, err := reg.Submit(ctx, KindSummarize, "doc-2", "bob")
	require.NoError(t, err)

	require.NoError(t, reg.Fail(ctx, h, errors.New("llm timeout")))
	res, err := reg.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "llm timeout", res.Error)
}

func TestPollEmptyHandle(t *testing.T) {
	reg := NewRegistry(newMemoryStore(), &recordingDispatcher{})
	_, err := reg.Poll(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyHandle)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redisv9.NewClient(&redisv9.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewRedisStore(client, time.Minute)
	h := HandleFor(KindSummarize, "redis-test")
	t.Cleanup(func() { _ = store.Remove(ctx, h) })

	_, ok, err := store.Load(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, h, Result{Status: StatusDone, Value: "v"}))
	got, ok, err := store.Load(ctx, h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", got.Value)
}
