package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type row struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type countingObserver struct {
	mu           sync.Mutex
	hits, misses int
}

func (o *countingObserver) ObserveCache(_ string, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func newTestCache(opts ...Option) *Cache {
	return New(NewMemory(), append([]Option{WithLogger(zap.NewNop())}, opts...)...)
}

func TestFetch_CachesResult(t *testing.T) {
	obs := &countingObserver{}
	c := newTestCache(WithObserver(obs))
	ctx := context.Background()
	key := Key{Resource: "permissions", URL: "/permissions?action=read"}

	var calls int
	fn := func(context.Context) ([]row, error) {
		calls++
		return []row{{ID: 1, Name: "user_read"}}, nil
	}

	first, err := Fetch(ctx, c, key, fn)
	require.NoError(t, err)
	second, err := Fetch(ctx, c, key, fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)

	cached, ok := Lookup[[]row](ctx, c, key)
	require.True(t, ok)
	assert.Equal(t, "user_read", cached[0].Name)
}

func TestFetch_KeyEmbedsURL(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	var calls int
	fn := func(context.Context) ([]row, error) {
		calls++
		return nil, nil
	}
	_, err := Fetch(ctx, c, Key{Resource: "permissions", URL: "/permissions"}, fn)
	require.NoError(t, err)
	_, err = Fetch(ctx, c, Key{Resource: "permissions", URL: "/permissions?name=x"}, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetch_ErrorIsNotCached(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	key := Key{Resource: "groups", URL: "/groups"}
	boom := errors.New("boom")

	_, err := Fetch(ctx, c, key, func(context.Context) ([]row, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	_, ok := Lookup[[]row](ctx, c, key)
	assert.False(t, ok)
}

func TestFetch_SharesInFlightCall(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	key := Key{Resource: "groups", URL: "/groups"}

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(context.Context) ([]row, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []row{{ID: 7}}, nil
	}

	var wg sync.WaitGroup
	results := make([][]row, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = Fetch(ctx, c, key, fn)
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = Fetch(ctx, c, key, fn)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, results[0], results[1])
}

func TestFetch_InvalidatedFlightDoesNotRepopulate(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	key := Key{Resource: "permissions", URL: "/permissions"}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan []row, 1)
	go func() {
		v, _ := Fetch(ctx, c, key, func(context.Context) ([]row, error) {
			close(started)
			<-release
			return []row{{ID: 1, Name: "stale"}}, nil
		})
		done <- v
	}()

	<-started
	require.NoError(t, c.Invalidate(ctx, "permissions"))

	fresh, err := Fetch(ctx, c, key, func(context.Context) ([]row, error) {
		return []row{{ID: 2, Name: "fresh"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", fresh[0].Name)

	close(release)
	stale := <-done
	assert.Equal(t, "stale", stale[0].Name)

	cached, ok := Lookup[[]row](ctx, c, key)
	require.True(t, ok)
	assert.Equal(t, "fresh", cached[0].Name)
}

func TestInvalidate_OnlyTouchesResource(t *testing.T) {
	store := NewMemory()
	c := New(store)
	ctx := context.Background()

	load := func(context.Context) ([]row, error) { return []row{}, nil }
	_, _ = Fetch(ctx, c, Key{Resource: "permissions", URL: "/permissions"}, load)
	_, _ = Fetch(ctx, c, Key{Resource: "permissions", URL: "/permissions?action=read"}, load)
	_, _ = Fetch(ctx, c, Key{Resource: "groups", URL: "/groups"}, load)
	require.Equal(t, 3, store.Len())

	require.NoError(t, c.Invalidate(ctx, "permissions"))
	assert.Equal(t, 1, store.Len())
	_, ok := Lookup[[]row](ctx, c, Key{Resource: "groups", URL: "/groups"})
	assert.True(t, ok)
}

func TestFetch_DetachesFromCallerCancellation(t *testing.T) {
	c := newTestCache()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := Fetch(ctx, c, Key{Resource: "groups", URL: "/groups"}, func(ctx context.Context) ([]row, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []row{{ID: 3}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, v, 1)
}

func TestFetch_OwnersNeverShareEntries(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	alice := Key{Resource: "permissions", Owner: Owner("token-a"), URL: "/permissions"}
	bob := Key{Resource: "permissions", Owner: Owner("token-b"), URL: "/permissions"}

	var calls int
	fn := func(context.Context) ([]row, error) {
		calls++
		return []row{{ID: int64(calls)}}, nil
	}
	a, err := Fetch(ctx, c, alice, fn)
	require.NoError(t, err)
	b, err := Fetch(ctx, c, bob, fn)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, alice.String(), "token-a")
}

func TestInvalidate_DropsEveryOwner(t *testing.T) {
	store := NewMemory()
	c := New(store)
	ctx := context.Background()

	load := func(context.Context) ([]row, error) { return []row{}, nil }
	_, _ = Fetch(ctx, c, Key{Resource: "permissions", Owner: Owner("a"), URL: "/permissions"}, load)
	_, _ = Fetch(ctx, c, Key{Resource: "permissions", Owner: Owner("b"), URL: "/permissions"}, load)
	require.Equal(t, 2, store.Len())

	require.NoError(t, c.Invalidate(ctx, "permissions"))
	assert.Equal(t, 0, store.Len())
}

type flakyStore struct {
	*Memory
	mu   sync.Mutex
	down bool
}

func (s *flakyStore) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func (s *flakyStore) DeletePrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	down := s.down
	s.mu.Unlock()
	if down {
		return errors.New("redis down")
	}
	return s.Memory.DeletePrefix(ctx, prefix)
}

func TestInvalidate_FailureKeepsStaleEntriesOut(t *testing.T) {
	store := &flakyStore{Memory: NewMemory()}
	c := New(store)
	ctx := context.Background()
	key := Key{Resource: "permissions", URL: "/permissions"}

	_, err := Fetch(ctx, c, key, func(context.Context) ([]row, error) {
		return []row{{ID: 1}, {ID: 2}}, nil
	})
	require.NoError(t, err)

	store.setDown(true)
	require.Error(t, c.Invalidate(ctx, "permissions"))

	_, ok := Lookup[[]row](ctx, c, key)
	assert.False(t, ok, "entry from before the failed invalidation must not be served")

	var calls int
	fresh := func(context.Context) ([]row, error) {
		calls++
		return []row{{ID: 1}}, nil
	}
	v, err := Fetch(ctx, c, key, fresh)
	require.NoError(t, err)
	assert.Len(t, v, 1)
	_, err = Fetch(ctx, c, key, fresh)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "nothing is cached while the invalidation is pending")

	store.setDown(false)
	_, ok = Lookup[[]row](ctx, c, key)
	assert.False(t, ok, "retried delete removed the old entry")
	_, err = Fetch(ctx, c, key, fresh)
	require.NoError(t, err)
	cached, ok := Lookup[[]row](ctx, c, key)
	require.True(t, ok)
	assert.Len(t, cached, 1)
}

// blockingSet holds the first Set until release is closed.
type blockingSet struct {
	*Memory
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *blockingSet) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return s.Memory.Set(ctx, key, value, ttl)
}

func TestInvalidate_WaitsForWriteInProgress(t *testing.T) {
	store := &blockingSet{Memory: NewMemory(), started: make(chan struct{}), release: make(chan struct{})}
	c := New(store)
	ctx := context.Background()
	key := Key{Resource: "permissions", URL: "/permissions"}

	fetched := make(chan struct{})
	go func() {
		_, _ = Fetch(ctx, c, key, func(context.Context) ([]row, error) {
			return []row{{ID: 1, Name: "stale"}}, nil
		})
		close(fetched)
	}()
	<-store.started

	invalidated := make(chan error, 1)
	go func() { invalidated <- c.Invalidate(ctx, "permissions") }()
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	require.NoError(t, <-invalidated)
	<-fetched
	_, ok := Lookup[[]row](ctx, c, key)
	assert.False(t, ok, "write racing an invalidation must not survive it")
}
