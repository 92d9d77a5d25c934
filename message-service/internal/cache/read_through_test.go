package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisResponseCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisResponseCache(client, "message")
}

type countingCompute struct {
	calls atomic.Int32
	value any
}

func (c *countingCompute) fn(context.Context) (any, error) {
	c.calls.Add(1)
	return c.value, nil
}

func TestLoadReadThrough(t *testing.T) {
	mr, store := newRedisStore(t)
	views := NewViewCache(store, time.Minute)
	compute := &countingCompute{value: map[string]any{"messages": []string{"a", "b"}}}

	first, err := views.Load(t.Context(), ViewMessages, "u1", compute.fn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":["a","b"]}`, string(first))

	assert.True(t, mr.Exists("message:messages:u1"))
	assert.Equal(t, time.Minute, mr.TTL("message:messages:u1"))

	second, err := views.Load(t.Context(), ViewMessages, "u1", compute.fn)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), compute.calls.Load())
}

func TestLoadRecomputesAfterTTL(t *testing.T) {
	mr, store := newRedisStore(t)
	views := NewViewCache(store, DefaultTTL)
	compute := &countingCompute{value: []int{1}}

	_, err := views.Load(t.Context(), ViewThread, "root", compute.fn)
	require.NoError(t, err)

	mr.FastForward(DefaultTTL + time.Second)

	_, err = views.Load(t.Context(), ViewThread, "root", compute.fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), compute.calls.Load())
}

func TestInvalidateDeletesKeys(t *testing.T) {
	mr, store := newRedisStore(t)
	views := NewViewCache(store, time.Minute)
	compute := &countingCompute{value: "x"}

	for _, owner := range []string{"a", "b"} {
		_, err := views.Load(t.Context(), ViewConversations, owner, compute.fn)
		require.NoError(t, err)
		_, err = views.Load(t.Context(), ViewMessages, owner, compute.fn)
		require.NoError(t, err)
	}
	_, err := views.Load(t.Context(), ViewThread, "r1", compute.fn)
	require.NoError(t, err)

	views.Invalidate(t.Context(), append(UserViews("a", "", "a"), ThreadViews("r1")...)...)

	assert.False(t, mr.Exists("message:messages:a"))
	assert.False(t, mr.Exists("message:conversations:a"))
	assert.False(t, mr.Exists("message:thread:r1"))
	assert.True(t, mr.Exists("message:messages:b"))
	assert.True(t, mr.Exists("message:conversations:b"))
}

func TestLoadFallsThroughWhenStoreIsDown(t *testing.T) {
	mr, store := newRedisStore(t)
	views := NewViewCache(store, time.Minute)
	mr.Close()

	compute := &countingCompute{value: []string{"direct"}}
	payload, err := views.Load(t.Context(), ViewMessages, "u1", compute.fn)
	require.NoError(t, err)
	assert.JSONEq(t, `["direct"]`, string(payload))

	// Invalidation against a dead store must not panic or block.
	views.Invalidate(t.Context(), UserViews("u1")...)
}

func TestLoadPropagatesComputeError(t *testing.T) {
	mr, store := newRedisStore(t)
	views := NewViewCache(store, time.Minute)
	boom := errors.New("db down")

	_, err := views.Load(t.Context(), ViewThread, "r", func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("message:thread:r"))
}

func TestLoadCollapsesConcurrentMisses(t *testing.T) {
	_, store := newRedisStore(t)
	views := NewViewCache(store, time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	compute := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = views.Load(context.Background(), ViewMessages, "hot", compute)
	}()
	<-started
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = views.Load(context.Background(), ViewMessages, "hot", compute)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, `"shared"`, string(r))
	}
}

func TestLoadSurvivesFirstCallerCancellation(t *testing.T) {
	mr, store := newRedisStore(t)
	views := NewViewCache(store, time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		close(started)
		select {
		case <-release:
			return "thread", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := views.Load(firstCtx, ViewThread, "r1", compute)
		firstErr <- err
	}()
	<-started

	second := make(chan []byte, 1)
	go func() {
		payload, err := views.Load(context.Background(), ViewThread, "r1", compute)
		assert.NoError(t, err)
		second <- payload
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	select {
	case payload := <-second:
		assert.Equal(t, `"thread"`, string(payload))
	case <-time.After(5 * time.Second):
		t.Fatal("waiting caller never got the shared result")
	}
	assert.True(t, mr.Exists("message:thread:r1"))
}

func TestLoadSkipsStoreWhenInvalidatedMidCompute(t *testing.T) {
	mr, store := newRedisStore(t)
	views := NewViewCache(store, time.Minute)

	payload, err := views.Load(t.Context(), ViewMessages, "u1", func(ctx context.Context) (any, error) {
		views.Invalidate(ctx, UserViews("u1")...)
		return "pre-commit snapshot", nil
	})
	require.NoError(t, err)
	assert.Equal(t, `"pre-commit snapshot"`, string(payload))
	assert.False(t, mr.Exists("message:messages:u1"))
}

func TestNopCache(t *testing.T) {
	views := NewViewCache(NewNopCache("message"), 0)
	compute := &countingCompute{value: 1}

	for i := 0; i < 3; i++ {
		_, err := views.Load(t.Context(), ViewMessages, "u", compute.fn)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), compute.calls.Load())
	assert.Equal(t, "message:thread:r", NewNopCache("message").BuildKey(ViewThread, "r"))
	assert.NoError(t, views.Close())
}
