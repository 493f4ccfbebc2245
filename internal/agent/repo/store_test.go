package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebot-core/server/internal/agent/model"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessionStore(rdb, ttl), mr
}

func backends(t *testing.T) map[string]model.SessionStore {
	rs, _ := newRedisStore(t, time.Hour)
	return map[string]model.SessionStore{
		"memory": NewMemorySessionStore(),
		"redis":  rs,
	}
}

func availabilityCall(id string) schema.ToolCall {
	return schema.ToolCall{
		ID:   id,
		Type: "function",
		Function: schema.FunctionCall{
			Name:      "check_availability",
			Arguments: `{"date":"2026-06-15","duration":"2"}`,
		},
	}
}

func TestSessionStore_HistoryRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Init(ctx, "CA1"))
			require.NoError(t, store.Init(ctx, "CA1"))

			h, err := store.History(ctx, "CA1")
			require.NoError(t, err)
			assert.Empty(t, h)

			call := availabilityCall("call_1")
			require.NoError(t, store.AppendTurns(ctx, "CA1", schema.UserMessage("is Monday free?")))
			require.NoError(t, store.AppendTurns(ctx, "CA1",
				schema.AssistantMessage("", []schema.ToolCall{call}),
				schema.ToolMessage(`{"success":true}`, "call_1", schema.WithToolName("check_availability")),
			))

			h, err = store.History(ctx, "CA1")
			require.NoError(t, err)
			require.Len(t, h, 3)
			assert.Equal(t, schema.User, h[0].Role)
			assert.Equal(t, "is Monday free?", h[0].Content)
			assert.Equal(t, schema.Assistant, h[1].Role)
			require.Len(t, h[1].ToolCalls, 1)
			assert.Equal(t, "check_availability", h[1].ToolCalls[0].Function.Name)
			assert.Equal(t, schema.Tool, h[2].Role)
			assert.Equal(t, "call_1", h[2].ToolCallID)
		})
	}
}

func TestSessionStore_HistoryIsACopy(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.AppendTurns(ctx, "CA2", schema.UserMessage("hello")))

			h, err := store.History(ctx, "CA2")
			require.NoError(t, err)
			h[0] = schema.UserMessage("tampered")
			_ = append(h, schema.UserMessage("extra"))

			again, err := store.History(ctx, "CA2")
			require.NoError(t, err)
			require.Len(t, again, 1)
			assert.Equal(t, "hello", again[0].Content)
		})
	}
}

func TestSessionStore_TakeAfterTakeReturnsNone(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			calls := []schema.ToolCall{availabilityCall("call_1")}
			require.NoError(t, store.SetPendingToolCalls(ctx, "CA3", calls))

			got, ok, err := store.TakePendingToolCalls(ctx, "CA3")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, calls, got)

			got, ok, err = store.TakePendingToolCalls(ctx, "CA3")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestSessionStore_TakeUnknownCall(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.TakePendingToolCalls(context.Background(), "never-seen")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSessionStore_SetEmptyPendingClears(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SetPendingToolCalls(ctx, "CA4", []schema.ToolCall{availabilityCall("call_1")}))
			require.NoError(t, store.SetPendingToolCalls(ctx, "CA4", nil))

			_, ok, err := store.TakePendingToolCalls(ctx, "CA4")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSessionStore_CallerAttributes(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, ok, err := store.CallerAttribute(ctx, "CA5", model.AttrGender)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.SetCallerAttribute(ctx, "CA5", model.AttrGender, "female"))
			v, ok, err := store.CallerAttribute(ctx, "CA5", model.AttrGender)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "female", v)

			// sessions do not leak into each other
			_, ok, err = store.CallerAttribute(ctx, "CA6", model.AttrGender)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSessionStore_RejectsEmptyCallID(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.ErrorIs(t, store.Init(ctx, ""), ErrInvalidCallID)
			assert.ErrorIs(t, store.AppendTurns(ctx, "", schema.UserMessage("x")), ErrInvalidCallID)
			_, err := store.History(ctx, "")
			assert.ErrorIs(t, err, ErrInvalidCallID)
			_, _, err = store.TakePendingToolCalls(ctx, "")
			assert.ErrorIs(t, err, ErrInvalidCallID)
		})
	}
}

func TestMemorySessionStore_ConcurrentCalls(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("CA%d", i%4)
			for j := 0; j < 50; j++ {
				_ = store.AppendTurns(ctx, id, schema.UserMessage("u"), schema.AssistantMessage("a", nil))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		h, err := store.History(ctx, fmt.Sprintf("CA%d", i))
		require.NoError(t, err)
		require.Len(t, h, 5*50*2)
		// pairs appended together stay adjacent
		for k := 0; k < len(h); k += 2 {
			assert.Equal(t, schema.User, h[k].Role)
			assert.Equal(t, schema.Assistant, h[k+1].Role)
		}
	}
}

func TestMemorySessionStore_Sweep(t *testing.T) {
	store := NewMemorySessionStore()
	clock := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, store.AppendTurns(ctx, "old", schema.UserMessage("hi")))
	clock = clock.Add(45 * time.Minute)
	require.NoError(t, store.AppendTurns(ctx, "fresh", schema.UserMessage("hi")))
	clock = clock.Add(30 * time.Minute)

	assert.Equal(t, 0, store.Sweep(0))
	assert.Equal(t, 1, store.Sweep(time.Hour))
	assert.Equal(t, 1, store.Len())

	h, err := store.History(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestMemorySessionStore_WriteAfterSweepIsNotLost(t *testing.T) {
	store := NewMemorySessionStore()
	clock := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, store.Init(ctx, "CA1"))
	stale := store.session("CA1")
	clock = clock.Add(2 * time.Hour)
	require.Equal(t, 1, store.Sweep(time.Hour))

	// A writer that loaded the session before the sweep must not write into it.
	assert.False(t, store.apply(stale, func(sess *memorySession) {
		sess.history = append(sess.history, schema.UserMessage("lost"))
	}))

	require.NoError(t, store.AppendTurns(ctx, "CA1", schema.UserMessage("kept")))
	h, err := store.History(ctx, "CA1")
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Equal(t, "kept", h[0].Content)
}

func TestRedisSessionStore_SlidingTTL(t *testing.T) {
	store, mr := newRedisStore(t, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.AppendTurns(ctx, "CA7", schema.UserMessage("hi")))
	require.NoError(t, store.SetCallerAttribute(ctx, "CA7", model.AttrGender, "male"))
	assert.Equal(t, 10*time.Minute, mr.TTL("call:CA7:history"))
	assert.Equal(t, 10*time.Minute, mr.TTL("call:CA7:attrs"))

	mr.FastForward(11 * time.Minute)
	h, err := store.History(ctx, "CA7")
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestRedisSessionStore_WrapsRedisErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisSessionStore(rdb, time.Minute)

	err := store.AppendTurns(context.Background(), "CA8", schema.UserMessage("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis operation failed")
}
