package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesense/internal/config"
)

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, s.Set(ctx, "forever", []byte("x"), 0))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))

	now = now.Add(2 * time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = s.Get(ctx, "forever")
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "forever"))
	_, ok, _ = s.Get(ctx, "forever")
	assert.False(t, ok)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	buf[0] = 'z'
	v, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(v))
}

func TestMemoryStore_SweepAndPrefix(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.Prefix = "ts:"
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, s.Set(ctx, "long", []byte("b"), time.Hour))
	require.NoError(t, s.Set(ctx, "pinned", []byte("c"), 0))
	_, namespaced := s.entries["ts:long"]
	assert.True(t, namespaced)
	assert.Equal(t, 3, s.Len())

	now = now.Add(time.Minute)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.Sweep())
	assert.Len(t, s.entries, 2)
	assert.Equal(t, 0, s.Sweep())

	v, ok, err := s.Get(ctx, "long")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", string(v))
}

func TestMemoryStore_JanitorStopsWithContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Janitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	type snap struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	require.NoError(t, SetJSON(ctx, s, "q", snap{Symbol: "BTC-USD", Price: "100"}, time.Minute))

	var got snap
	ok, err := GetJSON(ctx, s, "q", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "BTC-USD", got.Symbol)

	ok, err = GetJSON(ctx, s, "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew_SelectsBackend(t *testing.T) {
	ms, isMem := New(config.RedisConfig{KeyPrefix: "ts:"}).(*MemoryStore)
	require.True(t, isMem)
	assert.Equal(t, "ts:", ms.Prefix)
	rs, isRedis := New(config.RedisConfig{Addr: "127.0.0.1:6379", KeyPrefix: "ts:"}).(*RedisStore)
	require.True(t, isRedis)
	assert.Equal(t, "ts:", rs.Prefix)
	_ = rs.Close()
}
