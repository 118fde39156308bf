package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr(), Prefix: "smis:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	assert.True(t, mr.Exists("smis:a"))

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	mr.FastForward(2 * time.Minute)

	_, ok, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_DeletePrefixKeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)
	require.NoError(t, mr.Set("foreign", "keep"))

	for _, k := range []string{"dash:1", "dash:2", "user:1"} {
		require.NoError(t, s.Set(ctx, k, []byte("x"), time.Minute))
	}

	require.NoError(t, s.DeletePrefix(ctx, "dash:"))
	assert.False(t, mr.Exists("smis:dash:1"))
	assert.True(t, mr.Exists("smis:user:1"))

	require.NoError(t, s.Clear(ctx))
	assert.False(t, mr.Exists("smis:user:1"))
	assert.True(t, mr.Exists("foreign"))
}

func TestRedisStore_Unreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisStore_StatsCountsOwnPrefixOnly(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)
	require.NoError(t, mr.Set("foreign", "x"))
	require.NoError(t, mr.Set("other:app:1", "x"))

	for _, k := range []string{"dash:1", "dash:2", "user:1"} {
		require.NoError(t, s.Set(ctx, k, []byte("x"), time.Minute))
	}
	_, _, err := s.Get(ctx, "dash:1")
	require.NoError(t, err)

	st := s.Stats()
	assert.Equal(t, "redis", st.Backend)
	assert.Equal(t, int64(3), st.Keys)
	assert.Equal(t, uint64(1), st.Hits)
}
