package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "customer_reviews/internal/adapters/redis"
)

func newCache(t *testing.T) (*miniredis.Miniredis, *redisad.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestCache_SetGetDel(t *testing.T) {
	mr, c := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	var out map[string]any
	hit, err := c.Get(ctx, "customer:1", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "customer:1", map[string]any{"id": 1, "name": "Ada"}, 60))
	hit, err = c.Get(ctx, "customer:1", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Ada", out["name"])

	mr.FastForward(61 * time.Second)
	hit, err = c.Get(ctx, "customer:1", &out)
	require.NoError(t, err)
	assert.False(t, hit, "entry expires after its ttl")

	require.NoError(t, c.Set(ctx, "k", 1, 60))
	require.NoError(t, c.Del(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestCache_IncrReadsBackAsNumber(t *testing.T) {
	_, c := newCache(t)
	ctx := context.Background()

	n, err := c.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var gen int64
	hit, err := c.Get(ctx, "gen", &gen)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(2), gen)
}

func TestCache_ErrorsWhenServerIsGone(t *testing.T) {
	mr, c := newCache(t)
	mr.Close()

	var out any
	_, err := c.Get(context.Background(), "x", &out)
	assert.Error(t, err)
}
