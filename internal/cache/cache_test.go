package cache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/cache"
)

func TestGetSet_RoundTrip(t *testing.T) {
	c := cache.New(time.Minute, time.Minute, time.Minute)
	c.Set("task:1", "value", cache.Default)

	v, ok := c.Get("task:1")
	require.True(t, ok)
	require.Equal(t, "value", v)
}

func TestGet_MissingKey(t *testing.T) {
	c := cache.New(time.Minute, time.Minute, time.Minute)
	_, ok := c.Get("nope")
	require.False(t, ok)
}

func TestKnowledgeTTL_OutlivesDefaultTTL(t *testing.T) {
	c := cache.New(5*time.Millisecond, time.Minute, time.Millisecond)
	c.Set("task:1", "short-lived", cache.Default)
	c.Set("template:1", "long-lived", cache.Knowledge)

	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("task:1")
	require.False(t, ok, "default-tier entry should have expired")
	v, ok := c.Get("template:1")
	require.True(t, ok, "knowledge-tier entry should still be alive")
	require.Equal(t, "long-lived", v)
}

func TestInvalidate_RemovesSingleKey(t *testing.T) {
	c := cache.New(time.Minute, time.Minute, time.Minute)
	c.Set("a", 1, cache.Default)
	c.Set("b", 2, cache.Default)

	c.Invalidate("a")

	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
}

func TestInvalidatePattern_GlobMatch(t *testing.T) {
	c := cache.New(time.Minute, time.Minute, time.Minute)
	c.Set("task:list:backlog", 1, cache.Default)
	c.Set("task:list:done", 2, cache.Default)
	c.Set("story:health", 3, cache.Default)

	n := c.InvalidatePattern("task:list:*")
	require.Equal(t, 2, n)

	_, ok := c.Get("story:health")
	require.True(t, ok)
	_, ok = c.Get("task:list:backlog")
	require.False(t, ok)
}

func TestInvalidatePattern_FallsBackToPrefixOnInvalidGlob(t *testing.T) {
	c := cache.New(time.Minute, time.Minute, time.Minute)
	c.Set("task:[broken", 1, cache.Default)
	c.Set("other", 2, cache.Default)

	// "[" with no closing "]" is an invalid glob pattern; InvalidatePattern
	// falls back to a literal prefix match rather than erroring.
	n := c.InvalidatePattern("task:[broken")
	require.Equal(t, 1, n)
	_, ok := c.Get("other")
	require.True(t, ok)
}

func TestGetOrSet_ComputesOnceThenCaches(t *testing.T) {
	c := cache.New(time.Minute, time.Minute, time.Minute)
	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	v1, err := cache.GetOrSet(c, "k", cache.Default, compute)
	require.NoError(t, err)
	require.Equal(t, 42, v1)

	v2, err := cache.GetOrSet(c, "k", cache.Default, compute)
	require.NoError(t, err)
	require.Equal(t, 42, v2)
	require.Equal(t, 1, calls, "compute must not run again once cached")
}

func TestGetOrSet_PropagatesComputeError(t *testing.T) {
	c := cache.New(time.Minute, time.Minute, time.Minute)
	wantErr := errors.New("db unavailable")

	_, err := cache.GetOrSet(c, "k", cache.Default, func() (int, error) {
		return 0, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	_, ok := c.Get("k")
	require.False(t, ok, "a failed compute must not be cached")
}

func TestFlush_ClearsEverything(t *testing.T) {
	c := cache.New(time.Minute, time.Minute, time.Minute)
	c.Set("a", 1, cache.Default)
	c.Set("b", 2, cache.Knowledge)

	c.Flush()

	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.False(t, ok)
}
