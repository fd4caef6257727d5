// Package cache provides an in-process TTL cache for read-heavy, slowly
// changing views (task lists, templates, pattern rankings) so repeated
// tool calls within a session don't re-hit SQLite for identical queries.
package cache

import (
	"path"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Kind selects which TTL class a key belongs to.
type Kind int

const (
	// Default covers task lists, dependency graphs, learnings — anything
	// that changes as often as the task engine runs.
	Default Kind = iota
	// Knowledge covers templates, code patterns, and guidelines, which
	// change only through explicit configuration calls.
	Knowledge
)

// Cache wraps github.com/patrickmn/go-cache with spec.md §4.3's two-tier
// TTL policy and a glob-based invalidate_pattern operation.
type Cache struct {
	c            *gocache.Cache
	defaultTTL   time.Duration
	knowledgeTTL time.Duration
}

// New builds a Cache. cleanupInterval controls how often go-cache sweeps
// expired entries in the background; defaultTTL/knowledgeTTL are the two
// tiers spec.md §4.3 describes.
func New(defaultTTL, knowledgeTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{
		c:            gocache.New(defaultTTL, cleanupInterval),
		defaultTTL:   defaultTTL,
		knowledgeTTL: knowledgeTTL,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	return c.c.Get(key)
}

// Set stores value under key with the TTL for its kind.
func (c *Cache) Set(key string, value any, kind Kind) {
	ttl := c.defaultTTL
	if kind == Knowledge {
		ttl = c.knowledgeTTL
	}
	c.c.Set(key, value, ttl)
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.c.Delete(key)
}

// InvalidatePattern removes every key matching a shell glob (path.Match
// syntax, e.g. "task:*" or "story:health:*"). Returns the number of keys
// removed.
func (c *Cache) InvalidatePattern(pattern string) int {
	n := 0
	for key := range c.c.Items() {
		ok, err := path.Match(pattern, key)
		if err != nil {
			// Not a valid glob; fall back to a literal prefix match so
			// callers that pass a plain prefix like "task:" still work.
			if strings.HasPrefix(key, pattern) {
				c.c.Delete(key)
				n++
			}
			continue
		}
		if ok {
			c.c.Delete(key)
			n++
		}
	}
	return n
}

// GetOrSet returns the cached value for key if present, otherwise calls
// compute, caches its result under kind's TTL, and returns it.
func GetOrSet[T any](c *Cache, key string, kind Kind, compute func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, v, kind)
	return v, nil
}

// Flush clears every entry. Used by tests and by a full knowledge-base
// reload.
func (c *Cache) Flush() {
	c.c.Flush()
}
