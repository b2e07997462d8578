// Package authcache maps session tokens to user IDs in memory.
//
// The cache keeps one expiry deadline for the whole map rather than a
// deadline per token. The first operation past the deadline drops every
// entry at once and starts a new interval. A token issued just before the
// deadline is evicted almost immediately while one issued just after lives
// nearly a full interval; the trade buys O(1) operations with no per-entry
// timers and no background sweep. Tokens are never persisted, so a process
// restart also forces every user to log in again.
package authcache

import (
	"sync"
	"time"
)

// DefaultTTL is how long the cache keeps tokens between wholesale clears.
const DefaultTTL = 8 * time.Hour

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]int64
	ttl      time.Duration
	now      func() time.Time
	deadline time.Time
}

// New creates a cache with the given TTL. The now function is the cache's
// clock; pass nil for time.Now.
func New(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries:  make(map[string]int64),
		ttl:      ttl,
		now:      now,
		deadline: now().Add(ttl),
	}
}

// NewDefault creates a cache with DefaultTTL and the system clock.
func NewDefault() *Cache {
	return New(DefaultTTL, nil)
}

// Put records token as belonging to userID, overwriting any previous entry.
func (c *Cache) Put(token string, userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeReset()
	c.entries[token] = userID
}

// Get returns the user ID for token, or false if the token is unknown or the
// cache has been cleared since it was issued.
func (c *Cache) Get(token string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeReset()
	userID, ok := c.entries[token]
	return userID, ok
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeReset()
	return len(c.entries)
}

// maybeReset drops every entry once the deadline has passed and starts a new
// interval. Callers must hold c.mu.
func (c *Cache) maybeReset() {
	if c.now().After(c.deadline) {
		c.entries = make(map[string]int64)
		c.deadline = c.now().Add(c.ttl)
	}
}
