package authcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for deadline tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetUnknownToken(t *testing.T) {
	cache := NewDefault()

	_, ok := cache.Get("never-issued")
	assert.False(t, ok, "unknown token should be absent")
}

func TestPutThenGet(t *testing.T) {
	cache := NewDefault()

	cache.Put("tok-alice", 1)
	cache.Put("tok-bob", 2)

	userID, ok := cache.Get("tok-alice")
	require.True(t, ok)
	assert.Equal(t, int64(1), userID)

	userID, ok = cache.Get("tok-bob")
	require.True(t, ok)
	assert.Equal(t, int64(2), userID)
}

func TestPutOverwrites(t *testing.T) {
	cache := NewDefault()

	cache.Put("tok", 1)
	cache.Put("tok", 2)

	userID, ok := cache.Get("tok")
	require.True(t, ok)
	assert.Equal(t, int64(2), userID)
	assert.Equal(t, 1, cache.Len())
}

func TestWholeCacheClearsAtDeadline(t *testing.T) {
	clock := newFakeClock()
	cache := New(time.Hour, clock.Now)

	cache.Put("early", 1)

	// A token issued most of the way through the interval dies with the
	// early one: expiry is per cache, not per entry.
	clock.Advance(59 * time.Minute)
	cache.Put("late", 2)

	clock.Advance(time.Minute + time.Second)

	_, ok := cache.Get("early")
	assert.False(t, ok, "early token should be gone after the deadline")
	_, ok = cache.Get("late")
	assert.False(t, ok, "late token should die with the rest of the cache")
	assert.Equal(t, 0, cache.Len())
}

func TestDeadlineRestartsAfterClear(t *testing.T) {
	clock := newFakeClock()
	cache := New(time.Hour, clock.Now)

	cache.Put("first", 1)
	clock.Advance(time.Hour + time.Second)

	// First operation past the deadline clears and opens a new interval.
	cache.Put("second", 2)
	clock.Advance(59 * time.Minute)

	userID, ok := cache.Get("second")
	require.True(t, ok, "token issued after the clear should survive the new interval")
	assert.Equal(t, int64(2), userID)
}

func TestPutAlsoTriggersClear(t *testing.T) {
	clock := newFakeClock()
	cache := New(time.Hour, clock.Now)

	cache.Put("old", 1)
	clock.Advance(2 * time.Hour)

	cache.Put("new", 2)
	assert.Equal(t, 1, cache.Len(), "put past the deadline should clear prior entries")

	_, ok := cache.Get("old")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	cache := NewDefault()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := fmt.Sprintf("tok-%d", i)
			cache.Put(token, int64(i))
			userID, ok := cache.Get(token)
			assert.True(t, ok)
			assert.Equal(t, int64(i), userID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 32, cache.Len())
}
