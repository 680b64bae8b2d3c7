package discovery

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache holds the process-wide discovery result. A cached Result is shared
// and must be treated as read-only.
type Cache struct {
	mu         sync.RWMutex
	result     *Result
	generation uint64
	group      singleflight.Group
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the cached result, if any.
func (c *Cache) Get() (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result, c.result != nil
}

// Set stores r unconditionally.
func (c *Cache) Set(r *Result) {
	c.mu.Lock()
	c.result = r
	c.mu.Unlock()
}

// Reset clears the base URL and models together and invalidates any
// computation started before the reset.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.result = nil
	c.generation++
	c.mu.Unlock()
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// setIfGeneration stores r only when no Reset happened since gen was read.
func (c *Cache) setIfGeneration(gen uint64, r *Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.result = r
	return true
}

func (c *Cache) flightKey(gen uint64) string {
	return "discover:" + strconv.FormatUint(gen, 10)
}
