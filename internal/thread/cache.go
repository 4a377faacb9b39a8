// ABOUTME: Read-through cache for last-known thread records
// ABOUTME: Entries are replaced only after confirmed persisted writes

package thread

import (
	"sync"

	"braid/internal/store"
)

// threadCache is a thread-safe map from thread id to the last-known record.
// Values are cloned on the way in and out so cached state is never shared
// with callers.
type threadCache struct {
	mu      sync.RWMutex
	threads map[string]*store.Thread
}

func newThreadCache() *threadCache {
	return &threadCache{
		threads: make(map[string]*store.Thread),
	}
}

// get returns a copy of the cached thread, if present.
func (c *threadCache) get(id string) (*store.Thread, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.threads[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// put replaces the cache entry for the thread.
func (c *threadCache) put(t *store.Thread) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads[t.ID] = t.Clone()
}

// remove drops the cache entry for the thread id.
func (c *threadCache) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.threads, id)
}
