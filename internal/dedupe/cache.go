// ABOUTME: TTL cache remembering recently appended message ids
// ABOUTME: Guards append idempotence when deliveries arrive more than once

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the timestamp and list element for a cached id.
type entry struct {
	stamp   time.Time
	element *list.Element
}

// Cache is a thread-safe, TTL-based, size-capped record of recently seen
// message ids. Insertion order is kept in a doubly-linked list so eviction of
// the oldest id is O(1).
type Cache struct {
	mu     sync.Mutex
	seen   map[string]*entry
	order  *list.List // ids in insertion order, oldest at front
	ttl    time.Duration
	cap    int
	done   chan struct{}
	closed bool
}

// New creates a cache holding ids for at most ttl, capped at maxSize entries.
// A background goroutine sweeps expired entries until Close is called.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:  make(map[string]*entry),
		order: list.New(),
		ttl:   ttl,
		cap:   maxSize,
		done:  make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Seen atomically records the id and reports whether it was already present
// and unexpired. The single-call form avoids a check-then-mark race between
// concurrent deliveries of the same id.
func (c *Cache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	dup := c.checkLocked(id)
	c.markLocked(id)
	return dup
}

// Check reports whether the id is present and unexpired, without recording
// it. Pair with Mark when the record should only stick after the guarded
// operation succeeds.
func (c *Cache) Check(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLocked(id)
}

// Mark records the id, evicting the oldest entry when at capacity.
func (c *Cache) Mark(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(id)
}

// checkLocked reports a live entry for id. Must be called with mu held.
func (c *Cache) checkLocked(id string) bool {
	e, ok := c.seen[id]
	return ok && time.Since(e.stamp) < c.ttl
}

// markLocked inserts or refreshes id. Must be called with mu held.
func (c *Cache) markLocked(id string) {
	if e, ok := c.seen[id]; ok {
		e.stamp = time.Now()
		c.order.MoveToBack(e.element)
		return
	}
	if len(c.seen) >= c.cap {
		c.evictOldest()
	}
	c.seen[id] = &entry{stamp: time.Now(), element: c.order.PushBack(id)}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, id)
}

// sweep periodically removes expired entries until the cache is closed.
func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, e := range c.seen {
		if now.Sub(e.stamp) > c.ttl {
			c.order.Remove(e.element)
			delete(c.seen, id)
		}
	}
}

// Close stops the background sweeper. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
