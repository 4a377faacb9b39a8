// ABOUTME: Per-thread mutual exclusion for read-modify-write operations
// ABOUTME: Entries are reference-counted so idle keys do not accumulate

package thread

import "sync"

// lockEntry is a mutex with a reference count so the registry can drop
// entries once no operation holds or waits on them.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes mutating operations per key (thread id). Operations
// on different keys proceed concurrently.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// lock acquires the mutex for key and returns the matching unlock function.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
