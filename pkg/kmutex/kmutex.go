// Package kmutex provides string-keyed mutual exclusion. Entries are
// reference counted and removed when the last holder unlocks, so the
// key space does not grow with process lifetime.
package kmutex

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serializes callers per key. The zero value is ready to use.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Lock blocks until the key is held and returns the matching unlock.
// The unlock must be called exactly once.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*entry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
