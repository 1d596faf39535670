// Package arena stores graph entries under unique, stable IDs.
//
// Key concepts:
// - Each entry gets a unique ID when stored in the arena
// - IDs are dense and never reused; entries are never removed
// - A canonical key maps to exactly one ID
package arena

import "sync"

// ID is a unique identifier for an entry in the arena
type ID uint32

// Arena is an append-only store of entries indexed by canonical key.
// It is safe for concurrent use.
type Arena[T any] struct {
	index map[string]ID
	items []T
	keys  []string
	mu    sync.RWMutex
}

// New creates an empty arena
func New[T any]() *Arena[T] {
	return &Arena[T]{index: make(map[string]ID)}
}

// Intern returns the entry stored under key, allocating it with alloc when
// absent. The boolean reports whether this call allocated the entry.
func (a *Arena[T]) Intern(key string, alloc func(ID) T) (ID, T, bool) {
	a.mu.RLock()
	if id, ok := a.index[key]; ok {
		item := a.items[id]
		a.mu.RUnlock()
		return id, item, false
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.index[key]; ok {
		return id, a.items[id], false
	}
	id := ID(len(a.items))
	item := alloc(id)
	a.items = append(a.items, item)
	a.keys = append(a.keys, key)
	a.index[key] = id
	return id, item, true
}

// Lookup returns the ID stored under key
func (a *Arena[T]) Lookup(key string) (ID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.index[key]
	return id, ok
}

// Get returns an entry by ID
func (a *Arena[T]) Get(id ID) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(id) >= len(a.items) {
		var zero T
		return zero, false
	}
	return a.items[id], true
}

// Find returns the entry stored under key
func (a *Arena[T]) Find(key string) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return a.items[id], true
}

// Key returns the key an ID was allocated under
func (a *Arena[T]) Key(id ID) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(id) >= len(a.keys) {
		return ""
	}
	return a.keys[id]
}

// Len returns the number of entries
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// All returns a snapshot of every entry in allocation order
func (a *Arena[T]) All() []T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]T, len(a.items))
	copy(out, a.items)
	return out
}
