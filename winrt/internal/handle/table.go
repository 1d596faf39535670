// Package handle provides a table of opaque non-zero handles.
//
// The runtime uses it to back HSTRING handles on platforms without the
// native string API. Handle 0 is reserved for the null handle.
package handle

import (
	"sync"
)

// Handle is an opaque reference to a value in a Table
type Handle uint32

// EventType identifies a table lifecycle event
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event is a lifecycle notification
type Event struct {
	Value  any
	Handle Handle
	Type   EventType
}

// Observer receives lifecycle notifications
type Observer interface {
	OnHandleEvent(Event)
}

type entry struct {
	value any
	valid bool
}

// Table stores values behind handles, reusing freed slots
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
}

// New creates an empty table
func New() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Insert stores a value and returns its handle
func (t *Table) Insert(value any) Handle {
	t.mu.Lock()
	e := entry{value: value, valid: true}
	var h Handle
	if n := len(t.freeList); n > 0 {
		h = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
	} else {
		t.entries = append(t.entries, e)
		h = Handle(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Value: value})
	return h
}

// Get retrieves the value behind a handle
func (t *Table) Get(h Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := int(h) - 1
	if idx >= len(t.entries) || !t.entries[idx].valid {
		return nil, false
	}
	return t.entries[idx].value, true
}

// Remove drops a handle and returns its value
func (t *Table) Remove(h Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}

	t.mu.Lock()
	idx := int(h) - 1
	if idx >= len(t.entries) || !t.entries[idx].valid {
		t.mu.Unlock()
		return nil, false
	}
	value := t.entries[idx].value
	t.entries[idx] = entry{}
	t.freeList = append(t.freeList, h)
	t.mu.Unlock()

	t.notify(Event{Type: EventDropped, Handle: h, Value: value})
	return value, true
}

// Len returns the number of live handles
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// Subscribe adds an observer for lifecycle events
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}
