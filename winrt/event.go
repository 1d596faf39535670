package winrt

import (
	stderrors "errors"
	"sync"
	"sync/atomic"
)

// EventToken identifies a registered handler
type EventToken int64

type eventHandler struct {
	ref   *IInspectable
	token EventToken
	users atomic.Int32
}

// acquire pins the handler for one invocation; it fails once the handler
// has been removed and released.
func (h *eventHandler) acquire() bool {
	for {
		n := h.users.Load()
		if n <= 0 {
			return false
		}
		if h.users.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (h *eventHandler) done() {
	if h.users.Add(-1) == 0 {
		h.ref.Release()
	}
}

// Event is an event source for Go-implemented objects. The event holds its
// own reference to every handler and passes that reference to Call. Add and
// Remove copy the handler list and swap it in, so raising the event never
// waits on a concurrent change.
type Event struct {
	handlers []*eventHandler
	next     EventToken
	change   sync.Mutex
	swap     sync.Mutex
}

func (e *Event) snapshot() []*eventHandler {
	e.swap.Lock()
	defer e.swap.Unlock()
	return e.handlers
}

func (e *Event) store(list []*eventHandler) {
	e.swap.Lock()
	e.handlers = list
	e.swap.Unlock()
}

// Add registers handler and returns its token. The caller keeps its own
// reference.
func (e *Event) Add(handler Object) (EventToken, error) {
	ref := AddRef(handler)
	if ref == nil {
		return 0, &CallError{Code: E_INVALIDARG, Message: "nil event handler"}
	}

	e.change.Lock()
	defer e.change.Unlock()

	e.next++
	h := &eventHandler{ref: ref, token: e.next}
	h.users.Store(1)

	cur := e.snapshot()
	list := make([]*eventHandler, len(cur), len(cur)+1)
	copy(list, cur)
	e.store(append(list, h))
	return h.token, nil
}

// Remove unregisters the handler with token; unknown tokens are ignored
func (e *Event) Remove(token EventToken) bool {
	e.change.Lock()
	cur := e.snapshot()
	var removed *eventHandler
	list := make([]*eventHandler, 0, len(cur))
	for _, h := range cur {
		if h.token == token && removed == nil {
			removed = h
			continue
		}
		list = append(list, h)
	}
	if removed != nil {
		e.store(list)
	}
	e.change.Unlock()

	if removed == nil {
		return false
	}
	removed.done()
	return true
}

// Call invokes fn for every handler registered when Call starts. Handlers
// whose invocation reports a disconnected client are removed. A failing
// handler does not stop the others; their failures are joined into the
// returned error, which callers raising events for native code may drop.
func (e *Event) Call(fn func(handler *IInspectable) error) error {
	var errs []error
	for _, h := range e.snapshot() {
		if !h.acquire() {
			continue
		}
		err := fn(h.ref)
		h.done()
		if err == nil {
			continue
		}
		if disconnected(err) {
			e.Remove(h.token)
			continue
		}
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

// Len returns the number of registered handlers
func (e *Event) Len() int {
	return len(e.snapshot())
}

// Clear removes every handler
func (e *Event) Clear() {
	e.change.Lock()
	cur := e.snapshot()
	e.store(nil)
	e.change.Unlock()

	for _, h := range cur {
		h.done()
	}
}

func disconnected(err error) bool {
	switch HResultOf(err) {
	case RPC_E_DISCONNECTED, JSCRIPT_E_CANTEXECUTE, RPC_E_SERVER_UNAVAILABLE:
		return true
	}
	return false
}
