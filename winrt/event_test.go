package winrt

import (
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
)

func counter(n *atomic.Int32, hr HResult) *IUnknown {
	return NewDelegate(testIID, func([]uintptr) HResult {
		n.Add(1)
		return hr
	})
}

func raise(e *Event) error {
	return e.Call(func(h *IInspectable) error {
		return InvokeDelegate(h)
	})
}

func TestEventAddRemove(t *testing.T) {
	before := LiveObjects()
	var a, b atomic.Int32
	da, db := counter(&a, S_OK), counter(&b, S_OK)

	var e Event
	ta, err := e.Add(da)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	tb, _ := e.Add(db)
	if ta == tb {
		t.Fatal("tokens are not unique")
	}
	da.Release()
	db.Release()

	if err := raise(&e); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if a.Load() != 1 || b.Load() != 1 {
		t.Fatalf("calls a=%d b=%d", a.Load(), b.Load())
	}

	if !e.Remove(ta) {
		t.Fatal("Remove returned false")
	}
	if e.Remove(ta) {
		t.Error("second Remove returned true")
	}
	if err := raise(&e); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if a.Load() != 1 || b.Load() != 2 {
		t.Errorf("calls a=%d b=%d", a.Load(), b.Load())
	}

	e.Clear()
	if e.Len() != 0 {
		t.Errorf("Len = %d after Clear", e.Len())
	}
	if LiveObjects() != before {
		t.Errorf("handlers leaked: %d live, want %d", LiveObjects(), before)
	}
}

func TestEventDropsDisconnected(t *testing.T) {
	var ok, gone, bad atomic.Int32
	var e Event
	for _, d := range []*IUnknown{
		counter(&ok, S_OK),
		counter(&gone, RPC_E_DISCONNECTED),
		counter(&bad, E_ACCESSDENIED),
	} {
		if _, err := e.Add(d); err != nil {
			t.Fatalf("Add: %v", err)
		}
		d.Release()
	}
	defer e.Clear()

	err := raise(&e)
	if !stderrors.Is(err, &CallError{Code: E_ACCESSDENIED}) {
		t.Errorf("Call error = %v", err)
	}
	if stderrors.Is(err, &CallError{Code: RPC_E_DISCONNECTED}) {
		t.Error("disconnected failure was reported")
	}
	if e.Len() != 2 {
		t.Fatalf("Len = %d, want 2", e.Len())
	}

	_ = raise(&e)
	if gone.Load() != 1 || ok.Load() != 2 || bad.Load() != 2 {
		t.Errorf("calls ok=%d gone=%d bad=%d", ok.Load(), gone.Load(), bad.Load())
	}
}

func TestEventNilHandler(t *testing.T) {
	var e Event
	if _, err := e.Add(nil); !stderrors.Is(err, &CallError{Code: E_INVALIDARG}) {
		t.Errorf("Add(nil) = %v", err)
	}
}

func TestEventConcurrent(t *testing.T) {
	var calls atomic.Int32
	var e Event
	defer e.Clear()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d := counter(&calls, S_OK)
				tok, err := e.Add(d)
				d.Release()
				if err != nil {
					t.Error(err)
					return
				}
				_ = raise(&e)
				e.Remove(tok)
			}
		}()
	}
	wg.Wait()

	if e.Len() != 0 {
		t.Errorf("Len = %d", e.Len())
	}
	if calls.Load() < 400 {
		t.Errorf("calls = %d, want at least 400", calls.Load())
	}
}
