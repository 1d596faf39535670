package arena

import (
	"fmt"
	"sync"
	"testing"
)

func TestInternAllocatesOnce(t *testing.T) {
	a := New[string]()

	calls := 0
	alloc := func(id ID) string {
		calls++
		return fmt.Sprintf("item-%d", id)
	}

	id1, v1, created := a.Intern("a", alloc)
	if !created || id1 != 0 || v1 != "item-0" {
		t.Fatalf("first intern = %d %q %v", id1, v1, created)
	}
	id2, v2, created := a.Intern("a", alloc)
	if created || id2 != id1 || v2 != v1 {
		t.Fatalf("second intern = %d %q %v", id2, v2, created)
	}
	if calls != 1 {
		t.Errorf("alloc called %d times", calls)
	}

	id3, _, _ := a.Intern("b", alloc)
	if id3 != 1 {
		t.Errorf("second key got ID %d", id3)
	}
	if a.Key(id3) != "b" || a.Len() != 2 {
		t.Errorf("Key=%q Len=%d", a.Key(id3), a.Len())
	}
}

func TestLookupAndGet(t *testing.T) {
	a := New[int]()
	a.Intern("x", func(ID) int { return 42 })

	if id, ok := a.Lookup("x"); !ok || id != 0 {
		t.Errorf("Lookup = %d %v", id, ok)
	}
	if _, ok := a.Lookup("y"); ok {
		t.Error("missing key found")
	}
	if v, ok := a.Get(0); !ok || v != 42 {
		t.Errorf("Get = %d %v", v, ok)
	}
	if _, ok := a.Get(5); ok {
		t.Error("out-of-range ID found")
	}
	if v, ok := a.Find("x"); !ok || v != 42 {
		t.Errorf("Find = %d %v", v, ok)
	}
	if a.Key(9) != "" {
		t.Error("unknown ID should have no key")
	}
}

func TestConcurrentIntern(t *testing.T) {
	a := New[*int]()
	const goroutines = 32
	const keys = 10

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < keys; k++ {
				a.Intern(fmt.Sprint(k), func(id ID) *int {
					v := int(id)
					return &v
				})
			}
		}()
	}
	wg.Wait()

	if a.Len() != keys {
		t.Fatalf("Len = %d, want %d", a.Len(), keys)
	}
	for i, v := range a.All() {
		if *v != i {
			t.Errorf("entry %d holds %d", i, *v)
		}
	}
}
