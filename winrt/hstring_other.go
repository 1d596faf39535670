//go:build !windows

package winrt

import (
	"github.com/wippyai/winrt-bindgen/winrt/internal/handle"
)

// hstrings backs HSTRING handles for Go-implemented objects
var hstrings = handle.New()

func newHString(s string) (HString, error) {
	return HString(hstrings.Insert(s)), nil
}

func hstringValue(h HString) string {
	v, ok := hstrings.Get(handle.Handle(h))
	if !ok {
		return ""
	}
	return v.(string)
}

func deleteHString(h HString) {
	hstrings.Remove(handle.Handle(h))
}

// LiveStrings returns the number of string handles not yet freed
func LiveStrings() int {
	return hstrings.Len()
}
