package winrt

// HString is a native immutable string handle. The zero handle is the
// empty string.
type HString uintptr

// NewHString creates a string handle the caller must Free
func NewHString(s string) (HString, error) {
	if s == "" {
		return 0, nil
	}
	return newHString(s)
}

// String returns the contents of h
func (h HString) String() string {
	if h == 0 {
		return ""
	}
	return hstringValue(h)
}

// Free deletes the handle; freeing the zero handle is a no-op
func (h HString) Free() {
	if h != 0 {
		deleteHString(h)
	}
}

// TakeString converts a handle received from a call and frees it
func TakeString(h HString) string {
	s := h.String()
	h.Free()
	return s
}

// NewHStrings creates one handle per string. On failure every handle
// created so far is freed.
func NewHStrings(values []string) ([]HString, error) {
	out := make([]HString, len(values))
	for i, s := range values {
		h, err := NewHString(s)
		if err != nil {
			FreeHStrings(out[:i])
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// FreeHStrings frees every handle of hs
func FreeHStrings(hs []HString) {
	for _, h := range hs {
		h.Free()
	}
}
