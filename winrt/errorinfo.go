package winrt

import (
	"sync/atomic"
)

type reportedError struct {
	message string
	code    HResult
}

var lastError atomic.Pointer[reportedError]

// ReportError publishes a diagnostic for a failure returned by a
// Go-implemented method and returns hr. The slot is process wide; the next
// ErrorInfo call consumes it.
func ReportError(hr HResult, message string) HResult {
	lastError.Store(&reportedError{code: hr, message: message})
	return hr
}

// ErrorInfo returns the diagnostic text published for the failure hr, or
// an empty string when there is none.
func ErrorInfo(hr HResult) string {
	if r := lastError.Swap(nil); r != nil && r.code == hr {
		return r.message
	}
	return nativeErrorInfo(hr)
}
