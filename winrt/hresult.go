package winrt

import (
	stderrors "errors"
	"fmt"

	"github.com/wippyai/winrt-bindgen/errors"
)

// HResult is a native status code. Calls through a vtable succeed only with
// S_OK; Succeeded and Failed follow the wider HRESULT convention used by
// system functions, where codes with the high bit set are failures.
type HResult uint32

const (
	S_OK                     HResult = 0x00000000
	S_FALSE                  HResult = 0x00000001
	E_NOTIMPL                HResult = 0x80004001
	E_NOINTERFACE            HResult = 0x80004002
	E_POINTER                HResult = 0x80004003
	E_ABORT                  HResult = 0x80004004
	E_FAIL                   HResult = 0x80004005
	E_UNEXPECTED             HResult = 0x8000FFFF
	E_BOUNDS                 HResult = 0x8000000B
	E_ILLEGAL_METHOD_CALL    HResult = 0x8000000E
	RO_E_CLOSED              HResult = 0x80000013
	E_ACCESSDENIED           HResult = 0x80070005
	E_HANDLE                 HResult = 0x80070006
	E_OUTOFMEMORY            HResult = 0x8007000E
	E_INVALIDARG             HResult = 0x80070057
	REGDB_E_CLASSNOTREG      HResult = 0x80040154
	CO_E_NOTINITIALIZED      HResult = 0x800401F0
	RPC_E_DISCONNECTED       HResult = 0x80010108
	RPC_E_SERVER_UNAVAILABLE HResult = 0x800706BA
	JSCRIPT_E_CANTEXECUTE    HResult = 0x89020001
)

var hresultNames = map[HResult]string{
	S_OK:                     "success",
	S_FALSE:                  "success (false)",
	E_NOTIMPL:                "not implemented",
	E_NOINTERFACE:            "no such interface supported",
	E_POINTER:                "invalid pointer",
	E_ABORT:                  "operation aborted",
	E_FAIL:                   "unspecified failure",
	E_UNEXPECTED:             "catastrophic failure",
	E_BOUNDS:                 "index out of bounds",
	E_ILLEGAL_METHOD_CALL:    "illegal method call",
	RO_E_CLOSED:              "object has been closed",
	E_ACCESSDENIED:           "access denied",
	E_HANDLE:                 "invalid handle",
	E_OUTOFMEMORY:            "out of memory",
	E_INVALIDARG:             "invalid argument",
	REGDB_E_CLASSNOTREG:      "class not registered",
	CO_E_NOTINITIALIZED:      "runtime not initialized",
	RPC_E_DISCONNECTED:       "object disconnected from its clients",
	RPC_E_SERVER_UNAVAILABLE: "server unavailable",
	JSCRIPT_E_CANTEXECUTE:    "script can no longer execute",
}

// Succeeded reports whether h is a success code
func (h HResult) Succeeded() bool {
	return h&0x80000000 == 0
}

// Failed reports whether h is a failure code
func (h HResult) Failed() bool {
	return !h.Succeeded()
}

func (h HResult) String() string {
	if name, ok := hresultNames[h]; ok {
		return fmt.Sprintf("0x%08X (%s)", uint32(h), name)
	}
	return fmt.Sprintf("0x%08X", uint32(h))
}

// CallError is a failed native call
type CallError struct {
	Message string
	Code    HResult
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return "winrt: call failed: " + e.Code.String()
	}
	return "winrt: call failed: " + e.Code.String() + ": " + e.Message
}

// Is matches any CallError carrying the same code
func (e *CallError) Is(target error) bool {
	t, ok := target.(*CallError)
	return ok && t.Code == e.Code
}

// Unwrap exposes the failure as a call-phase error of the generator taxonomy
func (e *CallError) Unwrap() error {
	return errors.New(errors.PhaseCall, errors.KindNativeCallFailure).
		Value(uint32(e.Code)).
		Detail("%s", e.Message).
		Build()
}

var (
	// ErrNoInterface is returned when a capability query finds no interface
	ErrNoInterface = &CallError{Code: E_NOINTERFACE, Message: "no such interface supported"}

	// ErrUnsupportedPlatform is returned by native entry points on platforms
	// without the Windows Runtime
	ErrUnsupportedPlatform = stderrors.New("winrt: native runtime not available on this platform")
)

// NewCallError builds the error for a failed status, attaching the
// diagnostic text published by the callee when there is one.
func NewCallError(hr HResult) *CallError {
	return &CallError{Code: hr, Message: ErrorInfo(hr)}
}

// Check returns nil for S_OK and a *CallError carrying hr otherwise,
// including for non-failure codes such as S_FALSE
func Check(hr HResult) error {
	if hr == S_OK {
		return nil
	}
	return NewCallError(hr)
}

// HResultOf maps an error returned by Go code to a status for native callers
func HResultOf(err error) HResult {
	if err == nil {
		return S_OK
	}
	var ce *CallError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return E_FAIL
}
