package winrt

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/winrt-bindgen/errors"
)

func TestHResult(t *testing.T) {
	tests := []struct {
		hr     HResult
		failed bool
		text   string
	}{
		{S_OK, false, "0x00000000 (success)"},
		{S_FALSE, false, "0x00000001"},
		{E_NOINTERFACE, true, "0x80004002 (no such interface supported)"},
		{HResult(0x80001234), true, "0x80001234"},
	}
	for _, tt := range tests {
		if tt.hr.Failed() != tt.failed {
			t.Errorf("%s: Failed() = %v", tt.hr, tt.hr.Failed())
		}
		if !strings.HasPrefix(tt.hr.String(), tt.text) {
			t.Errorf("String() = %q, want prefix %q", tt.hr.String(), tt.text)
		}
	}
}

func TestCallError(t *testing.T) {
	err := Check(ReportError(E_BOUNDS, "index 9 past end"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !stderrors.Is(err, &CallError{Code: E_BOUNDS}) {
		t.Error("errors.Is did not match on code")
	}
	if stderrors.Is(err, ErrNoInterface) {
		t.Error("errors.Is matched a different code")
	}
	if !strings.Contains(err.Error(), "index 9 past end") {
		t.Errorf("message lost: %v", err)
	}

	var ge *errors.Error
	if !stderrors.As(err, &ge) {
		t.Fatal("call error does not unwrap to a generator error")
	}
	if ge.Phase != errors.PhaseCall || ge.Kind != errors.KindNativeCallFailure {
		t.Errorf("got %s/%s", ge.Phase, ge.Kind)
	}
}

func TestCheckNonZero(t *testing.T) {
	if err := Check(S_OK); err != nil {
		t.Errorf("Check(S_OK) = %v", err)
	}
	for _, hr := range []HResult{S_FALSE, HResult(0x7), E_FAIL} {
		var ce *CallError
		if err := Check(hr); !stderrors.As(err, &ce) || ce.Code != hr {
			t.Errorf("Check(%s) = %v, want call error with that code", hr, err)
		}
	}
}

func TestErrorInfoConsumedOnce(t *testing.T) {
	ReportError(E_FAIL, "first")
	if msg := ErrorInfo(E_INVALIDARG); msg != "" {
		t.Errorf("mismatched code returned %q", msg)
	}
	ReportError(E_FAIL, "second")
	if msg := ErrorInfo(E_FAIL); msg != "second" {
		t.Errorf("got %q", msg)
	}
	if msg := ErrorInfo(E_FAIL); msg != "" {
		t.Errorf("message reported twice: %q", msg)
	}
}

func TestHResultOf(t *testing.T) {
	if HResultOf(nil) != S_OK {
		t.Error("nil error is not S_OK")
	}
	if HResultOf(stderrors.New("plain")) != E_FAIL {
		t.Error("plain error is not E_FAIL")
	}
	wrapped := stderrors.Join(stderrors.New("ctx"), &CallError{Code: RPC_E_DISCONNECTED})
	if HResultOf(wrapped) != RPC_E_DISCONNECTED {
		t.Error("wrapped call error code lost")
	}
}
