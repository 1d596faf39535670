// Package winrt is the runtime support library imported by generated
// bindings.
//
// It owns the pieces every binding shares: interface identifiers, status
// codes and call errors, reference-counted object wrappers, vtable
// invocation, string handles, callee-allocated arrays, activation and
// event sources.
//
// # Objects
//
// An [IUnknown] or [IInspectable] wraps one interface pointer. References
// returned by calls are owned and released exactly once by Release;
// references received as callback arguments are borrowed.
//
//	obj, err := winrt.ActivateInstance("Windows.Foundation.Uri")
//	if err != nil {
//		return err
//	}
//	defer obj.Release()
//
// # Go-implemented objects
//
// [NewObject], [NewInspectable] and [NewDelegate] build COM-shaped objects
// whose slots run Go functions. They answer Invoke directly on every
// platform, which is how delegates, event handlers and activation
// factories are exercised without the native runtime.
//
// # Platforms
//
// Native entry points exist on Windows only. Elsewhere they return
// [ErrUnsupportedPlatform] or E_NOTIMPL, while Go-implemented objects
// and string handles keep working.
package winrt
