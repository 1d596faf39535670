//go:build !windows

package winrt

func nativeErrorInfo(HResult) string {
	return ""
}
