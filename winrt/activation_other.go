//go:build !windows

package winrt

func nativeFactory(string, GUID) (*IInspectable, error) {
	return nil, ErrUnsupportedPlatform
}

func initialize() error {
	return ErrUnsupportedPlatform
}

func uninitialize() {}
