//go:build !windows

package registry

import (
	"context"
	"errors"
)

// ErrUnsupportedPlatform is returned by NewNative off Windows.
var ErrUnsupportedPlatform = errors.New("native registry access requires windows")

// Native is unavailable on this platform.
type Native struct{}

// NewNative always fails on this platform.
func NewNative() (*Native, error) { return nil, ErrUnsupportedPlatform }

func (*Native) KeyExists(context.Context, string) (bool, error) {
	return false, ErrUnsupportedPlatform
}

func (*Native) GetValue(context.Context, string, string) (string, error) {
	return "", ErrUnsupportedPlatform
}

func (*Native) GetBinaryBase64(context.Context, string, string) (string, error) {
	return "", ErrUnsupportedPlatform
}
