//go:build windows

package registry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"

	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RegistryReader = (*Native)(nil)

// Native reads the local machine's registry directly.
type Native struct{}

// NewNative creates a Native registry reader.
func NewNative() (*Native, error) { return &Native{}, nil }

// KeyExists implements driven.RegistryReader.
func (*Native) KeyExists(_ context.Context, path string) (bool, error) {
	k, err := open(path)
	if errors.Is(err, registry.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	k.Close()
	return true, nil
}

// GetValue implements driven.RegistryReader.
func (*Native) GetValue(_ context.Context, path, name string) (string, error) {
	k, err := open(path)
	if errors.Is(err, registry.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", path, driven.ErrValueNotFound)
	}
	if err != nil {
		return "", err
	}
	defer k.Close()

	_, valType, err := k.GetValue(name, nil)
	if errors.Is(err, registry.ErrNotExist) {
		return "", fmt.Errorf("%s\\%s: %w", path, name, driven.ErrValueNotFound)
	}
	if err != nil && !errors.Is(err, registry.ErrShortBuffer) {
		return "", fmt.Errorf("read %s\\%s: %w", path, name, err)
	}

	switch valType {
	case registry.SZ, registry.EXPAND_SZ:
		s, _, err := k.GetStringValue(name)
		return s, err
	case registry.DWORD, registry.QWORD:
		n, _, err := k.GetIntegerValue(name)
		return strconv.FormatUint(n, 10), err
	case registry.BINARY:
		b, _, err := k.GetBinaryValue(name)
		return string(b), err
	}
	return "", fmt.Errorf("read %s\\%s: unsupported value type %d", path, name, valType)
}

// GetBinaryBase64 returns a REG_BINARY value as base64 text.
func (*Native) GetBinaryBase64(_ context.Context, path, name string) (string, error) {
	k, err := open(path)
	if errors.Is(err, registry.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", path, driven.ErrValueNotFound)
	}
	if err != nil {
		return "", err
	}
	defer k.Close()

	b, _, err := k.GetBinaryValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return "", fmt.Errorf("%s\\%s: %w", path, name, driven.ErrValueNotFound)
	}
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func open(path string) (registry.Key, error) {
	hive, sub, _ := strings.Cut(strings.TrimSuffix(path, `\`), `\`)
	var root registry.Key
	switch strings.ToUpper(strings.TrimSuffix(hive, ":")) {
	case "HKLM", "HKEY_LOCAL_MACHINE":
		root = registry.LOCAL_MACHINE
	case "HKCU", "HKEY_CURRENT_USER":
		root = registry.CURRENT_USER
	default:
		return 0, fmt.Errorf("unsupported hive %q", hive)
	}
	return registry.OpenKey(root, sub, registry.QUERY_VALUE|registry.WOW64_64KEY)
}
