package driven

import (
	"context"
	"errors"
)

// ErrValueNotFound is returned by GetValue when the key or value does not exist.
var ErrValueNotFound = errors.New("registry value not found")

// RegistryReader reads configuration from the target host's registry.
// Paths use the HKLM\SOFTWARE\... form.
type RegistryReader interface {
	KeyExists(ctx context.Context, path string) (bool, error)
	// GetValue returns the value rendered as a string (REG_DWORD as decimal).
	// Returns ErrValueNotFound if the key or value is missing.
	GetValue(ctx context.Context, path, name string) (string, error)
	// GetBinaryBase64 returns a REG_BINARY value encoded as base64.
	// Returns ErrValueNotFound if the key or value is missing.
	GetBinaryBase64(ctx context.Context, path, name string) (string, error)
}
