// Package registry implements the registry reader port, either through
// PowerShell on the target host or natively on Windows.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericfisherdev/veeamdump/internal/adapter/driven/powershell"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RegistryReader = (*PowerShell)(nil)

// PowerShell reads the registry by running provider cmdlets through the
// remote executor.
type PowerShell struct {
	exec driven.RemoteExecutor
}

// NewPowerShell creates a PowerShell registry reader.
func NewPowerShell(exec driven.RemoteExecutor) *PowerShell {
	return &PowerShell{exec: exec}
}

// KeyExists implements driven.RegistryReader.
func (r *PowerShell) KeyExists(ctx context.Context, path string) (bool, error) {
	out, err := r.run(ctx, powershell.TestRegistryKeyScript(path))
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(out), "true"), nil
}

// GetValue implements driven.RegistryReader. Empty output is treated as a
// missing value.
func (r *PowerShell) GetValue(ctx context.Context, path, name string) (string, error) {
	out, err := r.run(ctx, powershell.RegistryValueScript(path, name))
	if err != nil {
		return "", err
	}
	v := strings.TrimRight(strings.ReplaceAll(out, "\x00", ""), "\r\n")
	if v == "" {
		return "", fmt.Errorf("%s\\%s: %w", path, name, driven.ErrValueNotFound)
	}
	return v, nil
}

// GetBinaryBase64 returns a REG_BINARY value as base64 text.
func (r *PowerShell) GetBinaryBase64(ctx context.Context, path, name string) (string, error) {
	out, err := r.run(ctx, powershell.RegistryValueBase64Script(path, name))
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(strings.ReplaceAll(out, "\x00", ""))
	if v == "" {
		return "", fmt.Errorf("%s\\%s: %w", path, name, driven.ErrValueNotFound)
	}
	return v, nil
}

func (r *PowerShell) run(ctx context.Context, script string) (string, error) {
	cmd, err := powershell.Command(script)
	if err != nil {
		return "", err
	}
	out, err := r.exec.ExecuteCommand(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("registry query: %w", err)
	}
	return out, nil
}
