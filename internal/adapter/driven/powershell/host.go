package powershell

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HostInspector = (*Host)(nil)

// Host answers host questions by running scripts through the remote executor.
type Host struct {
	exec driven.RemoteExecutor
}

// NewHost creates a Host.
func NewHost(exec driven.RemoteExecutor) *Host {
	return &Host{exec: exec}
}

// ProductVersion implements driven.HostInspector.
func (h *Host) ProductVersion(ctx context.Context, path string) (string, error) {
	return h.run(ctx, ProductVersionScript(path))
}

// Hostname implements driven.HostInspector.
func (h *Host) Hostname(ctx context.Context) (string, error) {
	return h.run(ctx, HostnameScript())
}

func (h *Host) run(ctx context.Context, script string) (string, error) {
	cmd, err := Command(script)
	if err != nil {
		return "", err
	}
	out, err := h.exec.ExecuteCommand(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("host query: %w", err)
	}
	return strings.TrimSpace(strings.ReplaceAll(out, "\x00", "")), nil
}
