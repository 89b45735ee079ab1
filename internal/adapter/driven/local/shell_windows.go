//go:build windows

package local

import (
	"context"
	"os/exec"
	"syscall"
)

// shellCommand passes the command line to cmd.exe untouched so that quoting
// rendered by the sqlcmd and powershell packages reaches the child as-is.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "cmd.exe")
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: `cmd.exe /S /C "` + command + `"`}
	return cmd
}
