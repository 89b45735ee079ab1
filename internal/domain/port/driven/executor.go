package driven

import "context"

// RemoteExecutor runs commands and reads files on the target host. Errors are
// channel failures and are fatal to the run.
type RemoteExecutor interface {
	// ExecuteCommand runs a command line and returns its combined text output.
	ExecuteCommand(ctx context.Context, command string) (string, error)
	// ReadFile returns the contents of a file on the target host.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// FileExists reports whether a regular file exists on the target host.
	FileExists(ctx context.Context, path string) (bool, error)
}
