package driven

import "context"

// HostInspector answers questions about the target host that need a script
// rather than a plain file or registry read.
type HostInspector interface {
	// ProductVersion returns the ProductVersion resource of a binary, or ""
	// when it has none.
	ProductVersion(ctx context.Context, path string) (string, error)
	// Hostname returns the target's computer name.
	Hostname(ctx context.Context) (string, error)
}
