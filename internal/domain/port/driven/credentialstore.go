package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned when sealed credentials are read by an
// adapter constructed without a sealing key.
var ErrEncryptionKeyNotSet = errors.New("loot key not configured: set VEEAMDUMP_LOOT_KEY")

// CredentialStore defines the driven port for recovered credentials. Values
// cross this boundary as plaintext; adapters may seal them at rest.
type CredentialStore interface {
	// Store records a recovered credential.
	Store(ctx context.Context, cred model.Credential) error

	// ListByRun returns the credentials recorded for a run, oldest first.
	ListByRun(ctx context.Context, runID string) ([]model.Credential, error)
}
