package driven

import (
	"context"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
)

// ArtifactStore persists dump artifacts. Save returns a reference that Load
// accepts; its format is adapter-specific (a row ID or a file path).
type ArtifactStore interface {
	Save(ctx context.Context, a model.Artifact) (string, error)
	Load(ctx context.Context, ref string) ([]byte, error)
	// ListByRun returns the artifacts saved for a run, data included.
	ListByRun(ctx context.Context, runID string) ([]model.Artifact, error)
}
