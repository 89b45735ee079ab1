package driven

import (
	"context"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
)

// DatabaseExporter dumps a product's credential table as comma-separated text
// with no header row.
type DatabaseExporter interface {
	// Detect reports whether the query client is usable on the target host.
	Detect(ctx context.Context) (bool, error)
	// Export runs the product's credential query over conn.
	Export(ctx context.Context, product model.Product, conn model.Connection) (string, error)
}
