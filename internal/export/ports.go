// Package export defines the outbound port for the ledger-export pipeline.
package export

import (
	"context"

	"fintrack/internal/storage"
)

// RowWriter appends a denormalized ledger row to the export target.
type RowWriter interface {
	Append(ctx context.Context, row storage.ExportRow) (rowRef string, err error)
}
