// Package memory is an in-process RowWriter used in tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/storage"
)

type Writer struct {
	mu   sync.Mutex
	rows []storage.ExportRow

	// FailNext makes the next Append return an error, for worker tests.
	FailNext bool
}

func New() *Writer { return &Writer{} }

func (w *Writer) Append(_ context.Context, row storage.ExportRow) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailNext {
		w.FailNext = false
		return "", fmt.Errorf("append %s %d: writer unavailable", row.Kind, row.ID)
	}
	w.rows = append(w.rows, row)
	return fmt.Sprintf("mem:%d", len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() []storage.ExportRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]storage.ExportRow(nil), w.rows...)
}
