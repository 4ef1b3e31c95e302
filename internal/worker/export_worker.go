// Package worker drains the ledger-export queue into the export target.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/events"
	"fintrack/internal/export"
	"fintrack/internal/storage"
)

// ExportWorker copies ledger rows from the database to the export target and
// tracks per-row status so nothing is lost across restarts.
type ExportWorker struct {
	store     storage.Store
	writer    export.RowWriter
	batchSize int
}

func NewExportWorker(store storage.Store, writer export.RowWriter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleExportMessage processes a single export message from the queue.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *events.ExportMessage) error {
	slog.InfoContext(ctx, "Processing export message", "kind", msg.Kind, "id", msg.ID)
	return w.exportRow(ctx, storage.TxKind(msg.Kind), msg.ID)
}

// ProcessPending drains up to batchSize rows that never made it across.
// This is a backup mechanism in case queue messages are lost.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	items, err := w.store.PendingExports(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending exports: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(items))

	for _, item := range items {
		if err := w.exportRow(ctx, item.Kind, item.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export row",
				"kind", item.Kind, "id", item.ID, "error", err)
		}
	}

	return nil
}

// StartupCheck drains a larger pending backlog once at worker startup. This
// recovers rows whose messages were lost while the worker was down.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	items, err := w.store.PendingExports(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending exports for startup check: %w", err)
	}

	if len(items) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(items))

	successCount := 0
	errorCount := 0

	for _, item := range items {
		if err := w.exportRow(ctx, item.Kind, item.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export row during startup",
				"kind", item.Kind, "id", item.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(items),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

func (w *ExportWorker) exportRow(ctx context.Context, kind storage.TxKind, id int64) error {
	row, err := w.store.ExportRowByID(ctx, kind, id)
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, kind, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"kind", kind, "id", id, "error", markErr)
		}
		return fmt.Errorf("load export row: %w", err)
	}

	ref, err := w.writer.Append(ctx, row)
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, kind, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"kind", kind, "id", id, "error", markErr)
		}
		return fmt.Errorf("append to export target: %w", err)
	}

	if err := w.store.MarkExported(ctx, kind, id); err != nil {
		// The append succeeded; the row will simply be retried next sweep.
		slog.ErrorContext(ctx, "Failed to mark as exported",
			"kind", kind, "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Exported ledger row",
		"kind", kind,
		"id", id,
		"export_ref", ref,
		"amount", row.Amount)

	return nil
}
