// Package worker moves stored expenses to an export backend. Events
// from the queue drive the fast path; a periodic sweep catches anything
// a lost event or a failed append left behind.
package worker

import (
	"context"
	"errors"
	"fmt"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/export"
	"kharcha/internal/log"
	"kharcha/internal/storage"
)

// ExportWorker exports expenses exactly once per row. Export state
// lives in the database, so restarts and duplicate events are harmless.
type ExportWorker struct {
	store     *storage.Repository
	target    export.Appender
	batchSize int
	logger    *log.Logger
}

func NewExportWorker(store *storage.Repository, target export.Appender, batchSize int, logger *log.Logger) *ExportWorker {
	return &ExportWorker{
		store:     store,
		target:    target,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleCreated exports the expense named by a queue message. A row
// that is already exported or no longer exists acks cleanly.
func (w *ExportWorker) HandleCreated(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	e, err := w.store.GetExpense(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			w.logger.WarnContext(ctx, "event for missing expense dropped",
				log.FieldExpenseID, msg.ID)
			return nil
		}
		return fmt.Errorf("load expense %d: %w", msg.ID, err)
	}

	return w.exportExpense(ctx, *e)
}

// SweepPending exports up to the batch size of rows still waiting.
// It returns how many rows it attempted.
func (w *ExportWorker) SweepPending(ctx context.Context) (int, error) {
	pending, err := w.store.PendingExport(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending exports: %w", err)
	}

	for _, e := range pending {
		if err := w.exportExpense(ctx, e); err != nil {
			w.logger.ErrorContext(ctx, "sweep export failed",
				log.FieldExpenseID, e.ID,
				log.FieldError, err)
		}
	}
	return len(pending), nil
}

// StartupCheck drains a larger backlog once at boot so a worker that
// was down for a while catches up before steady-state sweeping.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.store.PendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup check: %w", err)
	}
	if len(pending) == 0 {
		w.logger.InfoContext(ctx, "startup check: no pending exports")
		return nil
	}

	w.logger.InfoContext(ctx, "startup check: draining backlog",
		log.FieldBatchSize, len(pending))
	for _, e := range pending {
		if err := w.exportExpense(ctx, e); err != nil {
			w.logger.ErrorContext(ctx, "startup export failed",
				log.FieldExpenseID, e.ID,
				log.FieldError, err)
		}
	}
	return nil
}

func (w *ExportWorker) exportExpense(ctx context.Context, e core.Expense) error {
	ref, err := w.target.Append(ctx, e)
	if err != nil {
		if merr := w.store.MarkExportError(ctx, e.ID); merr != nil {
			w.logger.ErrorContext(ctx, "mark export error failed",
				log.FieldExpenseID, e.ID,
				log.FieldError, merr)
		}
		return fmt.Errorf("append expense %d: %w", e.ID, err)
	}

	if err := w.store.MarkExported(ctx, e.ID); err != nil {
		return fmt.Errorf("mark exported %d: %w", e.ID, err)
	}

	w.logger.InfoContext(ctx, "expense exported",
		log.FieldExpenseID, e.ID,
		log.FieldExportRef, ref)
	return nil
}
