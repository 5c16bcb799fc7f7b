package worker

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/export"
	"kharcha/internal/export/memory"
	"kharcha/internal/log"
	"kharcha/internal/storage"
)

type failingAppender struct{ calls int }

func (f *failingAppender) Append(context.Context, core.Expense) (string, error) {
	f.calls++
	return "", errors.New("backend down")
}

func newTestWorker(t *testing.T, target export.Appender) (*ExportWorker, *storage.Repository) {
	t.Helper()
	repo, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	logger := log.New(log.Config{Level: slog.LevelError})
	return NewExportWorker(repo, target, 10, logger), repo
}

func insertExpense(t *testing.T, repo *storage.Repository, key string) *core.Expense {
	t.Helper()
	e := &core.Expense{
		IdempotencyKey: key,
		Amount:         core.Money{Paise: 500},
		Category:       "food",
		Description:    "lunch",
		Date:           core.NewDate(2026, time.January, 18),
	}
	if err := repo.InsertExpense(context.Background(), e); err != nil {
		t.Fatalf("InsertExpense: %v", err)
	}
	return e
}

func TestHandleCreatedExports(t *testing.T) {
	mem := memory.New()
	w, repo := newTestWorker(t, mem)
	ctx := context.Background()

	e := insertExpense(t, repo, "k1")
	msg := amqp.NewExpenseCreatedMessage(e.ID, e.IdempotencyKey)

	if err := w.HandleCreated(ctx, msg); err != nil {
		t.Fatalf("HandleCreated: %v", err)
	}

	rows := mem.Rows()
	if len(rows) != 1 || rows[0].ID != e.ID {
		t.Fatalf("exported rows = %+v, want the inserted expense", rows)
	}

	pending, err := repo.PendingExport(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("%d rows still pending after export", len(pending))
	}
}

func TestHandleCreatedMissingExpenseAcks(t *testing.T) {
	mem := memory.New()
	w, _ := newTestWorker(t, mem)

	msg := amqp.NewExpenseCreatedMessage(999, "ghost")
	if err := w.HandleCreated(context.Background(), msg); err != nil {
		t.Fatalf("HandleCreated for missing row = %v, want nil so the message acks", err)
	}
	if len(mem.Rows()) != 0 {
		t.Fatal("missing expense was exported")
	}
}

func TestSweepPendingExportsBacklog(t *testing.T) {
	mem := memory.New()
	w, repo := newTestWorker(t, mem)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		insertExpense(t, repo, key)
	}

	n, err := w.SweepPending(ctx)
	if err != nil {
		t.Fatalf("SweepPending: %v", err)
	}
	if n != 3 {
		t.Fatalf("SweepPending attempted %d rows, want 3", n)
	}
	if len(mem.Rows()) != 3 {
		t.Fatalf("%d rows exported, want 3", len(mem.Rows()))
	}

	// Nothing left for a second sweep.
	n, err = w.SweepPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("second sweep attempted %d rows, want 0", n)
	}
}

func TestAppendFailureMarksErrorAndRetries(t *testing.T) {
	failing := &failingAppender{}
	w, repo := newTestWorker(t, failing)
	ctx := context.Background()

	e := insertExpense(t, repo, "k1")

	msg := amqp.NewExpenseCreatedMessage(e.ID, e.IdempotencyKey)
	if err := w.HandleCreated(ctx, msg); err == nil {
		t.Fatal("HandleCreated succeeded with a failing backend")
	}

	// The row stays eligible so the sweep retries it.
	pending, err := repo.PendingExport(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != e.ID {
		t.Fatalf("pending after failure = %+v, want the failed row", pending)
	}

	if _, err := w.SweepPending(ctx); err != nil {
		t.Fatalf("SweepPending: %v", err)
	}
	if failing.calls != 2 {
		t.Fatalf("backend called %d times, want 2 (event then sweep)", failing.calls)
	}
}

func TestStartupCheckDrainsBacklog(t *testing.T) {
	mem := memory.New()
	w, repo := newTestWorker(t, mem)
	ctx := context.Background()

	insertExpense(t, repo, "a")
	insertExpense(t, repo, "b")

	if err := w.StartupCheck(ctx); err != nil {
		t.Fatalf("StartupCheck: %v", err)
	}
	if len(mem.Rows()) != 2 {
		t.Fatalf("%d rows exported at startup, want 2", len(mem.Rows()))
	}
}
