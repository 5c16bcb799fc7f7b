package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kharcha/internal/core"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testExpense(key string) *core.Expense {
	return &core.Expense{
		IdempotencyKey: key,
		Amount:         core.Money{Paise: 1050},
		Category:       "food",
		Description:    "lunch",
		Date:           core.NewDate(2026, time.January, 18),
	}
}

func TestInsertAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	e := testExpense("k1")
	if err := repo.InsertExpense(ctx, e); err != nil {
		t.Fatalf("InsertExpense: %v", err)
	}
	if e.ID == 0 {
		t.Fatal("InsertExpense did not set ID")
	}
	if e.CreatedAt.IsZero() {
		t.Fatal("InsertExpense did not set CreatedAt")
	}

	got, err := repo.GetByIdempotencyKey(ctx, "k1")
	if err != nil {
		t.Fatalf("GetByIdempotencyKey: %v", err)
	}
	if got.ID != e.ID || got.Amount.Paise != 1050 || got.Category != "food" {
		t.Fatalf("GetByIdempotencyKey = %+v, want %+v", got, e)
	}
	if got.Date.String() != "2026-01-18" {
		t.Fatalf("stored date = %q, want 2026-01-18", got.Date.String())
	}

	byID, err := repo.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if byID.IdempotencyKey != "k1" {
		t.Fatalf("GetExpense key = %q, want k1", byID.IdempotencyKey)
	}
}

func TestGetNotFound(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetByIdempotencyKey(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("GetByIdempotencyKey = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetExpense(ctx, 999); err != ErrNotFound {
		t.Fatalf("GetExpense = %v, want ErrNotFound", err)
	}
}

func TestDuplicateKeyDetection(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.InsertExpense(ctx, testExpense("dup")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := repo.InsertExpense(ctx, testExpense("dup"))
	if err == nil {
		t.Fatal("second insert with same key succeeded")
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("IsUniqueViolation(%v) = false, want true", err)
	}
	if IsUnavailable(err) {
		t.Fatalf("IsUnavailable(%v) = true for a constraint failure", err)
	}
}

func TestListExpenses(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	// Dates deliberately out of insertion order.
	inserts := []struct {
		key, category, date string
	}{
		{"a", "food", "2026-01-10"},
		{"b", "travel", "2026-01-20"},
		{"c", "food", "2026-01-15"},
	}
	for _, in := range inserts {
		e := testExpense(in.key)
		e.Category = in.category
		d, err := core.NormalizeDate(in.date)
		if err != nil {
			t.Fatal(err)
		}
		e.Date = d
		if err := repo.InsertExpense(ctx, e); err != nil {
			t.Fatalf("InsertExpense %s: %v", in.key, err)
		}
	}

	all, err := repo.ListExpenses(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if got := keys(all); got != "c,b,a" {
		t.Fatalf("default order = %s, want c,b,a", got)
	}

	byDate, err := repo.ListExpenses(ctx, ListFilter{DateDesc: true})
	if err != nil {
		t.Fatalf("ListExpenses date desc: %v", err)
	}
	if got := keys(byDate); got != "b,c,a" {
		t.Fatalf("date desc order = %s, want b,c,a", got)
	}

	food, err := repo.ListExpenses(ctx, ListFilter{Category: "food", DateDesc: true})
	if err != nil {
		t.Fatalf("ListExpenses food: %v", err)
	}
	if got := keys(food); got != "c,a" {
		t.Fatalf("food filter = %s, want c,a", got)
	}

	none, err := repo.ListExpenses(ctx, ListFilter{Category: "rent"})
	if err != nil {
		t.Fatalf("ListExpenses rent: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("rent filter returned %d rows, want 0", len(none))
	}
}

func TestCategoryTotalsAndCategories(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	amounts := []struct {
		key, category string
		paise         int64
	}{
		{"a", "food", 500},
		{"b", "food", 300},
		{"c", "travel", 1200},
	}
	for _, in := range amounts {
		e := testExpense(in.key)
		e.Category = in.category
		e.Amount.Paise = in.paise
		if err := repo.InsertExpense(ctx, e); err != nil {
			t.Fatalf("InsertExpense %s: %v", in.key, err)
		}
	}

	totals, err := repo.CategoryTotals(ctx, "")
	if err != nil {
		t.Fatalf("CategoryTotals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("CategoryTotals returned %d rows, want 2", len(totals))
	}
	if totals[0].Category != "travel" || totals[0].Total.Paise != 1200 {
		t.Fatalf("totals[0] = %+v, want travel 1200", totals[0])
	}
	if totals[1].Category != "food" || totals[1].Total.Paise != 800 {
		t.Fatalf("totals[1] = %+v, want food 800", totals[1])
	}

	foodOnly, err := repo.CategoryTotals(ctx, "food")
	if err != nil {
		t.Fatalf("CategoryTotals(food): %v", err)
	}
	if len(foodOnly) != 1 || foodOnly[0].Category != "food" || foodOnly[0].Total.Paise != 800 {
		t.Fatalf("CategoryTotals(food) = %+v, want food 800 only", foodOnly)
	}

	categories, err := repo.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(categories) != 2 || categories[0] != "food" || categories[1] != "travel" {
		t.Fatalf("Categories = %v, want [food travel]", categories)
	}
}

func TestExportLifecycle(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	e1 := testExpense("e1")
	e2 := testExpense("e2")
	for _, e := range []*core.Expense{e1, e2} {
		if err := repo.InsertExpense(ctx, e); err != nil {
			t.Fatalf("InsertExpense: %v", err)
		}
	}

	pending, err := repo.PendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExport: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("PendingExport returned %d rows, want 2", len(pending))
	}

	if err := repo.MarkExported(ctx, e1.ID); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}
	if err := repo.MarkExportError(ctx, e2.ID); err != nil {
		t.Fatalf("MarkExportError: %v", err)
	}

	// Failed rows stay eligible for the next sweep; exported ones do not.
	pending, err = repo.PendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExport after marks: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != e2.ID {
		t.Fatalf("PendingExport after marks = %+v, want only e2", pending)
	}

	if err := repo.MarkExported(ctx, 9999); err != ErrNotFound {
		t.Fatalf("MarkExported(9999) = %v, want ErrNotFound", err)
	}
}

func TestConcurrentInsertSameKey(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			errs <- repo.InsertExpense(ctx, testExpense("race"))
		}()
	}

	var ok, dup int
	for i := 0; i < workers; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case IsUniqueViolation(err):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d inserts succeeded, want exactly 1", ok)
	}
	if dup != workers-1 {
		t.Fatalf("%d unique violations, want %d", dup, workers-1)
	}

	all, err := repo.ListExpenses(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("%d rows stored, want 1", len(all))
	}
}

func keys(expenses []core.Expense) string {
	out := ""
	for i, e := range expenses {
		if i > 0 {
			out += ","
		}
		out += e.IdempotencyKey
	}
	return out
}
