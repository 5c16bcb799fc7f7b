// Package csvfile appends expenses to a local CSV file. It is the
// default export backend and needs no external services.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"kharcha/internal/core"
)

var header = []string{"id", "idempotency_key", "date", "category", "description", "amount", "created_at"}

// Appender writes one CSV row per expense. A single mutex serializes
// writes; the file is opened per append so external rotation is safe.
type Appender struct {
	mu   sync.Mutex
	path string
}

// New ensures the directory and header row exist.
func New(path string) (*Appender, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	a := &Appender{path: path}
	if err := a.ensureHeader(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Appender) ensureHeader() error {
	info, err := os.Stat(a.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stat export file: %w", err)
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Append writes the expense as one row and returns "csv:<line>" where
// line is the 1-based data row number.
func (a *Appender) Append(_ context.Context, e core.Expense) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	record := []string{
		strconv.FormatInt(e.ID, 10),
		e.IdempotencyKey,
		e.Date.String(),
		e.Category,
		e.Description,
		e.Amount.String(),
		e.CreatedAt.Format(time.RFC3339),
	}
	if err := w.Write(record); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush record: %w", err)
	}

	row, err := a.countDataRows()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("csv:%d", row), nil
}

func (a *Appender) countDataRows() (int, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return 0, fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read export file: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	return len(records) - 1, nil
}
