// Package export defines the outbound port the worker pushes expenses
// through. Backends live in subpackages.
package export

import (
	"context"

	"kharcha/internal/core"
)

// Appender writes one expense to an external destination and returns a
// backend-specific reference for the exported row.
type Appender interface {
	Append(ctx context.Context, e core.Expense) (ref string, err error)
}
