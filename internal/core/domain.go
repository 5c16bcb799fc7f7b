package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Money is an amount in paise (minor currency units). Integer minor
	// units avoid floating-point rounding drift in sums and comparisons.
	Money struct {
		Paise int64
	}

	// Date is a calendar date pinned to midnight UTC. Keeping the zero
	// time-of-day invariant here makes date equality stable regardless of
	// the client timezone.
	Date struct {
		time.Time
	}

	// Expense is the persisted expense record. Rows are created exactly
	// once per idempotency key and never mutated afterwards.
	Expense struct {
		ID             int64
		IdempotencyKey string
		Amount         Money
		Category       string
		Description    string
		Date           Date
		CreatedAt      time.Time
	}

	// CategoryTotal is an aggregated sum for one category.
	CategoryTotal struct {
		Category string
		Total    Money
	}

	// Summary holds per-category totals and the grand total for a set of
	// expenses.
	Summary struct {
		Total      Money
		ByCategory []CategoryTotal
	}
)

var (
	ErrEmptyIdempotencyKey = errors.New("empty idempotency key")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyCategory       = errors.New("empty category")
	ErrEmptyDescription    = errors.New("empty description")
	ErrInvalidDate         = errors.New("invalid date")
)

func (m Money) Validate() error {
	if m.Paise <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// String returns the decimal form of the amount, e.g. "12.34".
func (m Money) String() string {
	return FormatAmount(m.Paise)
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.IdempotencyKey) == "" {
		return ErrEmptyIdempotencyKey
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	return nil
}
