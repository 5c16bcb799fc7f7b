// Package services holds the application logic between the HTTP layer
// and storage. Its centerpiece is the idempotent create path: a lookup,
// an atomic insert guarded by the database's unique index, and a single
// re-query when the insert loses the race.
package services

import (
	"context"
	"errors"

	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/storage"
)

// EventPublisher emits domain events after state changes. A nil
// publisher disables events.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, id int64, idempotencyKey string) error
}

// ExpenseService implements the expense operations.
type ExpenseService struct {
	store     *storage.Repository
	publisher EventPublisher
	logger    *log.Logger
}

// NewExpenseService wires the service. publisher may be nil.
func NewExpenseService(store *storage.Repository, publisher EventPublisher, logger *log.Logger) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentExpense),
	}
}

// CreateExpenseRequest carries the raw client payload. All fields are
// strings as received; parsing and validation happen here so every
// caller gets identical behavior.
type CreateExpenseRequest struct {
	IdempotencyKey string
	Amount         string
	Category       string
	Description    string
	Date           string
}

// Create stores an expense exactly once per idempotency key.
//
// The flow is lookup, insert, and on a unique violation one re-query.
// If the re-query also misses, the duplicate cannot be resolved and the
// caller receives KindDuplicateUnresolved rather than a second insert
// attempt. wasExisting reports whether the returned expense came from a
// previous request with the same key.
func (s *ExpenseService) Create(ctx context.Context, req CreateExpenseRequest) (expense *core.Expense, wasExisting bool, err error) {
	e, verr := buildExpense(req)
	if verr != nil {
		return nil, false, validationFailed(validationMessage(verr))
	}

	existing, err := s.store.GetByIdempotencyKey(ctx, e.IdempotencyKey)
	if err == nil {
		s.logger.InfoContext(ctx, "duplicate request replayed",
			log.FieldIdempotencyKey, e.IdempotencyKey,
			log.FieldExpenseID, existing.ID)
		return existing, true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, mapStorageError(err)
	}

	if err := s.store.InsertExpense(ctx, e); err != nil {
		if !storage.IsUniqueViolation(err) {
			return nil, false, mapStorageError(err)
		}
		// Lost the insert race. The winner's row must exist, so a
		// single re-query resolves it; anything else is a conflict the
		// client has to retry.
		winner, qerr := s.store.GetByIdempotencyKey(ctx, e.IdempotencyKey)
		if qerr != nil {
			s.logger.ErrorContext(ctx, "duplicate key with no readable row",
				log.FieldIdempotencyKey, e.IdempotencyKey,
				log.FieldError, qerr)
			return nil, false, duplicateUnresolved(qerr)
		}
		s.logger.InfoContext(ctx, "insert race resolved to existing row",
			log.FieldIdempotencyKey, e.IdempotencyKey,
			log.FieldExpenseID, winner.ID)
		return winner, true, nil
	}

	s.logger.InfoContext(ctx, "expense created",
		log.FieldExpenseID, e.ID,
		log.FieldIdempotencyKey, e.IdempotencyKey,
		log.FieldAmountPaise, e.Amount.Paise,
		log.FieldCategory, e.Category)

	if s.publisher != nil {
		// Best effort: the expense is durable either way, and the
		// worker's periodic sweep picks up anything a lost event missed.
		if perr := s.publisher.PublishExpenseCreated(ctx, e.ID, e.IdempotencyKey); perr != nil {
			s.logger.WarnContext(ctx, "publish expense created failed",
				log.FieldExpenseID, e.ID,
				log.FieldError, perr)
		}
	}

	return e, false, nil
}

// buildExpense parses and validates the raw request into a domain
// expense. The first failing field wins, checked in payload order.
func buildExpense(req CreateExpenseRequest) (*core.Expense, error) {
	key := core.SanitizeText(req.IdempotencyKey)
	if key == "" {
		return nil, core.ErrEmptyIdempotencyKey
	}

	paise, err := core.ParseAmount(req.Amount)
	if err != nil {
		return nil, core.ErrInvalidAmount
	}

	category := core.SanitizeText(req.Category)
	if category == "" {
		return nil, core.ErrEmptyCategory
	}

	description := core.SanitizeText(req.Description)
	if description == "" {
		return nil, core.ErrEmptyDescription
	}

	date, err := core.NormalizeDate(req.Date)
	if err != nil {
		return nil, core.ErrInvalidDate
	}

	return &core.Expense{
		IdempotencyKey: key,
		Amount:         core.Money{Paise: paise},
		Category:       category,
		Description:    description,
		Date:           date,
	}, nil
}

// List returns expenses filtered by category and ordered per the
// filter.
func (s *ExpenseService) List(ctx context.Context, filter storage.ListFilter) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, filter)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return expenses, nil
}

// Get returns a single expense by ID.
func (s *ExpenseService) Get(ctx context.Context, id int64) (*core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return e, nil
}

// Summary returns the grand total and per-category totals, optionally
// restricted to one category.
func (s *ExpenseService) Summary(ctx context.Context, category string) (*core.Summary, error) {
	totals, err := s.store.CategoryTotals(ctx, category)
	if err != nil {
		return nil, mapStorageError(err)
	}
	summary := &core.Summary{ByCategory: totals}
	for _, ct := range totals {
		summary.Total.Paise += ct.Total.Paise
	}
	return summary, nil
}

// Categories returns the distinct categories in use.
func (s *ExpenseService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return categories, nil
}

// Health reports whether the store answers queries.
func (s *ExpenseService) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return storeUnavailable(err)
	}
	return nil
}
