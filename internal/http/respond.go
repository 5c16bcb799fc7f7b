package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/services"
)

// expenseResponse is the wire form of an expense. Amount travels both
// as a display string and as minor units so clients never re-parse
// decimals.
type expenseResponse struct {
	ID               int64  `json:"id"`
	IdempotencyKey   string `json:"idempotencyKey"`
	Amount           string `json:"amount"`
	AmountMinorUnits int64  `json:"amountMinorUnits"`
	Category         string `json:"category"`
	Description      string `json:"description"`
	Date             string `json:"date"`
	CreatedAt        string `json:"createdAt"`
}

func toExpenseResponse(e *core.Expense) expenseResponse {
	return expenseResponse{
		ID:               e.ID,
		IdempotencyKey:   e.IdempotencyKey,
		Amount:           e.Amount.String(),
		AmountMinorUnits: e.Amount.Paise,
		Category:         e.Category,
		Description:      e.Description,
		Date:             e.Date.String(),
		CreatedAt:        e.CreatedAt.Format(time.RFC3339),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders a service error with its mapped status. Anything
// that is not a *services.Error becomes a 500 with the generic message.
func writeError(w http.ResponseWriter, err error) {
	var serr *services.Error
	if errors.As(err, &serr) {
		writeJSON(w, serr.HTTPStatus(), errorResponse{Error: serr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Unexpected server error."})
}

// asString returns v if it decoded as a JSON string, otherwise "".
// Fields like category or date carry no meaning as numbers, so a wrong
// type reads as absent and fails validation with the field's message.
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// stringValue renders a decoded JSON field as the string the validator
// expects. Numbers are accepted for amount-like fields; anything else
// non-string is treated as absent.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
