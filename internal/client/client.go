// Package client is a Go consumer of the expense API. It owns the
// client half of the idempotency contract: key reuse across retries,
// key rotation on payload change, and the retry-safe wording of error
// messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// retrySafeSuffix is appended to errors where resubmitting the same
// payload cannot create a duplicate.
const retrySafeSuffix = " You can retry safely without creating a duplicate."

// ExpensePayload is what callers submit. Amount is the decimal string
// the user typed; the server parses and validates it.
type ExpensePayload struct {
	Amount      string
	Category    string
	Description string
	Date        string
}

// canonical returns a stable encoding of the payload for key matching.
func (p ExpensePayload) canonical() string {
	return p.Amount + "\x00" + p.Category + "\x00" + p.Description + "\x00" + p.Date
}

// Expense mirrors the server's wire form.
type Expense struct {
	ID               int64  `json:"id"`
	IdempotencyKey   string `json:"idempotencyKey"`
	Amount           string `json:"amount"`
	AmountMinorUnits int64  `json:"amountMinorUnits"`
	Category         string `json:"category"`
	Description      string `json:"description"`
	Date             string `json:"date"`
	CreatedAt        string `json:"createdAt"`
}

// SubmitError describes a failed submission. Network reports transport
// failures where no HTTP response arrived.
type SubmitError struct {
	Status     int
	APIMessage string
	Network    bool
	Err        error
}

func (e *SubmitError) Error() string {
	return FormatSubmitError(e)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Retryable reports whether resubmitting with the same key is safe and
// worthwhile: server-side failures, throttling, and network errors.
func (e *SubmitError) Retryable() bool {
	return e.Network || e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// FormatSubmitError produces the user-facing message. Retryable
// failures carry the retry-safe suffix so users resubmit without fear
// of double entries.
func FormatSubmitError(e *SubmitError) string {
	if e.Network {
		return "Network error." + retrySafeSuffix
	}
	msg := e.APIMessage
	if msg == "" {
		msg = "Unexpected server error."
	}
	if e.Retryable() {
		return msg + retrySafeSuffix
	}
	return msg
}

// Client talks to the expense API.
type Client struct {
	baseURL string
	http    *http.Client
	keys    *KeyManager
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		keys:    NewKeyManager(),
	}
}

// CreateExpense submits the payload. The idempotency key persists
// across failed attempts and is cleared only once the server confirms
// success. wasExisting reports that the server replayed an earlier
// submission instead of creating a new row.
func (c *Client) CreateExpense(ctx context.Context, p ExpensePayload) (expense *Expense, wasExisting bool, err error) {
	key := c.keys.KeyFor(p.canonical())

	body, err := json.Marshal(map[string]string{
		"idempotencyKey": key,
		"amount":         p.Amount,
		"category":       p.Category,
		"description":    p.Description,
		"date":           p.Date,
	})
	if err != nil {
		return nil, false, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/expenses", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, &SubmitError{Network: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, false, &SubmitError{Status: resp.StatusCode, APIMessage: apiErr.Error}
	}

	var e Expense
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}

	// Confirmed durable on the server; the next submission is a new
	// expense even if it looks identical.
	c.keys.Clear()

	return &e, resp.StatusCode == http.StatusOK, nil
}

// ListExpenses fetches expenses, optionally filtered by category and
// sorted by date.
func (c *Client) ListExpenses(ctx context.Context, category string, dateDesc bool) ([]Expense, error) {
	query := url.Values{}
	if category != "" {
		query.Set("category", category)
	}
	if dateDesc {
		query.Set("sort", "date_desc")
	}
	endpoint := c.baseURL + "/api/expenses"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &SubmitError{Network: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, &SubmitError{Status: resp.StatusCode, APIMessage: apiErr.Error}
	}

	var expenses []Expense
	if err := json.NewDecoder(resp.Body).Decode(&expenses); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return expenses, nil
}

// Health reports whether the API and its store are up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &SubmitError{Network: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &SubmitError{Status: resp.StatusCode, APIMessage: "Service unhealthy."}
	}
	return nil
}
