// Package sheets exports expenses to a Google Sheet through a service
// account. Configuration comes from the environment so the worker can
// run without flags.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kharcha/internal/core"
	"kharcha/internal/export"
)

var _ export.Appender = (*Appender)(nil)

type Appender struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewFromEnv builds an appender from GOOGLE_SPREADSHEET_ID,
// GOOGLE_SHEET_NAME and service account credentials taken from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Appender, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("GOOGLE_SPREADSHEET_ID is required")
	}
	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Expenses"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, err
	}

	return &Appender{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	inlineJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	credentialsFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inlineJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inlineJSON != "":
		credentialsJSON = []byte(inlineJSON)
	case credentialsFile != "":
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Append adds one row to the configured sheet and returns the updated
// range as the reference.
func (a *Appender) Append(ctx context.Context, e core.Expense) (string, error) {
	vr := &gsheet.ValueRange{Values: [][]any{{
		e.ID,
		e.IdempotencyKey,
		e.Date.String(),
		e.Category,
		e.Description,
		e.Amount.String(),
	}}}

	resp, err := a.svc.Spreadsheets.Values.
		Append(a.spreadsheetID, a.sheetName+"!A:F", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", a.sheetName, err)
	}

	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return a.sheetName, nil
}
