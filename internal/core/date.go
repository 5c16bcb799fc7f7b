package core

import (
	"strings"
	"time"
)

// dateLayouts are the accepted inputs for NormalizeDate, tried in order.
// The plain calendar form is what the form widget submits; the RFC3339
// variants cover clients that serialize a full timestamp.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// NormalizeDate parses a date string and truncates it to a
// timezone-independent calendar date (midnight UTC). Any time-of-day
// component is discarded so that equal dates compare equal no matter what
// timezone the client submitted from.
func NormalizeDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, ErrInvalidDate
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the canonical "YYYY-MM-DD" form.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// SanitizeText trims surrounding whitespace and strips control characters
// (except tab, newline and carriage return). Callers treat an empty result
// as a missing field.
func SanitizeText(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
