// Package core provides the expense domain model and the pure value
// normalization helpers shared by the service and client layers.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts a decimal amount string to paise.
//
// Only plain positive decimals are accepted: digits with an optional
// fraction of one or two digits. Signs, letters, scientific notation and
// more than two fraction digits are all rejected. The conversion is exact
// decimal-string arithmetic, never floating point.
//
// Examples:
//
//	ParseAmount("10")    -> 1000, nil
//	ParseAmount("10.5")  -> 1050, nil
//	ParseAmount("10.50") -> 1050, nil
//	ParseAmount("10.999") -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		return 0, ErrInvalidAmount
	}
	if hasFrac && (len(frac) < 1 || len(frac) > 2) {
		return 0, ErrInvalidAmount
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, ErrInvalidAmount
	}

	iv, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Guard the *100 scaling below against overflow.
	if iv > math.MaxInt64/100 {
		return 0, ErrInvalidAmount
	}

	var fracPaise int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		fracPaise, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
	}

	paise := iv*100 + fracPaise
	if paise <= 0 {
		return 0, ErrInvalidAmount
	}
	return paise, nil
}

// FormatAmount renders paise as a decimal string, the inverse of
// ParseAmount. The fractional part is always two digits and the sign is
// preserved: FormatAmount(1050) == "10.50", FormatAmount(-5) == "-0.05".
func FormatAmount(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s%d.%02d", sign, paise/100, paise%100)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
