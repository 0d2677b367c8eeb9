package utils

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseInt parses an integer that may carry thousands separators, a
// currency sign, surrounding whitespace or a trailing ".00". It never
// goes through float64 so large share counts stay exact.
func ParseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		frac := strings.Trim(s[i+1:], "0")
		if frac != "" {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return 0, false
			}
			return d.Round(0).IntPart(), true
		}
		s = s[:i]
	}
	if s == "" || s == "-" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseIntOrZero is ParseInt with a zero fallback.
func ParseIntOrZero(s string) int64 {
	n, _ := ParseInt(s)
	return n
}

// ParseDecimal parses a decimal amount, tolerating thousands separators and
// a leading currency sign. It returns decimal.Zero on failure.
func ParseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParsePercent parses "5.2%", "5.2 %" or "5.2" into 5.2.
func ParsePercent(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
