// Package utils provides identifier validation, quarter arithmetic, number
// parsing, and display formatting shared across filinglens.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatUSD formats whole dollars with thousands separators ($12,345,678).
func FormatUSD(amount int64) string {
	if amount < 0 {
		return "-$" + groupThousands(uint64(-amount))
	}
	return "$" + groupThousands(uint64(amount))
}

// FormatUSDCompact formats dollars in compact notation.
// e.g., 1500000 → "$1.5M", 2300000000 → "$2.3B"
func FormatUSDCompact(amount float64) string {
	prefix := "$"
	if amount < 0 {
		prefix = "-$"
	}
	amount = math.Abs(amount)

	switch {
	case amount >= 1e12:
		return prefix + formatWithDecimals(amount/1e12) + "T"
	case amount >= 1e9:
		return prefix + formatWithDecimals(amount/1e9) + "B"
	case amount >= 1e6:
		return prefix + formatWithDecimals(amount/1e6) + "M"
	case amount >= 1e3:
		return prefix + formatWithDecimals(amount/1e3) + "K"
	default:
		return fmt.Sprintf("%s%.0f", prefix, amount)
	}
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatShares formats a share count with thousands separators.
func FormatShares(n int64) string {
	if n < 0 {
		return "-" + groupThousands(uint64(-n))
	}
	return groupThousands(uint64(n))
}

func groupThousands(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// formatWithDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func formatWithDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
