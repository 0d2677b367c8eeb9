package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ValidationError reports a caller-supplied identifier or parameter that
// failed validation. It is returned before any SQL is built from the value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

var (
	cusipPattern  = regexp.MustCompile(`^[0-9A-Z]{9}$`)
	cikPattern    = regexp.MustCompile(`^[0-9]{1,10}$`)
	tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)
)

// NormalizeCUSIP uppercases and trims a CUSIP without validating it.
func NormalizeCUSIP(cusip string) string {
	return strings.ToUpper(strings.TrimSpace(cusip))
}

// IsCUSIP reports whether s is a structurally valid 9-character CUSIP.
func IsCUSIP(s string) bool {
	return cusipPattern.MatchString(s)
}

// ValidateCUSIP normalizes and validates a CUSIP.
func ValidateCUSIP(cusip string) (string, error) {
	c := NormalizeCUSIP(cusip)
	if !IsCUSIP(c) {
		return "", &ValidationError{Field: "cusip", Value: cusip, Reason: "must be 9 alphanumeric characters"}
	}
	return c, nil
}

// CUSIPCheckDigitOK verifies the modulus-10 "double add double" check digit.
func CUSIPCheckDigitOK(cusip string) bool {
	if !IsCUSIP(cusip) || cusip[8] < '0' || cusip[8] > '9' {
		return false
	}
	sum := 0
	for i := 0; i < 8; i++ {
		c := cusip[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'A' && c <= 'Z':
			v = int(c-'A') + 10
		}
		if i%2 == 1 {
			v *= 2
		}
		sum += v/10 + v%10
	}
	return (10-sum%10)%10 == int(cusip[8]-'0')
}

// TrimCIK strips leading zeros, the comparison form of a CIK.
func TrimCIK(cik string) string {
	t := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if t == "" && strings.TrimSpace(cik) != "" {
		return "0"
	}
	return t
}

// PadCIK pads a CIK number to 10 digits with leading zeros, the form used in
// archive URLs.
func PadCIK(cik string) string {
	cik = TrimCIK(cik)
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

// ValidateCIK checks that cik is numeric and returns its trimmed form.
func ValidateCIK(cik string) (string, error) {
	c := strings.TrimSpace(cik)
	if !cikPattern.MatchString(c) {
		return "", &ValidationError{Field: "cik", Value: cik, Reason: "must be 1-10 digits"}
	}
	return TrimCIK(c), nil
}

// IsSimpleTicker reports whether t is a plain 1-5 letter exchange ticker.
func IsSimpleTicker(t string) bool {
	return tickerPattern.MatchString(t)
}

// ValidateLimit checks a result-size limit against an inclusive range.
func ValidateLimit(limit, max int) error {
	if limit < 1 || limit > max {
		return &ValidationError{Field: "limit", Value: strconv.Itoa(limit), Reason: fmt.Sprintf("must be between 1 and %d", max)}
	}
	return nil
}

// NormalizeAccession returns the dashed 10-2-6 form of an accession number
// (0000950123-24-000123), accepting the 18-digit undashed form too.
func NormalizeAccession(acc string) string {
	a := strings.TrimSpace(acc)
	if len(a) == 18 && !strings.Contains(a, "-") {
		return a[:10] + "-" + a[10:12] + "-" + a[12:]
	}
	return a
}

// AccessionPath returns the undashed accession used in archive paths.
func AccessionPath(acc string) string {
	return strings.ReplaceAll(strings.TrimSpace(acc), "-", "")
}
