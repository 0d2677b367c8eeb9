package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FilingLagDays is the statutory window between a quarter end and the
// 13F deadline. A filing date minus this lag falls inside the reported quarter.
const FilingLagDays = 45

// UnitChangeDate is the first filing date on which 13F values are reported
// in whole dollars instead of thousands.
var UnitChangeDate = time.Date(2023, time.January, 3, 0, 0, 0, 0, time.UTC)

var quarterPattern = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)

// QuarterOf returns the "YYYY-QN" label of the calendar quarter containing t.
func QuarterOf(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%d-Q%d", t.Year(), q)
}

// QuarterFromPeriod labels the quarter of a report-period date.
func QuarterFromPeriod(period time.Time) string {
	return QuarterOf(period)
}

// QuarterFromFilingDate infers the reported quarter of a filing from its
// filing date using the 45-day lag.
func QuarterFromFilingDate(filed time.Time) string {
	return QuarterOf(filed.AddDate(0, 0, -FilingLagDays))
}

// ParseQuarter validates a "YYYY-QN" label and returns year and quarter.
func ParseQuarter(label string) (year, quarter int, err error) {
	m := quarterPattern.FindStringSubmatch(strings.TrimSpace(strings.ToUpper(label)))
	if m == nil {
		return 0, 0, &ValidationError{Field: "quarter", Value: label, Reason: "must look like 2024-Q1"}
	}
	year, _ = strconv.Atoi(m[1])
	quarter, _ = strconv.Atoi(m[2])
	return year, quarter, nil
}

// ValidateQuarter returns the canonical form of a quarter label.
func ValidateQuarter(label string) (string, error) {
	y, q, err := ParseQuarter(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-Q%d", y, q), nil
}

// QuarterEnd returns the last day of the labelled quarter.
func QuarterEnd(label string) (time.Time, error) {
	y, q, err := ParseQuarter(label)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, time.Month(q*3)+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1), nil
}

// ShiftQuarter moves a quarter label by n quarters (negative for earlier).
func ShiftQuarter(label string, n int) (string, error) {
	y, q, err := ParseQuarter(label)
	if err != nil {
		return "", err
	}
	idx := y*4 + (q - 1) + n
	return fmt.Sprintf("%d-Q%d", idx/4, idx%4+1), nil
}

// ArchiveQuarter converts "2024-Q1" to the "2024q1" naming of bulk archives.
func ArchiveQuarter(label string) (string, error) {
	y, q, err := ParseQuarter(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%dq%d", y, q), nil
}

// QuartersBetween lists quarter labels from -> to inclusive.
func QuartersBetween(from, to string) ([]string, error) {
	fy, fq, err := ParseQuarter(from)
	if err != nil {
		return nil, err
	}
	ty, tq, err := ParseQuarter(to)
	if err != nil {
		return nil, err
	}
	start, end := fy*4+fq-1, ty*4+tq-1
	if end < start {
		return nil, &ValidationError{Field: "quarter range", Value: from + ".." + to, Reason: "end precedes start"}
	}
	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, fmt.Sprintf("%d-Q%d", i/4, i%4+1))
	}
	return out, nil
}

// NormalizeValue converts a raw 13F value into whole dollars. Filings made
// before UnitChangeDate report thousands.
func NormalizeValue(raw int64, filed time.Time) int64 {
	if filed.Before(UnitChangeDate) {
		return raw * 1000
	}
	return raw
}

// ParseDate parses the date layouts found across EDGAR feeds, headers,
// XML documents and bulk data sets. It returns the zero time on failure.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		"2006-01-02",
		"02-Jan-2006",
		"20060102",
		"01/02/2006",
		"01-02-2006",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05-07:00",
		time.RFC3339,
		"20060102150405",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
