package utils

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestQuarterFromFilingDate(t *testing.T) {
	tests := []struct {
		filed string
		want  string
	}{
		{"15-JAN-2024", "2023-Q4"},
		{"10-MAR-2024", "2024-Q1"},
		{"14-FEB-2024", "2023-Q4"},
		{"15-MAY-2024", "2024-Q1"},
		{"2024-08-14", "2024-Q2"},
	}
	for _, tt := range tests {
		t.Run(tt.filed, func(t *testing.T) {
			d := ParseDate(tt.filed)
			if d.IsZero() {
				t.Fatalf("ParseDate(%q) returned zero time", tt.filed)
			}
			if got := QuarterFromFilingDate(d); got != tt.want {
				t.Errorf("QuarterFromFilingDate(%s) = %q, want %q", tt.filed, got, tt.want)
			}
		})
	}
}

func TestQuarterFromPeriod(t *testing.T) {
	if got := QuarterFromPeriod(date(2023, time.December, 31)); got != "2023-Q4" {
		t.Errorf("got %q", got)
	}
	if got := QuarterFromPeriod(date(2024, time.April, 1)); got != "2024-Q2" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeValue(t *testing.T) {
	if got := NormalizeValue(500, date(2022, time.December, 1)); got != 500000 {
		t.Errorf("pre-2023 value: got %d, want 500000", got)
	}
	if got := NormalizeValue(500, date(2023, time.June, 1)); got != 500 {
		t.Errorf("post-2023 value: got %d, want 500", got)
	}
	if got := NormalizeValue(500, date(2023, time.January, 3)); got != 500 {
		t.Errorf("cutover day: got %d, want 500", got)
	}
	if got := NormalizeValue(500, date(2023, time.January, 2)); got != 500000 {
		t.Errorf("day before cutover: got %d, want 500000", got)
	}
}

func TestQuarterArithmetic(t *testing.T) {
	if got, _ := ShiftQuarter("2024-Q1", -1); got != "2023-Q4" {
		t.Errorf("ShiftQuarter -1: got %q", got)
	}
	if got, _ := ShiftQuarter("2023-Q3", -8); got != "2021-Q3" {
		t.Errorf("ShiftQuarter -8: got %q", got)
	}
	if got, _ := ShiftQuarter("2023-Q4", 1); got != "2024-Q1" {
		t.Errorf("ShiftQuarter +1: got %q", got)
	}

	end, err := QuarterEnd("2024-Q4")
	if err != nil || !end.Equal(date(2024, time.December, 31)) {
		t.Errorf("QuarterEnd: got %v, %v", end, err)
	}

	qs, err := QuartersBetween("2023-Q3", "2024-Q2")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2023-Q3", "2023-Q4", "2024-Q1", "2024-Q2"}
	if len(qs) != len(want) {
		t.Fatalf("QuartersBetween: got %v", qs)
	}
	for i := range want {
		if qs[i] != want[i] {
			t.Errorf("QuartersBetween[%d]: got %q, want %q", i, qs[i], want[i])
		}
	}

	if _, err := QuartersBetween("2024-Q2", "2023-Q1"); err == nil {
		t.Error("reversed range should fail")
	}
	if a, _ := ArchiveQuarter("2024-Q1"); a != "2024q1" {
		t.Errorf("ArchiveQuarter: got %q", a)
	}
}

func TestValidateQuarter(t *testing.T) {
	if got, err := ValidateQuarter("2024-q3"); err != nil || got != "2024-Q3" {
		t.Errorf("ValidateQuarter: got %q, %v", got, err)
	}
	for _, bad := range []string{"2024Q3", "2024-Q5", "24-Q1", "2024-Q1; DROP TABLE filings"} {
		if _, err := ValidateQuarter(bad); err == nil {
			t.Errorf("ValidateQuarter(%q) should fail", bad)
		}
	}
}
