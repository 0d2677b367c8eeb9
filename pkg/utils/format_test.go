package utils

import "testing"

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "$0"},
		{999, "$999"},
		{1000, "$1,000"},
		{123456, "$123,456"},
		{1234567, "$1,234,567"},
		{123456789, "$123,456,789"},
		{-1234, "-$1,234"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatUSD(tt.input); got != tt.expected {
				t.Errorf("FormatUSD(%d) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatUSDCompact(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{500, "$500"},
		{1500, "$1.5K"},
		{1_000_000, "$1M"},
		{12_340_000, "$12.34M"},
		{2_300_000_000, "$2.3B"},
		{4e12, "$4T"},
		{-2_500_000, "-$2.5M"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatUSDCompact(tt.input); got != tt.expected {
				t.Errorf("FormatUSDCompact(%f) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{2.45, "+2.45%"},
		{0, "+0.00%"},
		{-1.234, "-1.23%"},
	}
	for _, tt := range tests {
		if got := FormatPct(tt.input); got != tt.expected {
			t.Errorf("FormatPct(%f) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestFormatShares(t *testing.T) {
	if got := FormatShares(1234567); got != "1,234,567" {
		t.Errorf("FormatShares: got %s", got)
	}
	if got := FormatShares(-12); got != "-12" {
		t.Errorf("FormatShares negative: got %s", got)
	}
}
