package utils

import "testing"

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"123,456,789", 123456789, true},
		{" 9,223,372,036,854,775,807 ", 9223372036854775807, true},
		{"$1,000", 1000, true},
		{"42.00", 42, true},
		{"42.6", 43, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseInt(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseInt(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	if got := ParseDecimal("$1,234.5678"); got.String() != "1234.5678" {
		t.Errorf("ParseDecimal: got %s", got)
	}
	if !ParseDecimal("junk").IsZero() {
		t.Error("ParseDecimal(junk) should be zero")
	}
}

func TestParsePercent(t *testing.T) {
	if got, ok := ParsePercent("5.2%"); !ok || got != 5.2 {
		t.Errorf("ParsePercent: got %v, %v", got, ok)
	}
	if _, ok := ParsePercent("%"); ok {
		t.Error("ParsePercent(%) should fail")
	}
}
