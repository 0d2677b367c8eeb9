package models

import (
	"encoding/json"
	"testing"
)

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		form string
		want FormFamily
	}{
		{"13F-HR", Family13F},
		{"13F-HR/A", Family13F},
		{"13F-NT", Family13F},
		{"SC 13D", Family13DG},
		{"SC 13G/A", Family13DG},
		{"SCHEDULE 13D/A", Family13DG},
		{"4", FamilyInsider},
		{"5/A", FamilyInsider},
		{"S-1", ""},
		{"10-K", ""},
	}
	for _, tt := range tests {
		if got := FamilyOf(tt.form); got != tt.want {
			t.Errorf("FamilyOf(%q): got %q, want %q", tt.form, got, tt.want)
		}
	}
}

func TestIntentFlags(t *testing.T) {
	var none IntentFlags
	if none.Any() {
		t.Error("zero flags should report none set")
	}
	merged := IntentFlags{Activist: true}.Or(IntentFlags{MayDispose: true})
	if !merged.Activist || !merged.MayDispose || merged.Passive {
		t.Errorf("Or: got %+v", merged)
	}
	if !merged.Any() {
		t.Error("merged flags should report set")
	}
}

func TestIsActivist(t *testing.T) {
	for form, want := range map[string]bool{
		"SC 13D":         true,
		"SC 13D/A":       true,
		"SCHEDULE 13D":   true,
		"SC 13G":         false,
		"SCHEDULE 13G/A": false,
	} {
		if got := (BeneficialOwnershipFiling{FormType: form}).IsActivist(); got != want {
			t.Errorf("IsActivist(%q): got %v, want %v", form, got, want)
		}
	}
}

func TestHoldingLineIsOption(t *testing.T) {
	if (HoldingLine{}).IsOption() {
		t.Error("plain line reported as option")
	}
	if !(HoldingLine{PutCall: OptionPut}).IsOption() || !(HoldingLine{PutCall: OptionCall}).IsOption() {
		t.Error("PUT/CALL lines not reported as options")
	}
}

func TestValidDiscretion(t *testing.T) {
	for _, code := range []string{DiscretionSole, DiscretionShared, DiscretionOther} {
		if !ValidDiscretion(code) {
			t.Errorf("ValidDiscretion(%q) = false", code)
		}
	}
	if ValidDiscretion("SHARED") {
		t.Error("unknown code accepted")
	}
}

func TestCusipMappingMapped(t *testing.T) {
	if !(CusipMapping{CUSIP: "037833100", Ticker: "AAPL"}).Mapped() {
		t.Error("ticker mapping should be mapped")
	}
	if (CusipMapping{CUSIP: "037833100", Ticker: "AAPL", Error: "stale"}).Mapped() {
		t.Error("mapping with error should not be mapped")
	}
	if (CusipMapping{CUSIP: "037833100"}).Mapped() {
		t.Error("empty ticker should not be mapped")
	}
}

func TestSentimentComponentsSum(t *testing.T) {
	c := SentimentComponents{ValueChange: 10, HolderChange: -5, Concentration: 3, NewVsClosed: 2}
	if got := c.Sum(); got != 10 {
		t.Errorf("Sum: got %v, want 10", got)
	}
}

func TestPutCallRatioJSON(t *testing.T) {
	data, err := json.Marshal(PutCallRatio{CUSIP: "037833100", Quarter: "2024-Q1", PutValue: 10})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v, ok := decoded["ratio"]; !ok || v != nil {
		t.Errorf("ratio without calls should encode as null, got %v", v)
	}
}
