package ownership

import (
	"math"
	"testing"
	"time"

	"github.com/seenimoa/filinglens/pkg/models"
)

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr int64
		want       models.ChangeType
	}{
		{"added above five percent", 1000, 1060, models.ChangeAdded},
		{"within band", 1000, 1040, models.ChangeUnchanged},
		{"exactly five percent", 1000, 1050, models.ChangeUnchanged},
		{"reduced", 1000, 900, models.ChangeReduced},
		{"new", 0, 500, models.ChangeNew},
		{"closed", 500, 0, models.ChangeClosed},
		{"both empty", 0, 0, models.ChangeUnchanged},
	}
	for _, tt := range tests {
		if got := ClassifyChange(tt.prev, tt.curr); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestComputeChanges(t *testing.T) {
	prev := []models.HolderPosition{
		{FilerCIK: "1", FilerName: "Alpha", Shares: 1000, Value: 10000},
		{FilerCIK: "2", FilerName: "Beta", Shares: 1000, Value: 10000},
		{FilerCIK: "3", FilerName: "Gamma", Shares: 300, Value: 3000},
	}
	curr := []models.HolderPosition{
		{FilerCIK: "1", Shares: 1060, Value: 10600},
		{FilerCIK: "2", Shares: 1040, Value: 10400},
		{FilerCIK: "4", FilerName: "Delta", Shares: 800, Value: 8000},
	}
	changes := ComputeChanges(prev, curr)
	if len(changes) != 4 {
		t.Fatalf("len: got %d, want 4", len(changes))
	}
	want := map[string]models.ChangeType{
		"1": models.ChangeAdded,
		"2": models.ChangeUnchanged,
		"3": models.ChangeClosed,
		"4": models.ChangeNew,
	}
	for _, c := range changes {
		if c.Type != want[c.FilerCIK] {
			t.Errorf("cik %s: got %s, want %s", c.FilerCIK, c.Type, want[c.FilerCIK])
		}
	}
	// Largest absolute value change first.
	if changes[0].FilerCIK != "4" {
		t.Errorf("first: got %s, want 4", changes[0].FilerCIK)
	}
	if changes[len(changes)-1].FilerCIK != "2" {
		t.Errorf("last: got %s, want 2", changes[len(changes)-1].FilerCIK)
	}
	for _, c := range changes {
		if c.FilerCIK == "1" {
			if c.FilerName != "Alpha" {
				t.Errorf("name carried from previous quarter: got %q", c.FilerName)
			}
			if math.Abs(c.ChangePct-6) > 1e-9 {
				t.Errorf("change pct: got %v, want 6", c.ChangePct)
			}
		}
	}

	counts := CountChanges(changes)
	if counts[models.ChangeNew] != 1 || counts[models.ChangeClosed] != 1 {
		t.Errorf("counts: got %v", counts)
	}
}

func TestComputeConcentration(t *testing.T) {
	single := ComputeConcentration("037833100", "2024-Q1", []models.HolderPosition{
		{FilerCIK: "1", FilerName: "Only", Value: 5000},
	})
	if single.HHI != 10000 {
		t.Errorf("single holder HHI: got %v, want 10000", single.HHI)
	}
	if single.Top10Share != 1 || single.LargestHolderPct != 100 || single.LargestHolderName != "Only" {
		t.Errorf("single holder: got %+v", single)
	}

	for _, n := range []int{2, 4, 5, 20} {
		ps := make([]models.HolderPosition, n)
		for i := range ps {
			ps[i] = models.HolderPosition{FilerCIK: string(rune('a' + i)), Value: 1000}
		}
		m := ComputeConcentration("037833100", "2024-Q1", ps)
		if want := 10000.0 / float64(n); math.Abs(m.HHI-want) > 1e-6 {
			t.Errorf("%d equal holders HHI: got %v, want %v", n, m.HHI, want)
		}
		if m.HolderCount != n {
			t.Errorf("%d holders: count %d", n, m.HolderCount)
		}
	}

	twenty := make([]models.HolderPosition, 20)
	for i := range twenty {
		twenty[i] = models.HolderPosition{FilerCIK: string(rune('a' + i)), Value: 1000}
	}
	if m := ComputeConcentration("037833100", "2024-Q1", twenty); math.Abs(m.Top10Share-0.5) > 1e-9 {
		t.Errorf("top10 of 20 equal: got %v, want 0.5", m.Top10Share)
	}

	empty := ComputeConcentration("037833100", "2024-Q1", nil)
	if empty.HHI != 0 || empty.HolderCount != 0 || empty.LargestHolderCIK != "" {
		t.Errorf("empty: got %+v", empty)
	}
}

func TestScoreSentiment(t *testing.T) {
	// A lone unchanged holder zeroes every component.
	score, signal, comps := ScoreSentiment(SentimentInputs{
		PreviousValue: 1000, CurrentValue: 1000,
		PreviousHolders: 1, CurrentHolders: 1,
		HHI: 10000,
	})
	if comps.Sum() != 0 {
		t.Errorf("components: got %+v, want all zero", comps)
	}
	if score != 50 || signal != models.SignalNeutral {
		t.Errorf("neutral: got %d %s, want 50 NEUTRAL", score, signal)
	}

	if score, _, _ := ScoreSentiment(SentimentInputs{}); score != 50 {
		t.Errorf("no data: got %d, want 50", score)
	}

	tests := []struct {
		name string
		in   SentimentInputs
		want models.SentimentSignal
	}{
		{"strong accumulation", SentimentInputs{
			PreviousValue: 1000, CurrentValue: 10000,
			PreviousHolders: 2, CurrentHolders: 10,
			HHI: 1000, NewHolders: 8,
		}, models.SignalBullish},
		{"broad exit", SentimentInputs{
			PreviousValue: 10000, CurrentValue: 1000,
			PreviousHolders: 10, CurrentHolders: 1,
			HHI: 10000, ClosedHolders: 9,
		}, models.SignalBearish},
	}
	for _, tt := range tests {
		score, signal, _ := ScoreSentiment(tt.in)
		if score < 0 || score > 100 {
			t.Errorf("%s: score %d out of range", tt.name, score)
		}
		if signal != tt.want {
			t.Errorf("%s: got %s (%d), want %s", tt.name, signal, score, tt.want)
		}
	}

	// Caps keep extreme inputs in range.
	extreme, _, c := ScoreSentiment(SentimentInputs{
		PreviousValue: 1, CurrentValue: 1 << 40,
		PreviousHolders: 1, CurrentHolders: 1000,
		HHI: 0, NewHolders: 999,
	})
	if extreme != 100 {
		t.Errorf("extreme: got %d, want 100", extreme)
	}
	if c.ValueChange != 25 || c.HolderChange != 25 || c.Concentration != 15 || c.NewVsClosed != 10 {
		t.Errorf("capped components: got %+v", c)
	}
}

func TestSignalFor(t *testing.T) {
	tests := []struct {
		score int
		want  models.SentimentSignal
	}{
		{60, models.SignalBullish},
		{59, models.SignalNeutral},
		{41, models.SignalNeutral},
		{40, models.SignalBearish},
	}
	for _, tt := range tests {
		if got := SignalFor(tt.score); got != tt.want {
			t.Errorf("SignalFor(%d): got %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestComputePutCall(t *testing.T) {
	r := ComputePutCall("037833100", "2024-Q1", 500, 100)
	if r.Ratio == nil || *r.Ratio != 5 {
		t.Errorf("ratio: got %v, want 5", r.Ratio)
	}
	if r := ComputePutCall("037833100", "2024-Q1", 500, 0); r.Ratio != nil {
		t.Errorf("no calls: got %v, want nil", *r.Ratio)
	}
}

func TestDetectAlerts(t *testing.T) {
	values := []models.QuarterValue{
		{CUSIP: "AAAAAAAA1", IssuerName: "Grower", Quarter: "2022-Q1", Value: 2_000_000},
		{CUSIP: "AAAAAAAA1", Quarter: "2023-Q4", Value: 6_000_000},
		{CUSIP: "AAAAAAAA1", Quarter: "2024-Q1", Value: 12_000_000},
		{CUSIP: "BBBBBBBB2", IssuerName: "Small", Quarter: "2022-Q1", Value: 500_000},
		{CUSIP: "BBBBBBBB2", Quarter: "2024-Q1", Value: 50_000_000},
		{CUSIP: "CCCCCCCC3", IssuerName: "Flat", Quarter: "2022-Q1", Value: 2_000_000},
		{CUSIP: "CCCCCCCC3", Quarter: "2024-Q1", Value: 4_000_000},
		{CUSIP: "DDDDDDDD4", IssuerName: "Rocket", Quarter: "2022-Q1", Value: 1_000_000},
		{CUSIP: "DDDDDDDD4", Quarter: "2023-Q4", Value: 2_000_000},
		{CUSIP: "DDDDDDDD4", Quarter: "2024-Q1", Value: 20_000_000},
	}
	p := AlertParams{LookbackMonths: 24, MinChange: 5, MinStartValue: 1_000_000, Limit: 10}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	got := DetectAlerts(values, "2022-Q1", "2024-Q1", p, now)
	if len(got) != 2 {
		t.Fatalf("alerts: got %d, want 2 (%+v)", len(got), got)
	}
	// Rocket jumped 10x in the last quarter and ranks first.
	if got[0].CUSIP != "DDDDDDDD4" || got[1].CUSIP != "AAAAAAAA1" {
		t.Errorf("order: got %s, %s", got[0].CUSIP, got[1].CUSIP)
	}
	a := got[1]
	if a.ChangeMultiple != 6 || a.PreviousValue != 2_000_000 || a.CurrentValue != 12_000_000 {
		t.Errorf("grower: got %+v", a)
	}
	if a.Momentum != 2 || a.IssuerName != "Grower" || !a.ComputedAt.Equal(now) {
		t.Errorf("grower: got %+v", a)
	}

	capped := DetectAlerts(values, "2022-Q1", "2024-Q1", AlertParams{LookbackMonths: 24, MinChange: 5, MaxChange: 8, MinStartValue: 1_000_000}, now)
	if len(capped) != 1 || capped[0].CUSIP != "AAAAAAAA1" {
		t.Errorf("max change: got %+v", capped)
	}
}

func TestAlertParams(t *testing.T) {
	d := AlertParams{LookbackMonths: 24, MinChange: 5, MinStartValue: 1_000_000, Limit: 50}
	p := AlertParams{MinChange: 3}.WithDefaults(d)
	if p.LookbackMonths != 24 || p.MinChange != 3 || p.Limit != 50 || p.MaxChange != 0 {
		t.Errorf("defaults: got %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("valid params: %v", err)
	}
	if p.Quarters() != 8 {
		t.Errorf("quarters: got %d, want 8", p.Quarters())
	}

	bad := []AlertParams{
		{LookbackMonths: 1, MinChange: 5, Limit: 1},
		{LookbackMonths: 24, MinChange: 0, Limit: 1},
		{LookbackMonths: 24, MinChange: 5, MaxChange: 2, Limit: 1},
		{LookbackMonths: 24, MinChange: 5, MinStartValue: -1, Limit: 1},
		{LookbackMonths: 24, MinChange: 5, Limit: 1000},
	}
	for i, b := range bad {
		if err := b.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, b)
		}
	}

	other := p
	other.TickersOnly = true
	if p.Key() == other.Key() {
		t.Errorf("key should differ on ticker restriction: %s", p.Key())
	}
}
