package models

import "time"

// ChangeType classifies how a holder's position moved between two quarters.
type ChangeType string

const (
	ChangeNew       ChangeType = "NEW"
	ChangeClosed    ChangeType = "CLOSED"
	ChangeAdded     ChangeType = "ADDED"
	ChangeReduced   ChangeType = "REDUCED"
	ChangeUnchanged ChangeType = "UNCHANGED"
)

// HolderPosition is one holder's aggregated position in a security for a quarter.
type HolderPosition struct {
	FilerCIK  string `json:"filer_cik"`
	FilerName string `json:"filer_name"`
	Shares    int64  `json:"shares"`
	Value     int64  `json:"value"`
}

// PositionChange compares a holder's position across two quarters.
type PositionChange struct {
	FilerCIK       string     `json:"filer_cik"`
	FilerName      string     `json:"filer_name"`
	PreviousShares int64      `json:"previous_shares"`
	CurrentShares  int64      `json:"current_shares"`
	PreviousValue  int64      `json:"previous_value"`
	CurrentValue   int64      `json:"current_value"`
	ChangePct      float64    `json:"change_pct"`
	Type           ChangeType `json:"type"`
}

// ConcentrationMetrics describes how concentrated ownership of a security is.
type ConcentrationMetrics struct {
	CUSIP             string  `json:"cusip"`
	Quarter           string  `json:"quarter"`
	HolderCount       int     `json:"holder_count"`
	TotalValue        int64   `json:"total_value"`
	Top10Share        float64 `json:"top10_share"` // 0..1
	HHI               float64 `json:"hhi"`         // 0..10000
	LargestHolderName string  `json:"largest_holder_name,omitempty"`
	LargestHolderCIK  string  `json:"largest_holder_cik,omitempty"`
	LargestHolderPct  float64 `json:"largest_holder_pct"`
}

// SentimentSignal is the coarse direction derived from a sentiment score.
type SentimentSignal string

const (
	SignalBullish SentimentSignal = "BULLISH"
	SignalBearish SentimentSignal = "BEARISH"
	SignalNeutral SentimentSignal = "NEUTRAL"
)

// SentimentComponents are the individually capped inputs of a score.
type SentimentComponents struct {
	ValueChange   float64 `json:"value_change"`
	HolderChange  float64 `json:"holder_change"`
	Concentration float64 `json:"concentration"`
	NewVsClosed   float64 `json:"new_vs_closed"`
}

// Sum adds the components.
func (c SentimentComponents) Sum() float64 {
	return c.ValueChange + c.HolderChange + c.Concentration + c.NewVsClosed
}

// SentimentScore is the institutional sentiment for one security.
type SentimentScore struct {
	CUSIP           string              `json:"cusip"`
	Quarter         string              `json:"quarter"`
	PreviousQuarter string              `json:"previous_quarter"`
	Score           int                 `json:"score"` // 0..100
	Signal          SentimentSignal     `json:"signal"`
	Components      SentimentComponents `json:"components"`
	NewHolders      int                 `json:"new_holders"`
	ClosedHolders   int                 `json:"closed_holders"`
	HolderCount     int                 `json:"holder_count"`
}

// PutCallRatio is the notional put/call ratio for a quarter. Ratio is nil
// when there are no CALL holdings.
type PutCallRatio struct {
	CUSIP     string   `json:"cusip"`
	Quarter   string   `json:"quarter"`
	PutValue  int64    `json:"put_value"`
	CallValue int64    `json:"call_value"`
	Ratio     *float64 `json:"ratio"`
}

// QuarterValue is the aggregate institutional value of a security in a quarter.
type QuarterValue struct {
	CUSIP      string `json:"cusip"`
	IssuerName string `json:"issuer_name"`
	Quarter    string `json:"quarter"`
	Value      int64  `json:"value"`
}

// Alert flags a security whose institutional value grew sharply.
type Alert struct {
	CUSIP          string    `json:"cusip"`
	Ticker         string    `json:"ticker,omitempty"`
	IssuerName     string    `json:"issuer_name"`
	StartQuarter   string    `json:"start_quarter"`
	EndQuarter     string    `json:"end_quarter"`
	PreviousValue  int64     `json:"previous_value"`
	CurrentValue   int64     `json:"current_value"`
	ChangeMultiple float64   `json:"change_multiple"`
	Momentum       float64   `json:"momentum"` // last quarter over the one before
	LookbackMonths int       `json:"lookback_months"`
	LargestHolder  string    `json:"largest_holder,omitempty"`
	Acknowledged   bool      `json:"acknowledged"`
	ComputedAt     time.Time `json:"computed_at"`
}
