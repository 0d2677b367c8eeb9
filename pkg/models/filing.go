package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FormFamily groups form types that share a wire shape and storage layout.
type FormFamily string

const (
	Family13F     FormFamily = "13f"     // 13F-HR, 13F-HR/A institutional holdings
	Family13DG    FormFamily = "13dg"    // SC 13D, SC 13G and amendments
	FamilyInsider FormFamily = "form345" // Forms 3, 4, 5 and amendments
)

// FamilyOf returns the form family for a raw form type, or "" when the
// form is not one this system ingests.
func FamilyOf(formType string) FormFamily {
	switch formType {
	case "13F-HR", "13F-HR/A", "13F-NT", "13F-NT/A":
		return Family13F
	case "SC 13D", "SC 13D/A", "SC 13G", "SC 13G/A",
		"SCHEDULE 13D", "SCHEDULE 13D/A", "SCHEDULE 13G", "SCHEDULE 13G/A":
		return Family13DG
	case "3", "3/A", "4", "4/A", "5", "5/A":
		return FamilyInsider
	}
	return ""
}

// Filing is the canonical header of one submitted filing.
// AccessionNumber is globally unique.
type Filing struct {
	AccessionNumber string    `json:"accession_number"`
	FormType        string    `json:"form_type"`
	FilingDate      time.Time `json:"filing_date"`
	PeriodOfReport  time.Time `json:"period_of_report,omitempty"`
	Quarter         string    `json:"quarter,omitempty"` // "2024-Q1"
	FilerCIK        string    `json:"filer_cik"`
	FilerName       string    `json:"filer_name"`
	IssuerCIK       string    `json:"issuer_cik,omitempty"`
	IssuerName      string    `json:"issuer_name,omitempty"`
	IssuerCUSIP     string    `json:"issuer_cusip,omitempty"`
}

// Investment discretion codes used on 13F information tables.
const (
	DiscretionSole   = "SOLE"
	DiscretionShared = "DFND" // shared-defined
	DiscretionOther  = "OTR"  // shared-other
)

// ValidDiscretion reports whether code is one of the fixed discretion codes.
func ValidDiscretion(code string) bool {
	switch code {
	case DiscretionSole, DiscretionShared, DiscretionOther:
		return true
	}
	return false
}

// Put/call flags on 13F lines.
const (
	OptionPut  = "PUT"
	OptionCall = "CALL"
)

// HoldingLine is one row of a 13F information table.
// Value is always in whole dollars after normalization.
type HoldingLine struct {
	AccessionNumber      string `json:"accession_number"`
	RowKey               string `json:"row_key"`
	CUSIP                string `json:"cusip"`
	IssuerName           string `json:"issuer_name"`
	TitleOfClass         string `json:"title_of_class"`
	FIGI                 string `json:"figi,omitempty"`
	Value                int64  `json:"value"`
	Shares               int64  `json:"shares"`
	ShareType            string `json:"share_type"` // "SH" or "PRN"
	PutCall              string `json:"put_call,omitempty"`
	InvestmentDiscretion string `json:"investment_discretion"`
	OtherManager         string `json:"other_manager,omitempty"`
	VotingSole           int64  `json:"voting_sole"`
	VotingShared         int64  `json:"voting_shared"`
	VotingNone           int64  `json:"voting_none"`
}

// IsOption reports whether the line is a PUT or CALL position.
func (h HoldingLine) IsOption() bool {
	return h.PutCall == OptionPut || h.PutCall == OptionCall
}

// IntentFlags are derived from the purpose-of-transaction text of a
// beneficial ownership filing.
type IntentFlags struct {
	Activist       bool `json:"activist"`
	BoardChange    bool `json:"board_change"`
	MergerOrSale   bool `json:"merger_or_sale"`
	CapitalChange  bool `json:"capital_change"`
	Passive        bool `json:"passive"`
	MayAcquireMore bool `json:"may_acquire_more"`
	MayDispose     bool `json:"may_dispose"`
}

// Any reports whether any flag is set.
func (f IntentFlags) Any() bool {
	return f.Activist || f.BoardChange || f.MergerOrSale || f.CapitalChange ||
		f.Passive || f.MayAcquireMore || f.MayDispose
}

// Or merges two flag sets.
func (f IntentFlags) Or(o IntentFlags) IntentFlags {
	return IntentFlags{
		Activist:       f.Activist || o.Activist,
		BoardChange:    f.BoardChange || o.BoardChange,
		MergerOrSale:   f.MergerOrSale || o.MergerOrSale,
		CapitalChange:  f.CapitalChange || o.CapitalChange,
		Passive:        f.Passive || o.Passive,
		MayAcquireMore: f.MayAcquireMore || o.MayAcquireMore,
		MayDispose:     f.MayDispose || o.MayDispose,
	}
}

// ReportingPerson is one filer block on a Schedule 13D/G cover page.
type ReportingPerson struct {
	Name                   string      `json:"name"`
	CIK                    string      `json:"cik,omitempty"`
	Citizenship            string      `json:"citizenship,omitempty"`
	SoleVotingPower        int64       `json:"sole_voting_power"`
	SharedVotingPower      int64       `json:"shared_voting_power"`
	SoleDispositivePower   int64       `json:"sole_dispositive_power"`
	SharedDispositivePower int64       `json:"shared_dispositive_power"`
	AggregateAmount        int64       `json:"aggregate_amount"`
	PercentOfClass         float64     `json:"percent_of_class"`
	TypeCodes              []string    `json:"type_codes,omitempty"` // "IA", "IN", "CO", ...
	Intent                 IntentFlags `json:"intent"`
}

// Signature is one signature block of a schedule filing.
type Signature struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	Date  string `json:"date,omitempty"`
}

// BeneficialOwnershipFiling is a Schedule 13D or 13G, original or amended.
type BeneficialOwnershipFiling struct {
	AccessionNumber        string            `json:"accession_number"`
	FormType               string            `json:"form_type"`
	FilingDate             time.Time         `json:"filing_date"`
	EventDate              time.Time         `json:"event_date,omitempty"`
	IssuerCIK              string            `json:"issuer_cik"`
	IssuerName             string            `json:"issuer_name"`
	FilerCIK               string            `json:"filer_cik"`
	FilerName              string            `json:"filer_name"`
	CUSIP                  string            `json:"cusip,omitempty"`
	ClassTitle             string            `json:"class_title,omitempty"`
	PercentOfClass         float64           `json:"percent_of_class"`
	AggregateAmount        int64             `json:"aggregate_amount"`
	AmendmentNumber        int               `json:"amendment_number"`
	Purpose                string            `json:"purpose,omitempty"`
	SoleVotingTotal        int64             `json:"sole_voting_total"`
	SharedVotingTotal      int64             `json:"shared_voting_total"`
	SoleDispositiveTotal   int64             `json:"sole_dispositive_total"`
	SharedDispositiveTotal int64             `json:"shared_dispositive_total"`
	Intent                 IntentFlags       `json:"intent"`
	Items                  map[int]string    `json:"items,omitempty"` // 13D Items 1-7
	ReportingPersons       []ReportingPerson `json:"reporting_persons,omitempty"`
	Signatures             []Signature       `json:"signatures,omitempty"`
}

// IsActivist reports whether the filing is a 13D (activist-capable) form.
func (b BeneficialOwnershipFiling) IsActivist() bool {
	return b.FormType == "SC 13D" || b.FormType == "SC 13D/A" ||
		b.FormType == "SCHEDULE 13D" || b.FormType == "SCHEDULE 13D/A"
}

// InsiderTransaction is one transaction or holding row of a Form 3/4/5.
type InsiderTransaction struct {
	AccessionNumber   string          `json:"accession_number"`
	SequenceKey       string          `json:"sequence_key"`
	FormType          string          `json:"form_type"`
	FilingDate        time.Time       `json:"filing_date,omitempty"`
	IssuerCIK         string          `json:"issuer_cik"`
	IssuerName        string          `json:"issuer_name"`
	IssuerTicker      string          `json:"issuer_ticker,omitempty"`
	OwnerCIK          string          `json:"owner_cik"`
	OwnerName         string          `json:"owner_name"`
	IsDirector        bool            `json:"is_director"`
	IsOfficer         bool            `json:"is_officer"`
	IsTenPercentOwner bool            `json:"is_ten_percent_owner"`
	IsOther           bool            `json:"is_other"`
	OfficerTitle      string          `json:"officer_title,omitempty"`
	SecurityTitle     string          `json:"security_title"`
	TransactionDate   time.Time       `json:"transaction_date,omitempty"`
	TransactionCode   string          `json:"transaction_code,omitempty"`
	Shares            decimal.Decimal `json:"shares"`
	Price             decimal.Decimal `json:"price"`
	AcquiredDisposed  string          `json:"acquired_disposed,omitempty"` // "A" or "D"
	SharesOwnedAfter  decimal.Decimal `json:"shares_owned_after"`
	DirectOwnership   bool            `json:"direct_ownership"`
	Derivative        bool            `json:"derivative"`
	HoldingOnly       bool            `json:"holding_only"`
}

// OwnershipDocument is the parsed content of one Form 3/4/5.
type OwnershipDocument struct {
	AccessionNumber string               `json:"accession_number"`
	FormType        string               `json:"form_type"`
	PeriodOfReport  time.Time            `json:"period_of_report,omitempty"`
	IssuerCIK       string               `json:"issuer_cik"`
	IssuerName      string               `json:"issuer_name"`
	IssuerTicker    string               `json:"issuer_ticker,omitempty"`
	Transactions    []InsiderTransaction `json:"transactions"`
}
