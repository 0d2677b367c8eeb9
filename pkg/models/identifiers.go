package models

import "time"

// CusipMapping is the resolved symbology for a CUSIP. A mapping that could
// not be resolved is still cached, with Ticker empty and Error set, so the
// symbology service is not asked again on every call.
type CusipMapping struct {
	CUSIP        string    `json:"cusip"`
	Ticker       string    `json:"ticker,omitempty"`
	FIGI         string    `json:"figi,omitempty"`
	Name         string    `json:"name,omitempty"`
	ExchangeCode string    `json:"exchange_code,omitempty"`
	SecurityType string    `json:"security_type,omitempty"`
	MarketSector string    `json:"market_sector,omitempty"`
	Error        string    `json:"error,omitempty"`
	CachedAt     time.Time `json:"cached_at"`
	// Transient marks a failure that may clear on retry. Transient
	// mappings are not cached.
	Transient bool `json:"transient,omitempty"`
}

// Mapped reports whether the CUSIP resolved to a ticker.
func (m CusipMapping) Mapped() bool {
	return m.Ticker != "" && m.Error == ""
}

// FilerName is a cached CIK to display-name resolution.
type FilerName struct {
	CIK      string    `json:"cik"`
	Name     string    `json:"name"`
	CachedAt time.Time `json:"cached_at"`
}

// NameMatch is one fuzzy search hit over the filer name index.
type NameMatch struct {
	CIK   string  `json:"cik"`
	Name  string  `json:"name"`
	Score float64 `json:"score"` // 0..1, higher is better
	Kind  string  `json:"kind"`  // "exact", "words", "prefix", "fuzzy"
}
