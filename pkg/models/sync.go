package models

import "time"

// SyncStatus is the lifecycle state recorded for a sync source.
type SyncStatus string

const (
	SyncRunning SyncStatus = "running"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// SyncState is the persisted cursor of one ingestion source.
type SyncState struct {
	Source           string     `json:"source"`
	LastFilingDate   time.Time  `json:"last_filing_date,omitempty"`
	LastAccession    string     `json:"last_accession,omitempty"`
	Status           SyncStatus `json:"status"`
	Error            string     `json:"error,omitempty"`
	LastRunAt        time.Time  `json:"last_run_at,omitempty"`
	LastRunID        string     `json:"last_run_id,omitempty"`
	RecordsProcessed int        `json:"records_processed"`
}

// BackfillStatus is the state of one quarter of a bulk import.
type BackfillStatus string

const (
	BackfillPending     BackfillStatus = "pending"
	BackfillDownloading BackfillStatus = "downloading"
	BackfillExtracting  BackfillStatus = "extracting"
	BackfillProcessing  BackfillStatus = "processing"
	BackfillComplete    BackfillStatus = "complete"
	BackfillFailed      BackfillStatus = "failed"
)

// BackfillProgress tracks a bulk archive import keyed by family and quarter.
type BackfillProgress struct {
	Family     FormFamily     `json:"family"`
	Quarter    string         `json:"quarter"` // "2024q1" archive naming
	Status     BackfillStatus `json:"status"`
	RowsLoaded int64          `json:"rows_loaded"`
	Error      string         `json:"error,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
