// Package ingest keeps the analytical store current: an incremental sync
// over the EDGAR current filings feed and a bulk backfill from the
// quarterly data set archives.
package ingest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunSummary reports the outcome of one sync run.
type RunSummary struct {
	RunID     string           `json:"run_id"`
	Source    string           `json:"source"`
	DryRun    bool             `json:"dry_run,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Seen      int              `json:"seen"`
	Processed int              `json:"processed"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Written   map[string]int64 `json:"written,omitempty"` // rows by table
}

func newSummary(source string, now time.Time) *RunSummary {
	return &RunSummary{
		RunID:     uuid.NewString(),
		Source:    source,
		StartedAt: now,
		Written:   make(map[string]int64),
	}
}

// String renders a one-line summary for the CLI.
func (s *RunSummary) String() string {
	mode := ""
	if s.DryRun {
		mode = " (dry run)"
	}
	return fmt.Sprintf("%s%s: seen %d, processed %d, skipped %d, failed %d in %s",
		s.Source, mode, s.Seen, s.Processed, s.Skipped, s.Failed, s.Duration.Round(time.Millisecond))
}
