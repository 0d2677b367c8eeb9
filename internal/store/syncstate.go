package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seenimoa/filinglens/pkg/models"
)

var syncCols = []string{
	"source", "last_filing_date", "last_accession", "status", "error", "last_run_at", "last_run_id", "records_processed",
}

// SyncState returns the cursor for source. A source that never ran yields
// ErrNotFound.
func (g *Gateway) SyncState(ctx context.Context, source string) (models.SyncState, error) {
	s := models.SyncState{Source: source}
	var (
		last, run    sql.NullTime
		acc, msg, id sql.NullString
		status       string
		processed    sql.NullInt64
	)
	err := g.QueryRow(ctx, `SELECT last_filing_date, last_accession, status, error, last_run_at, last_run_id, records_processed
		FROM sync_state WHERE source = ?`, []any{source}, &last, &acc, &status, &msg, &run, &id, &processed)
	if err != nil {
		return s, err
	}
	s.LastFilingDate, s.LastRunAt = timeOf(last), timeOf(run)
	s.LastAccession, s.Error, s.LastRunID = acc.String, msg.String, id.String
	s.Status = models.SyncStatus(status)
	s.RecordsProcessed = int(processed.Int64)
	return s, nil
}

// SaveSyncState upserts the cursor for s.Source.
func (g *Gateway) SaveSyncState(ctx context.Context, s models.SyncState) error {
	_, err := g.Upsert(ctx, TableSyncState, syncCols, [][]any{{
		s.Source, nullTime(s.LastFilingDate), s.LastAccession, string(s.Status), s.Error,
		nullTime(s.LastRunAt), s.LastRunID, s.RecordsProcessed,
	}}, "source")
	if err != nil {
		return fmt.Errorf("save sync state %s: %w", s.Source, err)
	}
	return nil
}

// SyncStates returns every recorded source.
func (g *Gateway) SyncStates(ctx context.Context) ([]models.SyncState, error) {
	sources, err := queryAll(ctx, g, func(rows *sql.Rows) (string, error) {
		var s string
		return s, rows.Scan(&s)
	}, `SELECT source FROM sync_state ORDER BY source`)
	if err != nil {
		return nil, err
	}
	out := make([]models.SyncState, 0, len(sources))
	for _, src := range sources {
		s, err := g.SyncState(ctx, src)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

var backfillCols = []string{"family", "quarter", "status", "rows_loaded", "error", "updated_at"}

// Backfill returns the progress of one archive quarter. A quarter never
// attempted is reported as pending.
func (g *Gateway) Backfill(ctx context.Context, family models.FormFamily, quarter string) (models.BackfillProgress, error) {
	p := models.BackfillProgress{Family: family, Quarter: quarter, Status: models.BackfillPending}
	var (
		status string
		msg    sql.NullString
	)
	err := g.QueryRow(ctx, `SELECT status, rows_loaded, error, updated_at FROM backfill_progress
		WHERE family = ? AND quarter = ?`, []any{string(family), quarter}, &status, &p.RowsLoaded, &msg, &p.UpdatedAt)
	if errors.Is(err, ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("backfill %s %s: %w", family, quarter, err)
	}
	p.Status = models.BackfillStatus(status)
	p.Error = msg.String
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// SaveBackfill upserts one quarter's progress, stamping UpdatedAt.
func (g *Gateway) SaveBackfill(ctx context.Context, p models.BackfillProgress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := g.Upsert(ctx, TableBackfill, backfillCols, [][]any{{
		string(p.Family), p.Quarter, string(p.Status), p.RowsLoaded, p.Error, p.UpdatedAt,
	}}, "family", "quarter")
	return err
}

// BackfillList returns the progress rows of a family, oldest quarter first.
func (g *Gateway) BackfillList(ctx context.Context, family models.FormFamily) ([]models.BackfillProgress, error) {
	return queryAll(ctx, g, func(rows *sql.Rows) (models.BackfillProgress, error) {
		var (
			p      models.BackfillProgress
			fam    string
			status string
			msg    sql.NullString
		)
		err := rows.Scan(&fam, &p.Quarter, &status, &p.RowsLoaded, &msg, &p.UpdatedAt)
		p.Family, p.Status, p.Error = models.FormFamily(fam), models.BackfillStatus(status), msg.String
		p.UpdatedAt = p.UpdatedAt.UTC()
		return p, err
	}, `SELECT family, quarter, status, rows_loaded, error, updated_at FROM backfill_progress
		WHERE family = ? ORDER BY quarter`, string(family))
}
