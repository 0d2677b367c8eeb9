package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/internal/metrics"
	"github.com/seenimoa/filinglens/internal/store"
	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// Archiver downloads quarterly data set archives.
type Archiver interface {
	DownloadArchive(ctx context.Context, family models.FormFamily, quarter, dest string) (int64, error)
}

// data set files extracted per family
var datasetFiles = map[models.FormFamily][]string{
	models.Family13F: {
		store.File13FSubmission, store.File13FCoverPage, store.File13FInfoTable,
	},
	models.FamilyInsider: {
		store.FileOwnSubmission, store.FileOwnReportingOwner,
		store.FileOwnNonDerivTrans, store.FileOwnNonDerivHolding,
		store.FileOwnDerivTrans, store.FileOwnDerivHolding,
	},
}

// BulkSyncOptions configures a BulkSync.
type BulkSyncOptions struct {
	Source  Archiver
	Store   *store.Gateway
	TempDir string // parent of per-quarter scratch directories; "" uses os.TempDir
	Force   bool   // reload quarters already complete
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// BulkSync backfills the store from quarterly data set archives.
type BulkSync struct {
	src     Archiver
	store   *store.Gateway
	tempDir string
	force   bool
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewBulkSync creates a bulk sync.
func NewBulkSync(opts BulkSyncOptions) *BulkSync {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &BulkSync{
		src:     opts.Source,
		store:   opts.Store,
		tempDir: opts.TempDir,
		force:   opts.Force,
		metrics: opts.Metrics,
		logger:  opts.Logger.Named("bulk"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// BulkSourceName is the sync state key of a family's bulk sync.
func BulkSourceName(family models.FormFamily) string {
	return "bulk:" + string(family)
}

// Run imports each quarter ("2024-Q1") of family in order. A failed
// quarter is recorded in its backfill progress and the run moves on;
// quarters already complete are skipped. Loading is insert-or-ignore, so
// re-importing a quarter leaves row counts unchanged.
func (b *BulkSync) Run(ctx context.Context, family models.FormFamily, quarters []string) (*RunSummary, error) {
	if _, ok := datasetFiles[family]; !ok {
		return nil, &utils.ValidationError{Field: "family", Value: string(family), Reason: "no bulk data set for this form family"}
	}
	labels := make([]string, 0, len(quarters))
	for _, q := range quarters {
		label, err := utils.ValidateQuarter(q)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}

	source := BulkSourceName(family)
	start := b.now()
	sum := newSummary(source, start)
	sum.Seen = len(labels)
	log := b.logger.With(zap.String("run_id", sum.RunID), zap.String("family", string(family)))

	state, err := b.store.SyncState(ctx, source)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load %s state: %w", source, err)
	}
	state.Source = source
	state.Status, state.Error, state.LastRunAt, state.LastRunID = models.SyncRunning, "", start, sum.RunID
	if err := b.store.SaveSyncState(ctx, state); err != nil {
		return nil, err
	}

	var errs []error
	for _, label := range labels {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		aq, _ := utils.ArchiveQuarter(label)
		p, err := b.store.Backfill(ctx, family, aq)
		if err != nil {
			errs = append(errs, err)
			break
		}
		if p.Status == models.BackfillComplete && !b.force {
			log.Info("quarter already loaded", zap.String("quarter", label))
			sum.Skipped++
			continue
		}

		rows, err := b.quarter(ctx, family, label, aq, log)
		if err != nil {
			sum.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			continue
		}
		sum.Processed++
		sum.Written[string(family)] += rows
		if end, err := utils.QuarterEnd(label); err == nil && end.After(state.LastFilingDate) {
			state.LastFilingDate = end
		}
	}
	b.metrics.RecordFiling(source, "processed", sum.Processed)
	b.metrics.RecordFiling(source, "skipped", sum.Skipped)
	b.metrics.RecordFiling(source, "failed", sum.Failed)

	runErr := errors.Join(errs...)
	sum.Duration = b.now().Sub(start)
	b.metrics.RecordSyncRun(source, runErr == nil, sum.Duration)
	state.RecordsProcessed = sum.Processed
	if runErr != nil {
		state.Status, state.Error = models.SyncFailed, runErr.Error()
		log.Error("bulk sync finished with failures", zap.Int("failed", sum.Failed), zap.Error(runErr))
	} else {
		state.Status = models.SyncSuccess
		log.Info("bulk sync finished", zap.Int("processed", sum.Processed), zap.Int("skipped", sum.Skipped))
	}
	if err := b.store.SaveSyncState(context.WithoutCancel(ctx), state); err != nil {
		return sum, errors.Join(runErr, err)
	}
	return sum, runErr
}

// quarter downloads, extracts and loads one archive, recording each
// transition. The scratch directory is always removed.
func (b *BulkSync) quarter(ctx context.Context, family models.FormFamily, label, aq string, log *zap.Logger) (rows int64, err error) {
	log = log.With(zap.String("quarter", label))
	progress := models.BackfillProgress{Family: family, Quarter: aq}
	mark := func(status models.BackfillStatus) {
		progress.Status = status
		progress.UpdatedAt = b.now()
		if err := b.store.SaveBackfill(context.WithoutCancel(ctx), progress); err != nil {
			log.Warn("saving backfill progress failed", zap.String("status", string(status)), zap.Error(err))
		}
	}
	defer func() {
		if err != nil {
			progress.Error = err.Error()
			mark(models.BackfillFailed)
		}
	}()

	dir, err := os.MkdirTemp(b.tempDir, "filinglens-"+string(family)+"-"+aq+"-")
	if err != nil {
		return 0, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	mark(models.BackfillDownloading)
	archive := filepath.Join(dir, aq+".zip")
	size, err := b.src.DownloadArchive(ctx, family, label, archive)
	if err != nil {
		return 0, err
	}

	mark(models.BackfillExtracting)
	n, err := extract(archive, dir, datasetFiles[family])
	if err != nil {
		return 0, err
	}
	log.Debug("archive extracted", zap.Int64("bytes", size), zap.Int("files", n))

	mark(models.BackfillProcessing)
	switch family {
	case models.Family13F:
		rows, err = b.store.Load13FDataset(ctx, dir)
	case models.FamilyInsider:
		rows, err = b.store.LoadInsiderDataset(ctx, dir)
	}
	if err != nil {
		return 0, err
	}

	progress.RowsLoaded = rows
	progress.Error = ""
	mark(models.BackfillComplete)
	b.metrics.SetBackfillRows(string(family), label, rows)
	b.metrics.RecordRowsWritten(string(family), rows)
	log.Info("quarter loaded", zap.Int64("rows", rows))
	return rows, nil
}

// extract copies the named files out of a ZIP archive into dir, matching
// entries by base name so archives with a top-level folder work too. It
// returns the number of files written.
func extract(archive, dir string, names []string) (int, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	want := make(map[string]string, len(names))
	for _, n := range names {
		want[strings.ToUpper(n)] = n
	}
	written := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, ok := want[strings.ToUpper(filepath.Base(f.Name))]
		if !ok {
			continue
		}
		if err := extractFile(f, filepath.Join(dir, name)); err != nil {
			return written, err
		}
		delete(want, strings.ToUpper(name))
		written++
	}
	if written == 0 {
		return 0, fmt.Errorf("archive has none of %s", strings.Join(names, ", "))
	}
	return written, nil
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	_, err = io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return nil
}
