package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/filinglens/internal/metrics"
	"github.com/seenimoa/filinglens/internal/parser"
	"github.com/seenimoa/filinglens/internal/providers/sec"
	"github.com/seenimoa/filinglens/internal/store"
	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// FeedSource is the part of the EDGAR client the feed sync uses.
type FeedSource interface {
	CurrentFilings(ctx context.Context, formType string, count int) ([]sec.FeedEntry, error)
	Submission(ctx context.Context, cik, accession string) (string, error)
}

// DocumentSource lists and fetches the individual documents of a filing.
// When the feed source implements it, 13F holdings are read from the
// standalone information table of submissions that do not embed one.
type DocumentSource interface {
	FilingIndex(ctx context.Context, cik, accession string) ([]sec.IndexItem, error)
	Document(ctx context.Context, cik, accession, name string) ([]byte, error)
}

// FeedSourceName is the sync state key of the feed sync.
const FeedSourceName = "feed"

// FeedSyncOptions configures a FeedSync.
type FeedSyncOptions struct {
	Source  FeedSource
	Store   *store.Gateway
	Parser  *parser.Parser
	Workers int // concurrent submission fetches
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// FeedSync ingests filings announced on the current filings feed.
type FeedSync struct {
	src     FeedSource
	store   *store.Gateway
	parser  *parser.Parser
	workers int
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewFeedSync creates a feed sync.
func NewFeedSync(opts FeedSyncOptions) *FeedSync {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Parser == nil {
		opts.Parser = parser.New(opts.Logger)
	}
	return &FeedSync{
		src:     opts.Source,
		store:   opts.Store,
		parser:  opts.Parser,
		workers: opts.Workers,
		metrics: opts.Metrics,
		logger:  opts.Logger.Named("feed"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// FeedOptions selects what one run ingests.
type FeedOptions struct {
	FormTypes []string
	Count     int  // entries requested per feed
	Limit     int  // max filings fetched per run, 0 for no limit
	DryRun    bool // report projected counts without fetching bodies or writing
}

// batch accumulates validated records until the run's single write.
type batch struct {
	filings    []models.Filing
	holdings   []models.HoldingLine
	beneficial []models.BeneficialOwnershipFiling
	insider    []models.InsiderTransaction
	names      []models.FilerName
}

// Run polls every feed, fetches and parses new filings in filing-date order
// and writes them in one transaction. Per-filing failures are counted in
// the summary, never returned.
func (s *FeedSync) Run(ctx context.Context, opts FeedOptions) (*RunSummary, error) {
	if len(opts.FormTypes) == 0 {
		return nil, &utils.ValidationError{Field: "form_types", Value: "", Reason: "at least one form type is required"}
	}
	if opts.Count <= 0 {
		opts.Count = 100
	}
	start := s.now()
	sum := newSummary(FeedSourceName, start)
	sum.DryRun = opts.DryRun
	log := s.logger.With(zap.String("run_id", sum.RunID))

	state, err := s.store.SyncState(ctx, FeedSourceName)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load feed cursor: %w", err)
	}
	state.Source = FeedSourceName

	if !opts.DryRun {
		running := state
		running.Status, running.Error, running.LastRunAt, running.LastRunID = models.SyncRunning, "", start, sum.RunID
		if err := s.store.SaveSyncState(ctx, running); err != nil {
			return nil, err
		}
	}

	entries, err := s.poll(ctx, opts, log)
	if err != nil {
		return sum, s.finish(ctx, sum, state, err)
	}
	sum.Seen = len(entries)

	fresh, err := s.unseen(ctx, entries, state)
	if err != nil {
		return sum, s.finish(ctx, sum, state, err)
	}
	sum.Skipped = len(entries) - len(fresh)
	if opts.Limit > 0 && len(fresh) > opts.Limit {
		sum.Skipped += len(fresh) - opts.Limit
		fresh = fresh[:opts.Limit]
	}
	log.Info("feed polled", zap.Int("entries", len(entries)), zap.Int("new", len(fresh)), zap.Bool("dry_run", opts.DryRun))

	if opts.DryRun {
		sum.Processed = len(fresh)
		sum.Duration = s.now().Sub(start)
		return sum, nil
	}

	b, last := s.collect(ctx, fresh, sum, log)
	if err := ctx.Err(); err != nil {
		return sum, s.finish(ctx, sum, state, err)
	}
	if err := s.write(ctx, b, sum); err != nil {
		return sum, s.finish(ctx, sum, state, err)
	}
	if last != nil {
		state.LastFilingDate = last.FilingDate
		state.LastAccession = last.AccessionNumber
	}
	return sum, s.finish(ctx, sum, state, nil)
}

// poll reads every requested feed and returns the deduplicated entries in
// filing-date order. A feed that fails is logged and skipped; only when
// every feed fails is the run an error.
func (s *FeedSync) poll(ctx context.Context, opts FeedOptions, log *zap.Logger) ([]sec.FeedEntry, error) {
	var (
		all  []sec.FeedEntry
		errs []error
	)
	for _, form := range opts.FormTypes {
		es, err := s.src.CurrentFilings(ctx, form, opts.Count)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("feed failed", zap.String("form", form), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		all = append(all, es...)
	}
	if len(errs) == len(opts.FormTypes) {
		return nil, fmt.Errorf("every feed failed: %w", errors.Join(errs...))
	}

	kept := all[:0]
	for _, e := range all {
		if models.FamilyOf(strings.ToUpper(e.FormType)) != "" {
			kept = append(kept, e)
		}
	}
	return sec.DedupeEntries(kept), nil
}

// unseen drops entries filed before the cursor date and accessions already
// stored. Same-day entries are checked against the store, so a filing that
// appears on the feed late is not lost.
func (s *FeedSync) unseen(ctx context.Context, entries []sec.FeedEntry, state models.SyncState) ([]sec.FeedEntry, error) {
	accs := make([]string, 0, len(entries))
	for _, e := range entries {
		accs = append(accs, e.AccessionNumber)
	}
	known, err := s.store.KnownAccessions(ctx, store.TableFilings, accs)
	if err != nil {
		return nil, fmt.Errorf("check known accessions: %w", err)
	}
	out := make([]sec.FeedEntry, 0, len(entries))
	for _, e := range entries {
		if known[e.AccessionNumber] {
			continue
		}
		if !state.LastFilingDate.IsZero() && e.FilingDate.Before(state.LastFilingDate) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// collect fetches and parses entries concurrently, then folds the results
// into a batch in feed order. It returns the last entry that parsed.
func (s *FeedSync) collect(ctx context.Context, entries []sec.FeedEntry, sum *RunSummary, log *zap.Logger) (*batch, *sec.FeedEntry) {
	parsed := make([]*batch, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, e := range entries {
		g.Go(func() error {
			text, err := s.src.Submission(gctx, e.FilerCIK, e.AccessionNumber)
			if err != nil {
				log.Warn("fetch failed", zap.String("accession", e.AccessionNumber), zap.Error(err))
				return nil
			}
			parsed[i] = s.parse(e, text)
			if parsed[i] == nil && holdingsReport(e.FormType) {
				doc, err := s.infoTableDocument(gctx, e)
				if err != nil {
					log.Debug("information table fetch failed", zap.String("accession", e.AccessionNumber), zap.Error(err))
				} else if doc != "" {
					parsed[i] = s.parse(e, text+"\n"+doc)
				}
			}
			if parsed[i] == nil {
				log.Warn("filing did not parse", zap.String("accession", e.AccessionNumber), zap.String("form", e.FormType))
			}
			return nil
		})
	}
	_ = g.Wait()

	out := &batch{}
	var last *sec.FeedEntry
	for i, p := range parsed {
		if p == nil {
			sum.Failed++
			continue
		}
		sum.Processed++
		out.filings = append(out.filings, p.filings...)
		out.holdings = append(out.holdings, p.holdings...)
		out.beneficial = append(out.beneficial, p.beneficial...)
		out.insider = append(out.insider, p.insider...)
		out.names = append(out.names, p.names...)
		last = &entries[i]
	}
	s.metrics.RecordFiling(FeedSourceName, "processed", sum.Processed)
	s.metrics.RecordFiling(FeedSourceName, "skipped", sum.Skipped)
	s.metrics.RecordFiling(FeedSourceName, "failed", sum.Failed)
	return out, last
}

func holdingsReport(form string) bool {
	switch strings.ToUpper(form) {
	case "13F-HR", "13F-HR/A":
		return true
	}
	return false
}

// infoTableDocument fetches the information table of a 13F filing from its
// directory listing. It returns "" when the source cannot list documents or
// the filing has no table.
func (s *FeedSync) infoTableDocument(ctx context.Context, e sec.FeedEntry) (string, error) {
	docs, ok := s.src.(DocumentSource)
	if !ok {
		return "", nil
	}
	items, err := docs.FilingIndex(ctx, e.FilerCIK, e.AccessionNumber)
	if err != nil {
		return "", err
	}
	name := sec.InfoTableDocument(items)
	if name == "" {
		return "", nil
	}
	data, err := docs.Document(ctx, e.FilerCIK, e.AccessionNumber, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parse turns one submission into records, or nil when nothing usable was
// found.
func (s *FeedSync) parse(e sec.FeedEntry, text string) *batch {
	acc := e.AccessionNumber
	form := strings.ToUpper(e.FormType)
	h := parser.ParseSECHeader(text)
	filed := e.FilingDate
	if h != nil && !h.FiledAsOf.IsZero() {
		filed = h.FiledAsOf
	}
	b := &batch{}
	if e.FilerCIK != "" && e.FilerName != "" {
		b.names = append(b.names, models.FilerName{CIK: e.FilerCIK, Name: e.FilerName, CachedAt: s.now()})
	}

	switch models.FamilyOf(form) {
	case models.Family13F:
		f := models.Filing{
			AccessionNumber: acc,
			FormType:        form,
			FilingDate:      filed,
			FilerCIK:        e.FilerCIK,
			FilerName:       e.FilerName,
		}
		if h != nil {
			f.PeriodOfReport = h.PeriodOfReport
			if f.FilerCIK == "" {
				f.FilerCIK, f.FilerName = h.FiledBy.CIK, h.FiledBy.Name
			}
		}
		if f.PeriodOfReport.IsZero() {
			f.Quarter = utils.QuarterFromFilingDate(filed)
		} else {
			f.Quarter = utils.QuarterFromPeriod(f.PeriodOfReport)
		}
		lines := s.parser.ParseInfoTable(text, acc)
		if len(lines) == 0 && holdingsReport(form) {
			return nil
		}
		kept := lines[:0]
		for _, l := range lines {
			if !utils.IsCUSIP(l.CUSIP) {
				s.logger.Debug("dropping holding line with invalid cusip",
					zap.String("accession", acc), zap.String("row", l.RowKey), zap.String("cusip", l.CUSIP))
				continue
			}
			l.Value = utils.NormalizeValue(l.Value, filed)
			kept = append(kept, l)
		}
		b.filings = append(b.filings, f)
		b.holdings = kept

	case models.Family13DG:
		bo := s.parser.ParseScheduleXML(text, acc)
		if bo == nil {
			bo = s.parser.ParseScheduleHeader(text, acc)
		}
		if bo == nil {
			return nil
		}
		if bo.FilingDate.IsZero() {
			bo.FilingDate = filed
		}
		if bo.FilerCIK == "" {
			bo.FilerCIK, bo.FilerName = e.FilerCIK, e.FilerName
		}
		if bo.FilerName == "" && h != nil {
			bo.FilerName = h.FiledBy.Name
		}
		if bo.IssuerName == "" && h != nil {
			bo.IssuerCIK, bo.IssuerName = h.Subject.CIK, h.Subject.Name
		}
		b.filings = append(b.filings, models.Filing{
			AccessionNumber: acc,
			FormType:        bo.FormType,
			FilingDate:      bo.FilingDate,
			PeriodOfReport:  bo.EventDate,
			Quarter:         utils.QuarterOf(bo.FilingDate),
			FilerCIK:        bo.FilerCIK,
			FilerName:       bo.FilerName,
			IssuerCIK:       bo.IssuerCIK,
			IssuerName:      bo.IssuerName,
			IssuerCUSIP:     bo.CUSIP,
		})
		b.beneficial = append(b.beneficial, *bo)

	case models.FamilyInsider:
		doc := s.parser.ParseOwnership(text, acc)
		if doc == nil {
			return nil
		}
		period := doc.PeriodOfReport
		if period.IsZero() {
			period = filed
		}
		f := models.Filing{
			AccessionNumber: acc,
			FormType:        doc.FormType,
			FilingDate:      filed,
			PeriodOfReport:  doc.PeriodOfReport,
			Quarter:         utils.QuarterOf(period),
			IssuerCIK:       doc.IssuerCIK,
			IssuerName:      doc.IssuerName,
		}
		if f.FormType == "" {
			f.FormType = form
		}
		if len(doc.Transactions) > 0 {
			f.FilerCIK, f.FilerName = doc.Transactions[0].OwnerCIK, doc.Transactions[0].OwnerName
		}
		for i := range doc.Transactions {
			doc.Transactions[i].FilingDate = filed
			if doc.Transactions[i].FormType == "" {
				doc.Transactions[i].FormType = f.FormType
			}
		}
		b.filings = append(b.filings, f)
		b.insider = doc.Transactions

	default:
		return nil
	}
	return b
}

// write stores the whole batch in one transaction.
func (s *FeedSync) write(ctx context.Context, b *batch, sum *RunSummary) error {
	if len(b.filings) == 0 {
		return nil
	}
	written := make(map[string]int64)
	err := s.store.Tx(ctx, func(w *store.Writer) error {
		clear(written)
		steps := []struct {
			table string
			save  func() (int64, error)
		}{
			{store.TableFilings, func() (int64, error) { return w.SaveFilings(ctx, b.filings) }},
			{store.TableHoldings, func() (int64, error) { return w.SaveHoldings(ctx, b.holdings) }},
			{store.TableBeneficial, func() (int64, error) { return w.SaveBeneficial(ctx, b.beneficial) }},
			{store.TableInsider, func() (int64, error) { return w.SaveInsider(ctx, b.insider) }},
		}
		for _, st := range steps {
			n, err := st.save()
			if err != nil {
				return fmt.Errorf("write %s: %w", st.table, err)
			}
			written[st.table] = n
		}
		return nil
	})
	if err != nil {
		return err
	}
	for table, n := range written {
		sum.Written[table] += n
		s.metrics.RecordRowsWritten(table, n)
	}
	if len(b.names) > 0 {
		if err := s.store.SaveFilerNames(ctx, b.names); err != nil {
			s.logger.Warn("saving feed filer names failed", zap.Error(err))
		}
	}
	return nil
}

// finish records the run outcome in sync state. runErr is returned,
// wrapped with any failure to persist the state.
func (s *FeedSync) finish(ctx context.Context, sum *RunSummary, state models.SyncState, runErr error) error {
	sum.Duration = s.now().Sub(sum.StartedAt)
	s.metrics.RecordSyncRun(FeedSourceName, runErr == nil, sum.Duration)

	state.Source = FeedSourceName
	state.LastRunAt = sum.StartedAt
	state.LastRunID = sum.RunID
	state.RecordsProcessed = sum.Processed
	if runErr != nil {
		state.Status, state.Error = models.SyncFailed, runErr.Error()
		s.logger.Error("feed sync failed", zap.String("run_id", sum.RunID), zap.Error(runErr))
	} else {
		state.Status, state.Error = models.SyncSuccess, ""
		s.logger.Info("feed sync finished", zap.String("run_id", sum.RunID),
			zap.Int("processed", sum.Processed), zap.Int("skipped", sum.Skipped), zap.Int("failed", sum.Failed))
	}

	// The state write must land even when the run was cancelled.
	if err := s.store.SaveSyncState(context.WithoutCancel(ctx), state); err != nil {
		if runErr != nil {
			return errors.Join(runErr, err)
		}
		return err
	}
	return runErr
}
