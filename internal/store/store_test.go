package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seenimoa/filinglens/internal/config"
	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := Open(context.Background(), config.StoreConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	require.NoError(t, g.EnsureSchema(context.Background()))
	return g
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"filings", false},
		{"_private", false},
		{"Col9", false},
		{"9col", true},
		{"", true},
		{"a-b", true},
		{`x"; DROP TABLE filings; --`, true},
		{strings.Repeat("a", 63), false},
		{strings.Repeat("a", 64), true},
	}
	for _, tt := range tests {
		q, err := QuoteIdent(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("QuoteIdent(%q): err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrIdentifier) {
			t.Errorf("QuoteIdent(%q): got %v, want ErrIdentifier", tt.name, err)
		}
		if err == nil && q != `"`+tt.name+`"` {
			t.Errorf("QuoteIdent(%q): got %s", tt.name, q)
		}
	}
}

func TestQuoteTable(t *testing.T) {
	q, err := QuoteTable(TableHoldings)
	require.NoError(t, err)
	assert.Equal(t, `"holdings"`, q)

	_, err = QuoteTable("pg_catalog")
	assert.ErrorIs(t, err, ErrTableNotAllowed)

	_, err = QuoteTable("holdings;--")
	assert.ErrorIs(t, err, ErrIdentifier)
}

func TestBuildInsert(t *testing.T) {
	got, err := buildInsert(TableFilerNames, []string{"cik", "name", "cached_at"}, 2, []string{"cik"}, true)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "filer_names" ("cik", "name", "cached_at") VALUES (?, ?, ?), (?, ?, ?)`+
		` ON CONFLICT ("cik") DO UPDATE SET "name" = EXCLUDED."name", "cached_at" = EXCLUDED."cached_at"`, got)

	got, err = buildInsert(TableHoldings, []string{"accession_number", "row_key"}, 1, []string{"accession_number", "row_key"}, false)
	require.NoError(t, err)
	assert.Equal(t, `INSERT OR IGNORE INTO "holdings" ("accession_number", "row_key") VALUES (?, ?)`, got)

	got, err = buildInsert(TableBackfill, []string{"family", "quarter"}, 1, []string{"family", "quarter"}, true)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, `ON CONFLICT ("family", "quarter") DO NOTHING`), got)

	_, err = buildInsert("users", []string{"id"}, 1, []string{"id"}, true)
	assert.ErrorIs(t, err, ErrTableNotAllowed)
	_, err = buildInsert(TableFilings, []string{"id; --"}, 1, []string{"id; --"}, true)
	assert.ErrorIs(t, err, ErrIdentifier)
}

func TestCheckShape(t *testing.T) {
	_, err := checkShape([]string{"a", "b"}, [][]any{{1, 2}, {3}}, []string{"a"})
	assert.Error(t, err)
	_, err = checkShape([]string{"a"}, [][]any{{1}}, []string{"z"})
	assert.ErrorIs(t, err, ErrIdentifier)
	_, err = checkShape([]string{"a"}, [][]any{{1}}, nil)
	assert.ErrorIs(t, err, ErrIdentifier)

	idx, err := checkShape([]string{"a", "b", "c"}, [][]any{{1, 2, 3}}, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, idx)
}

func TestDedupe(t *testing.T) {
	rows := [][]any{{"k1", 1}, {"k2", 2}, {"k1", 3}}
	assert.Equal(t, [][]any{{"k1", 3}, {"k2", 2}}, dedupe(rows, []int{0}, true))
	assert.Equal(t, [][]any{{"k1", 1}, {"k2", 2}}, dedupe(rows, []int{0}, false))
}

func TestOpenRemoteRequiresToken(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Database: "filings"}, nil)
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "store.token", cfgErr.Key)

	_, err = Open(context.Background(), config.StoreConfig{Database: "bad-name", Token: "t"}, nil)
	assert.ErrorIs(t, err, ErrIdentifier)
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	g := newTestGateway(t)
	require.NoError(t, g.EnsureSchema(context.Background()))
	n, err := g.Count(context.Background(), TableFilings)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = g.Count(context.Background(), "information_schema")
	assert.ErrorIs(t, err, ErrTableNotAllowed)
}

func TestFilingsAndHoldings(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	f := models.Filing{
		AccessionNumber: "0001067983-24-000006",
		FormType:        "13F-HR",
		FilingDate:      day(2024, 2, 14),
		PeriodOfReport:  day(2023, 12, 31),
		Quarter:         "2023-Q4",
		FilerCIK:        "1067983",
		FilerName:       "BERKSHIRE HATHAWAY INC",
	}
	lines := []models.HoldingLine{
		{AccessionNumber: f.AccessionNumber, RowKey: "2", CUSIP: "037833100", IssuerName: "APPLE INC", Value: 500, Shares: 10, ShareType: "SH", InvestmentDiscretion: "DFND"},
		{AccessionNumber: f.AccessionNumber, RowKey: "1", CUSIP: "00206R102", IssuerName: "AT&T INC", Value: 7, Shares: 1, ShareType: "SH", PutCall: "PUT", InvestmentDiscretion: "SOLE", VotingSole: 1},
	}
	require.NoError(t, g.Tx(ctx, func(w *Writer) error {
		if _, err := w.SaveFilings(ctx, []models.Filing{f}); err != nil {
			return err
		}
		_, err := w.SaveHoldings(ctx, lines)
		return err
	}))

	got, err := g.Filing(ctx, "000106798324000006")
	require.NoError(t, err)
	assert.Equal(t, f, got)

	hs, err := g.Holdings(ctx, f.AccessionNumber)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, lines[1], hs[0], "ordered by numeric row key")
	assert.Equal(t, lines[0], hs[1])

	// Holding lines are created once; a second write is ignored.
	changed := lines[0]
	changed.Value = 999
	_, err = g.InsertIgnore(ctx, TableHoldings, holdingCols, [][]any{{
		changed.AccessionNumber, changed.RowKey, changed.CUSIP, changed.IssuerName, "", "", changed.Value,
		changed.Shares, changed.ShareType, "", changed.InvestmentDiscretion, "", 0, 0, 0,
	}}, "accession_number", "row_key")
	require.NoError(t, err)
	hs, err = g.Holdings(ctx, f.AccessionNumber)
	require.NoError(t, err)
	assert.Equal(t, int64(500), hs[1].Value)

	// Re-inserting a filing header is ignored.
	renamed := f
	renamed.FilerName = "BERKSHIRE HATHAWAY"
	require.NoError(t, g.Tx(ctx, func(w *Writer) error {
		_, err := w.SaveFilings(ctx, []models.Filing{renamed})
		return err
	}))
	got, err = g.Filing(ctx, f.AccessionNumber)
	require.NoError(t, err)
	assert.Equal(t, "BERKSHIRE HATHAWAY INC", got.FilerName)

	known, err := g.KnownAccessions(ctx, TableFilings, []string{f.AccessionNumber, "0000000000-24-000001"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{f.AccessionNumber: true}, known)

	_, err = g.Filing(ctx, "0000000000-24-000001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBeneficialRoundTrip(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	b := models.BeneficialOwnershipFiling{
		AccessionNumber: "0000921895-24-000123",
		FormType:        "SC 13D/A",
		FilingDate:      day(2024, 1, 15),
		EventDate:       day(2024, 1, 10),
		IssuerCIK:       "111111",
		IssuerName:      "ACME WIDGETS INC",
		FilerCIK:        "1517137",
		FilerName:       "STARBOARD VALUE LP",
		CUSIP:           "00444T100",
		PercentOfClass:  7.9,
		AggregateAmount: 4250000,
		AmendmentNumber: 3,
		Purpose:         "nominate directors",
		Intent:          models.IntentFlags{Activist: true, BoardChange: true},
		Items:           map[int]string{4: "nominate directors"},
		Signatures:      []models.Signature{{Name: "/s/ Jeff Smith", Date: "01/15/2024"}},
		ReportingPersons: []models.ReportingPerson{
			{Name: "Starboard Value LP", SoleVotingPower: 100, AggregateAmount: 4250000, PercentOfClass: 7.9, TypeCodes: []string{"PN", "IA"}},
			{Name: "Jeff Smith", SharedVotingPower: 100, TypeCodes: []string{"IN"}},
		},
	}
	require.NoError(t, g.Tx(ctx, func(w *Writer) error {
		_, err := w.SaveBeneficial(ctx, []models.BeneficialOwnershipFiling{b})
		return err
	}))
	// Re-saving with fewer persons replaces them.
	b.ReportingPersons = b.ReportingPersons[:1]
	require.NoError(t, g.Tx(ctx, func(w *Writer) error {
		_, err := w.SaveBeneficial(ctx, []models.BeneficialOwnershipFiling{b})
		return err
	}))

	got, err := g.BeneficialFilings(ctx, "00444t100", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.Items, got[0].Items)
	assert.Equal(t, b.Signatures, got[0].Signatures)
	assert.Equal(t, b.Intent, got[0].Intent)
	require.Len(t, got[0].ReportingPersons, 1)
	assert.Equal(t, []string{"PN", "IA"}, got[0].ReportingPersons[0].TypeCodes)
	assert.Equal(t, b.Intent, got[0].ReportingPersons[0].Intent)
	assert.Equal(t, b.EventDate, got[0].EventDate)

	_, err = g.BeneficialFilings(ctx, "ABC", 10)
	var verr *utils.ValidationError
	assert.ErrorAs(t, err, &verr)
	_, err = g.BeneficialFilings(ctx, "00444T100", 0)
	assert.ErrorAs(t, err, &verr)
}

func TestInsiderRoundTrip(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	tx := models.InsiderTransaction{
		AccessionNumber:  "0000320193-24-000005",
		SequenceKey:      "0000320193-24-000005:NT:1",
		FormType:         "4",
		FilingDate:       day(2024, 1, 12),
		IssuerCIK:        "320193",
		IssuerName:       "Apple Inc.",
		IssuerTicker:     "AAPL",
		OwnerCIK:         "1214156",
		OwnerName:        "COOK TIMOTHY D",
		IsOfficer:        true,
		OfficerTitle:     "CEO",
		SecurityTitle:    "Common Stock",
		TransactionDate:  day(2024, 1, 10),
		TransactionCode:  "S",
		Shares:           decimal.RequireFromString("1000.5"),
		Price:            decimal.RequireFromString("185.5525"),
		AcquiredDisposed: "D",
		SharesOwnedAfter: decimal.NewFromInt(3280180),
		DirectOwnership:  true,
	}
	require.NoError(t, g.Tx(ctx, func(w *Writer) error {
		_, err := w.SaveInsider(ctx, []models.InsiderTransaction{tx, tx})
		return err
	}))

	got, err := g.InsiderTransactions(ctx, "0000320193", 5)
	require.NoError(t, err)
	require.Len(t, got, 1, "duplicate keys collapse")
	assert.True(t, got[0].Price.Equal(tx.Price))
	assert.True(t, got[0].Shares.Equal(tx.Shares))
	assert.True(t, got[0].SharesOwnedAfter.Equal(tx.SharesOwnedAfter))
	assert.Equal(t, tx.TransactionDate, got[0].TransactionDate)
	assert.Equal(t, "CEO", got[0].OfficerTitle)
	assert.True(t, got[0].IsOfficer)

	_, err = g.InsiderTransactions(ctx, "AAPL", 5)
	var verr *utils.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCacheTables(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, g.SaveCusipMappings(ctx, []models.CusipMapping{
		{CUSIP: "037833100", Ticker: "AAPL", FIGI: "BBG000B9XRY4", ExchangeCode: "US", CachedAt: now},
		{CUSIP: "999999999", Error: "no identifier found", CachedAt: now},
	}))
	ms, err := g.CusipMappings(ctx, []string{"037833100", "999999999", "594918104"})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.True(t, ms["037833100"].Mapped())
	assert.False(t, ms["999999999"].Mapped())
	assert.Equal(t, "no identifier found", ms["999999999"].Error)
	assert.True(t, ms["037833100"].CachedAt.Equal(now))

	_, err = g.CusipMappings(ctx, []string{"037833-00"})
	var verr *utils.ValidationError
	assert.ErrorAs(t, err, &verr, "rejected before SQL")

	require.NoError(t, g.SaveFilerNames(ctx, []models.FilerName{{CIK: "1067983", Name: "BERKSHIRE", CachedAt: now}}))
	require.NoError(t, g.SaveFilerNames(ctx, []models.FilerName{{CIK: "1067983", Name: "BERKSHIRE HATHAWAY INC", CachedAt: now}}))
	n, err := g.FilerName(ctx, "0001067983")
	require.NoError(t, err)
	assert.Equal(t, "BERKSHIRE HATHAWAY INC", n.Name)

	all, err := g.FilerNames(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = g.FilerName(ctx, "42")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncStateAndBackfill(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	_, err := g.SyncState(ctx, "feed:4")
	assert.ErrorIs(t, err, ErrNotFound)

	s := models.SyncState{
		Source:           "feed:4",
		LastFilingDate:   day(2024, 1, 15),
		LastAccession:    "0000222222-24-000001",
		Status:           models.SyncSuccess,
		LastRunAt:        time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC),
		LastRunID:        "run-1",
		RecordsProcessed: 12,
	}
	require.NoError(t, g.SaveSyncState(ctx, s))
	got, err := g.SyncState(ctx, "feed:4")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	s.Status, s.Error = models.SyncFailed, "boom"
	require.NoError(t, g.SaveSyncState(ctx, s))
	states, err := g.SyncStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "boom", states[0].Error)

	p, err := g.Backfill(ctx, models.Family13F, "2024q1")
	require.NoError(t, err)
	assert.Equal(t, models.BackfillPending, p.Status)

	require.NoError(t, g.SaveBackfill(ctx, models.BackfillProgress{Family: models.Family13F, Quarter: "2024q1", Status: models.BackfillComplete, RowsLoaded: 10}))
	p, err = g.Backfill(ctx, models.Family13F, "2024q1")
	require.NoError(t, err)
	assert.Equal(t, models.BackfillComplete, p.Status)
	assert.Equal(t, int64(10), p.RowsLoaded)
	assert.False(t, p.UpdatedAt.IsZero())

	list, err := g.BackfillList(ctx, models.Family13F)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func seedPositions(t *testing.T, g *Gateway) {
	t.Helper()
	ctx := context.Background()
	const cusip = "037833100"
	filing := func(acc, form, cik string, filed time.Time) models.Filing {
		return models.Filing{AccessionNumber: acc, FormType: form, FilingDate: filed, Quarter: "2024-Q1", FilerCIK: cik, FilerName: "FILER " + cik}
	}
	line := func(acc, key, disc, pc string, shares, value int64) models.HoldingLine {
		return models.HoldingLine{AccessionNumber: acc, RowKey: key, CUSIP: cusip, IssuerName: "APPLE INC",
			Shares: shares, Value: value, ShareType: "SH", InvestmentDiscretion: disc, PutCall: pc}
	}
	filings := []models.Filing{
		filing("0000000001-24-000001", "13F-HR", "1", day(2024, 5, 10)),
		filing("0000000002-24-000001", "13F-HR", "2", day(2024, 5, 1)),
		filing("0000000003-24-000001", "13F-HR", "3", day(2024, 5, 1)),
		filing("0000000003-24-000002", "13F-HR/A", "3", day(2024, 6, 1)),
	}
	lines := []models.HoldingLine{
		line("0000000001-24-000001", "1", "SOLE", "", 100, 1000),
		line("0000000001-24-000001", "2", "OTR", "", 100, 1000),
		line("0000000001-24-000001", "3", "SOLE", "PUT", 50, 500),
		line("0000000001-24-000001", "4", "SOLE", "CALL", 10, 100),
		line("0000000002-24-000001", "1", "OTR", "", 40, 400),
		line("0000000003-24-000001", "1", "SOLE", "", 10, 100),
		line("0000000003-24-000001", "2", "SOLE", "PUT", 10, 100),
		line("0000000003-24-000001", "3", "SOLE", "CALL", 10, 100),
		line("0000000003-24-000002", "1", "SOLE", "", 30, 300),
		line("0000000003-24-000002", "2", "SOLE", "PUT", 30, 300),
		line("0000000003-24-000002", "3", "SOLE", "CALL", 10, 100),
	}
	require.NoError(t, g.Tx(ctx, func(w *Writer) error {
		if _, err := w.SaveFilings(ctx, filings); err != nil {
			return err
		}
		_, err := w.SaveHoldings(ctx, lines)
		return err
	}))
}

func TestHolderPositions(t *testing.T) {
	g := newTestGateway(t)
	seedPositions(t, g)
	ctx := context.Background()

	ps, err := g.HolderPositions(ctx, "037833100", "2024-q1")
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, models.HolderPosition{FilerCIK: "1", FilerName: "FILER 1", Shares: 100, Value: 1000}, ps[0],
		"OTR duplicate and option lines excluded")
	assert.Equal(t, models.HolderPosition{FilerCIK: "2", FilerName: "FILER 2", Shares: 40, Value: 400}, ps[1],
		"OTR-only position kept")
	assert.Equal(t, models.HolderPosition{FilerCIK: "3", FilerName: "FILER 3", Shares: 30, Value: 300}, ps[2],
		"latest amendment wins")

	put, call, err := g.OptionValues(ctx, "037833100", "2024-Q1")
	require.NoError(t, err)
	assert.Equal(t, int64(800), put, "superseded filings are not counted")
	assert.Equal(t, int64(200), call)

	vs, err := g.QuarterValues(ctx, "2023-Q4", "2024-Q1")
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, models.QuarterValue{CUSIP: "037833100", IssuerName: "APPLE INC", Quarter: "2024-Q1", Value: 1700}, vs[0])

	q, err := g.LatestQuarter(ctx, "037833100")
	require.NoError(t, err)
	assert.Equal(t, "2024-Q1", q)
	q, err = g.MaxQuarter(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-Q1", q)

	_, err = g.LatestQuarter(ctx, "594918104")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalyticsRejectInvalidInput(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	var verr *utils.ValidationError

	for _, bad := range []string{"ABC", "037833-00", "037833100'; --"} {
		_, err := g.HolderPositions(ctx, bad, "2024-Q1")
		assert.ErrorAs(t, err, &verr, bad)
		_, _, err = g.OptionValues(ctx, bad, "2024-Q1")
		assert.ErrorAs(t, err, &verr, bad)
	}
	_, err := g.HolderPositions(ctx, "037833100", "2024Q5")
	assert.ErrorAs(t, err, &verr)
	_, err = g.QuarterValues(ctx, "2024-Q1", "latest")
	assert.ErrorAs(t, err, &verr)
}

func TestResetAndRetry(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	stale := g.handle()
	require.NoError(t, stale.Close())

	var n int
	require.NoError(t, g.QueryRow(ctx, `SELECT 42`, nil, &n))
	assert.Equal(t, 42, n)
	assert.NotSame(t, stale, g.handle())

	// Statement errors on a healthy handle surface without a reset.
	h := g.handle()
	_, err := g.Exec(ctx, `SELECT * FROM no_such_table`)
	assert.Error(t, err)
	assert.Same(t, h, g.handle())
}

func TestHealthCheckThrottled(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	g.health = time.Minute
	g.lastPing = now

	stale := g.handle()
	require.NoError(t, stale.Close())
	g.checkHealth(ctx)
	assert.Same(t, stale, g.handle(), "within interval, no ping")

	now = now.Add(2 * time.Minute)
	g.checkHealth(ctx)
	assert.NotSame(t, stale, g.handle(), "stale handle replaced")
	require.NoError(t, g.Ping(ctx))
}

func writeTSV(t *testing.T, dir, name string, rows ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(rows, "\n")+"\n"), 0o644))
}

func TestLoad13FDataset(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeTSV(t, dir, File13FSubmission,
		"ACCESSION_NUMBER\tFILING_DATE\tSUBMISSIONTYPE\tCIK\tPERIODOFREPORT",
		"0000000001-22-000001\t14-NOV-2022\t13F-HR\t0000000001\t30-SEP-2022",
		"0000000002-24-000001\t10-MAY-2024\t13F-HR\t0000000002\t31-MAR-2024",
	)
	writeTSV(t, dir, File13FCoverPage,
		"ACCESSION_NUMBER\tFILINGMANAGER_NAME",
		"0000000001-22-000001\tOLD FUND LP",
		"0000000002-24-000001\tNEW FUND LP",
	)
	writeTSV(t, dir, File13FInfoTable,
		"ACCESSION_NUMBER\tINFOTABLE_SK\tNAMEOFISSUER\tTITLEOFCLASS\tCUSIP\tFIGI\tVALUE\tSSHPRNAMT\tSSHPRNAMTTYPE\tPUTCALL\tINVESTMENTDISCRETION\tOTHERMANAGER\tVOTING_AUTH_SOLE\tVOTING_AUTH_SHARED\tVOTING_AUTH_NONE",
		"0000000001-22-000001\t101\tAPPLE INC\tCOM\t037833100\t\t500\t10\tSH\t\tSOLE\t\t10\t0\t0",
		"0000000002-24-000001\t201\tAPPLE INC\tCOM\t037833100\t\t500\t10\tSH\t\tSOLE\t\t10\t0\t0",
		"0000000002-24-000001\t202\tAPPLE INC\tCOM\t037833100\t\t75\t5\tSH\tPut\tDFND\t1\t0\t5\t0",
		"0000000002-24-000001\t203\tBAD ROW\tCOM\t12345678\t\t90\t9\tSH\t\tSOLE\t\t9\t0\t0",
		"0000000002-24-000001\t204\tBLANK ROW\tCOM\t\t\t90\t9\tSH\t\tSOLE\t\t9\t0\t0",
	)

	_, err := g.Load13FDataset(ctx, dir)
	require.NoError(t, err)
	filings, err := g.Count(ctx, TableFilings)
	require.NoError(t, err)
	holdings, err := g.Count(ctx, TableHoldings)
	require.NoError(t, err)
	assert.Equal(t, int64(2), filings)
	assert.Equal(t, int64(3), holdings, "rows with malformed cusips are not loaded")

	// Importing the same archive again leaves counts unchanged.
	_, err = g.Load13FDataset(ctx, dir)
	require.NoError(t, err)
	filings2, _ := g.Count(ctx, TableFilings)
	holdings2, _ := g.Count(ctx, TableHoldings)
	assert.Equal(t, filings, filings2)
	assert.Equal(t, holdings, holdings2)

	old, err := g.Holdings(ctx, "0000000001-22-000001")
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, int64(500000), old[0].Value, "thousands before the unit change")

	recent, err := g.Holdings(ctx, "0000000002-24-000001")
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(500), recent[0].Value)
	assert.Equal(t, "PUT", recent[1].PutCall)
	assert.Equal(t, "DFND", recent[1].InvestmentDiscretion)

	f, err := g.Filing(ctx, "0000000001-22-000001")
	require.NoError(t, err)
	assert.Equal(t, "2022-Q3", f.Quarter)
	assert.Equal(t, "OLD FUND LP", f.FilerName)
	assert.Equal(t, "1", f.FilerCIK)
	assert.Equal(t, day(2022, 11, 14), f.FilingDate)
}

func TestLoadInsiderDataset(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	dir := t.TempDir()
	const acc = "0000320193-24-000005"

	writeTSV(t, dir, FileOwnSubmission,
		"ACCESSION_NUMBER\tFILING_DATE\tPERIOD_OF_REPORT\tDOCUMENT_TYPE\tISSUERCIK\tISSUERNAME\tISSUERTRADINGSYMBOL",
		acc+"\t12-JAN-2024\t10-JAN-2024\t4\t0000320193\tApple Inc.\taapl",
	)
	writeTSV(t, dir, FileOwnReportingOwner,
		"ACCESSION_NUMBER\tRPTOWNERCIK\tRPTOWNERNAME\tRPTOWNER_RELATIONSHIP\tRPTOWNER_TITLE",
		acc+"\t0001214156\tCOOK TIMOTHY D\tDirector,Officer\tCEO",
	)
	writeTSV(t, dir, FileOwnNonDerivTrans,
		"ACCESSION_NUMBER\tNONDERIV_TRANS_SK\tSECURITY_TITLE\tTRANS_DATE\tTRANS_CODE\tTRANS_SHARES\tTRANS_PRICEPERSHARE\tTRANS_ACQUIRED_DISP_CD\tSHRS_OWND_FOLWNG_TRANS\tDIRECT_INDIRECT_OWNERSHIP",
		acc+"\t12\tCommon Stock\t10-JAN-2024\tM\t500\t\tA\t3280680\tD",
		acc+"\t11\tCommon Stock\t10-JAN-2024\tS\t1000\t185.5525\tD\t3280180\tD",
	)
	writeTSV(t, dir, FileOwnNonDerivHolding,
		"ACCESSION_NUMBER\tNONDERIV_HOLDING_SK\tSECURITY_TITLE\tSHRS_OWND_FOLWNG_TRANS\tDIRECT_INDIRECT_OWNERSHIP",
		acc+"\t7\tCommon Stock\t1000\tI",
	)

	_, err := g.LoadInsiderDataset(ctx, dir)
	require.NoError(t, err)
	_, err = g.LoadInsiderDataset(ctx, dir)
	require.NoError(t, err)
	n, err := g.Count(ctx, TableInsider)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	txs, err := g.InsiderTransactions(ctx, "320193", 10)
	require.NoError(t, err)
	byKey := make(map[string]models.InsiderTransaction, len(txs))
	for _, tx := range txs {
		byKey[tx.SequenceKey] = tx
	}
	require.Contains(t, byKey, acc+":NT:1")
	require.Contains(t, byKey, acc+":NT:2")
	require.Contains(t, byKey, acc+":NH:1")

	sale := byKey[acc+":NT:1"]
	assert.Equal(t, "S", sale.TransactionCode, "ordinal follows the data set row key")
	assert.True(t, sale.Price.Equal(decimal.RequireFromString("185.5525")))
	assert.Equal(t, "AAPL", sale.IssuerTicker)
	assert.Equal(t, "1214156", sale.OwnerCIK)
	assert.True(t, sale.IsDirector)
	assert.True(t, sale.IsOfficer)
	assert.False(t, sale.IsTenPercentOwner)
	assert.Equal(t, day(2024, 1, 12), sale.FilingDate)

	holding := byKey[acc+":NH:1"]
	assert.True(t, holding.HoldingOnly)
	assert.False(t, holding.DirectOwnership)
	assert.True(t, holding.TransactionDate.IsZero())

	f, err := g.Filing(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, "2024-Q1", f.Quarter)
	assert.Equal(t, "320193", f.IssuerCIK)
}

func TestLoadDatasetMissingFiles(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.Load13FDataset(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = g.LoadInsiderDataset(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
