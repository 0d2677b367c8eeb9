package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seenimoa/filinglens/internal/store"
	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

var dataset13F = map[string]string{
	"2022q3_form13f/SUBMISSION.tsv": "ACCESSION_NUMBER\tFILING_DATE\tSUBMISSIONTYPE\tCIK\tPERIODOFREPORT\n" +
		"0000000001-22-000001\t14-NOV-2022\t13F-HR\t0000000001\t30-SEP-2022\n" +
		"0000000002-22-000001\t10-NOV-2022\t13F-HR\t0000000002\t30-SEP-2022\n",
	"2022q3_form13f/COVERPAGE.tsv": "ACCESSION_NUMBER\tFILINGMANAGER_NAME\n" +
		"0000000001-22-000001\tFIRST FUND LP\n" +
		"0000000002-22-000001\tSECOND FUND LP\n",
	"2022q3_form13f/INFOTABLE.tsv": "ACCESSION_NUMBER\tINFOTABLE_SK\tNAMEOFISSUER\tTITLEOFCLASS\tCUSIP\tFIGI\tVALUE\tSSHPRNAMT\tSSHPRNAMTTYPE\tPUTCALL\tINVESTMENTDISCRETION\tOTHERMANAGER\tVOTING_AUTH_SOLE\tVOTING_AUTH_SHARED\tVOTING_AUTH_NONE\n" +
		"0000000001-22-000001\t1\tAPPLE INC\tCOM\t037833100\t\t500\t10\tSH\t\tSOLE\t\t10\t0\t0\n" +
		"0000000002-22-000001\t2\tAPPLE INC\tCOM\t037833100\t\t2000\t40\tSH\t\tSOLE\t\t40\t0\t0\n",
	"2022q3_form13f/readme.htm": "<html></html>",
}

type fakeArchiver struct {
	files map[string]string
	err   error
	calls int
}

func (f *fakeArchiver) DownloadArchive(_ context.Context, _ models.FormFamily, _, dest string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	zw := zip.NewWriter(out)
	for name, body := range f.files {
		w, err := zw.Create(name)
		if err != nil {
			return 0, err
		}
		if _, err := w.Write([]byte(body)); err != nil {
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	info, err := out.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), out.Close()
}

func TestBulkSyncImportsQuarter(t *testing.T) {
	g := newTestStore(t)
	scratch := t.TempDir()
	src := &fakeArchiver{files: dataset13F}
	bs := NewBulkSync(BulkSyncOptions{Source: src, Store: g, TempDir: scratch, Logger: zaptest.NewLogger(t)})
	ctx := context.Background()

	sum, err := bs.Run(ctx, models.Family13F, []string{"2022-q3"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)

	p, err := g.Backfill(ctx, models.Family13F, "2022q3")
	require.NoError(t, err)
	assert.Equal(t, models.BackfillComplete, p.Status)
	assert.Empty(t, p.Error)

	holdings, err := g.Count(ctx, store.TableHoldings)
	require.NoError(t, err)
	assert.Equal(t, int64(2), holdings)

	ps, err := g.HolderPositions(ctx, "037833100", "2022-Q3")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, models.HolderPosition{FilerCIK: "2", FilerName: "SECOND FUND LP", Shares: 40, Value: 2000000}, ps[0])

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory removed")

	state, err := g.SyncState(ctx, BulkSourceName(models.Family13F))
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, state.Status)

	// Completed quarters are skipped.
	sum, err = bs.Run(ctx, models.Family13F, []string{"2022-Q3"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, src.calls)
}

func TestBulkSyncReimportIsIdempotent(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()
	src := &fakeArchiver{files: dataset13F}
	bs := NewBulkSync(BulkSyncOptions{Source: src, Store: g, TempDir: t.TempDir(), Force: true})

	_, err := bs.Run(ctx, models.Family13F, []string{"2022-Q3"})
	require.NoError(t, err)
	filings, _ := g.Count(ctx, store.TableFilings)
	holdings, _ := g.Count(ctx, store.TableHoldings)

	_, err = bs.Run(ctx, models.Family13F, []string{"2022-Q3"})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	filings2, _ := g.Count(ctx, store.TableFilings)
	holdings2, _ := g.Count(ctx, store.TableHoldings)
	assert.Equal(t, filings, filings2)
	assert.Equal(t, holdings, holdings2)
}

func TestBulkSyncRecordsFailure(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()
	src := &fakeArchiver{err: errors.New("archive not published")}
	bs := NewBulkSync(BulkSyncOptions{Source: src, Store: g, TempDir: t.TempDir()})

	sum, err := bs.Run(ctx, models.Family13F, []string{"2024-Q1", "2024-Q2"})
	require.Error(t, err)
	assert.Equal(t, 2, sum.Failed, "a failed quarter does not stop the run")

	p, err := g.Backfill(ctx, models.Family13F, "2024q1")
	require.NoError(t, err)
	assert.Equal(t, models.BackfillFailed, p.Status)
	assert.Contains(t, p.Error, "archive not published")

	state, err := g.SyncState(ctx, BulkSourceName(models.Family13F))
	require.NoError(t, err)
	assert.Equal(t, models.SyncFailed, state.Status)
}

func TestBulkSyncRejectsInput(t *testing.T) {
	bs := NewBulkSync(BulkSyncOptions{Store: newTestStore(t)})
	var verr *utils.ValidationError

	_, err := bs.Run(context.Background(), models.Family13DG, []string{"2024-Q1"})
	assert.ErrorAs(t, err, &verr)
	_, err = bs.Run(context.Background(), models.Family13F, []string{"2024Q1"})
	assert.ErrorAs(t, err, &verr)
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.zip")
	_, err := (&fakeArchiver{files: dataset13F}).DownloadArchive(context.Background(), models.Family13F, "", archive)
	require.NoError(t, err)

	n, err := extract(archive, dir, datasetFiles[models.Family13F])
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	data, err := os.ReadFile(filepath.Join(dir, store.File13FInfoTable))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ACCESSION_NUMBER\tINFOTABLE_SK"))
	_, err = os.Stat(filepath.Join(dir, "readme.htm"))
	assert.True(t, os.IsNotExist(err))

	_, err = extract(archive, dir, []string{"MISSING.tsv"})
	assert.Error(t, err)
}
