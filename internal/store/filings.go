package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

var filingCols = []string{
	"accession_number", "form_type", "filing_date", "period_of_report", "quarter",
	"filer_cik", "filer_name", "issuer_cik", "issuer_name", "issuer_cusip",
}

var holdingCols = []string{
	"accession_number", "row_key", "cusip", "issuer_name", "title_of_class", "figi",
	"value", "shares", "share_type", "put_call", "investment_discretion", "other_manager",
	"voting_sole", "voting_shared", "voting_none",
}

// SaveFilings inserts filing headers keyed by accession number, ignoring
// accessions already stored.
func (w *Writer) SaveFilings(ctx context.Context, filings []models.Filing) (int64, error) {
	rows := make([][]any, 0, len(filings))
	for _, f := range filings {
		rows = append(rows, []any{
			f.AccessionNumber, f.FormType, nullTime(f.FilingDate), nullTime(f.PeriodOfReport), f.Quarter,
			f.FilerCIK, f.FilerName, f.IssuerCIK, f.IssuerName, f.IssuerCUSIP,
		})
	}
	return w.InsertIgnore(ctx, TableFilings, filingCols, rows, "accession_number")
}

// SaveHoldings inserts holding lines, ignoring lines already stored.
func (w *Writer) SaveHoldings(ctx context.Context, lines []models.HoldingLine) (int64, error) {
	rows := make([][]any, 0, len(lines))
	for _, h := range lines {
		rows = append(rows, []any{
			h.AccessionNumber, h.RowKey, h.CUSIP, h.IssuerName, h.TitleOfClass, h.FIGI,
			h.Value, h.Shares, h.ShareType, h.PutCall, h.InvestmentDiscretion, h.OtherManager,
			h.VotingSole, h.VotingShared, h.VotingNone,
		})
	}
	return w.InsertIgnore(ctx, TableHoldings, holdingCols, rows, "accession_number", "row_key")
}

// Filing returns one filing header.
func (g *Gateway) Filing(ctx context.Context, accession string) (models.Filing, error) {
	var (
		f              models.Filing
		filed, period  sql.NullTime
		quarter        sql.NullString
		fcik, fname    sql.NullString
		icik, iname, c sql.NullString
	)
	err := g.QueryRow(ctx,
		`SELECT `+strings.Join(filingCols, ", ")+` FROM filings WHERE accession_number = ?`,
		[]any{utils.NormalizeAccession(accession)},
		&f.AccessionNumber, &f.FormType, &filed, &period, &quarter, &fcik, &fname, &icik, &iname, &c)
	if err != nil {
		return f, fmt.Errorf("filing %s: %w", accession, err)
	}
	f.FilingDate, f.PeriodOfReport = timeOf(filed), timeOf(period)
	f.Quarter, f.FilerCIK, f.FilerName = quarter.String, fcik.String, fname.String
	f.IssuerCIK, f.IssuerName, f.IssuerCUSIP = icik.String, iname.String, c.String
	return f, nil
}

// Holdings returns the lines of one filing in row order.
func (g *Gateway) Holdings(ctx context.Context, accession string) ([]models.HoldingLine, error) {
	return queryAll(ctx, g, scanHolding,
		`SELECT `+strings.Join(holdingCols, ", ")+` FROM holdings WHERE accession_number = ?
		 ORDER BY TRY_CAST(row_key AS BIGINT), row_key`,
		utils.NormalizeAccession(accession))
}

func scanHolding(rows *sql.Rows) (models.HoldingLine, error) {
	var (
		h                                models.HoldingLine
		name, class, figi, st, pc, d, om sql.NullString
	)
	err := rows.Scan(&h.AccessionNumber, &h.RowKey, &h.CUSIP, &name, &class, &figi,
		&h.Value, &h.Shares, &st, &pc, &d, &om, &h.VotingSole, &h.VotingShared, &h.VotingNone)
	h.IssuerName, h.TitleOfClass, h.FIGI = name.String, class.String, figi.String
	h.ShareType, h.PutCall, h.InvestmentDiscretion, h.OtherManager = st.String, pc.String, d.String, om.String
	return h, err
}

// KnownAccessions reports which of accessions are already stored in table.
func (g *Gateway) KnownAccessions(ctx context.Context, table string, accessions []string) (map[string]bool, error) {
	known := make(map[string]bool)
	if len(accessions) == 0 {
		return known, nil
	}
	qt, err := QuoteTable(table)
	if err != nil {
		return nil, err
	}

	for start := 0; start < len(accessions); start += maxParams {
		chunk := accessions[start:min(start+maxParams, len(accessions))]
		args := make([]any, len(chunk))
		for i, a := range chunk {
			args[i] = utils.NormalizeAccession(a)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		found, err := queryAll(ctx, g, func(rows *sql.Rows) (string, error) {
			var a string
			return a, rows.Scan(&a)
		}, `SELECT DISTINCT accession_number FROM `+qt+` WHERE accession_number IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, err
		}
		for _, a := range found {
			known[a] = true
		}
	}
	return known, nil
}

// Count returns the number of rows in table.
func (g *Gateway) Count(ctx context.Context, table string) (int64, error) {
	qt, err := QuoteTable(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := g.QueryRow(ctx, `SELECT count(*) FROM `+qt, nil, &n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
