package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// latestCTE keeps each filer's latest 13F-HR or amendment per quarter in
// [?, ?].
const latestCTE = `latest AS (
	SELECT accession_number, filer_cik, filer_name, quarter
	FROM filings
	WHERE form_type IN ('13F-HR', '13F-HR/A') AND quarter BETWEEN ? AND ?
	QUALIFY row_number() OVER (PARTITION BY filer_cik, quarter ORDER BY filing_date DESC, accession_number DESC) = 1
)`

// positionsCTE selects equity lines (no PUT/CALL) from each filer's latest
// 13F-HR for quarters in [?, ?]. Shared-other lines are dropped when the
// same filing also reports the CUSIP under sole or shared-defined
// discretion, so one position is never counted twice. With byCUSIP a third
// parameter restricts lines to one CUSIP.
func positionsCTE(byCUSIP bool) string {
	cusipFilter := ""
	if byCUSIP {
		cusipFilter = " AND h.cusip = ?"
	}
	return `
WITH ` + latestCTE + `,
lines AS (
	SELECT l.filer_cik, l.filer_name, l.quarter, h.accession_number, h.cusip, h.issuer_name,
	       COALESCE(h.investment_discretion, '') AS discretion, h.shares, h.value
	FROM holdings h
	JOIN latest l ON l.accession_number = h.accession_number
	WHERE COALESCE(h.put_call, '') = ''` + cusipFilter + `
),
primary_lines AS (
	SELECT DISTINCT accession_number, cusip FROM lines WHERE discretion IN ('SOLE', 'DFND')
),
positions AS (
	SELECT l.* FROM lines l
	WHERE NOT (l.discretion = 'OTR' AND EXISTS (
		SELECT 1 FROM primary_lines p
		WHERE p.accession_number = l.accession_number AND p.cusip = l.cusip))
)
`
}

// HolderPositions aggregates every holder's position in a CUSIP for a
// quarter, largest value first.
func (g *Gateway) HolderPositions(ctx context.Context, cusip, quarter string) ([]models.HolderPosition, error) {
	c, err := utils.ValidateCUSIP(cusip)
	if err != nil {
		return nil, err
	}
	q, err := utils.ValidateQuarter(quarter)
	if err != nil {
		return nil, err
	}
	ps, err := queryAll(ctx, g, func(rows *sql.Rows) (models.HolderPosition, error) {
		var (
			p    models.HolderPosition
			name sql.NullString
		)
		err := rows.Scan(&p.FilerCIK, &name, &p.Shares, &p.Value)
		p.FilerName = name.String
		return p, err
	}, positionsCTE(true)+`
		SELECT filer_cik, max(filer_name), CAST(sum(shares) AS BIGINT), CAST(sum(value) AS BIGINT)
		FROM positions
		GROUP BY filer_cik
		ORDER BY 4 DESC, 1`, q, q, c)
	if err != nil {
		return nil, fmt.Errorf("holder positions %s %s: %w", c, q, err)
	}
	return ps, nil
}

// QuarterValues returns the aggregate institutional value of every CUSIP
// per quarter in [from, to], ordered by CUSIP then quarter.
func (g *Gateway) QuarterValues(ctx context.Context, from, to string) ([]models.QuarterValue, error) {
	f, err := utils.ValidateQuarter(from)
	if err != nil {
		return nil, err
	}
	t, err := utils.ValidateQuarter(to)
	if err != nil {
		return nil, err
	}
	return queryAll(ctx, g, func(rows *sql.Rows) (models.QuarterValue, error) {
		var (
			v    models.QuarterValue
			name sql.NullString
		)
		err := rows.Scan(&v.CUSIP, &name, &v.Quarter, &v.Value)
		v.IssuerName = name.String
		return v, err
	}, positionsCTE(false)+`
		SELECT cusip, max(issuer_name), quarter, CAST(sum(value) AS BIGINT)
		FROM positions
		GROUP BY cusip, quarter
		ORDER BY cusip, quarter`, f, t)
}

// OptionValues sums PUT and CALL line values for a CUSIP in a quarter,
// counting only each filer's latest filing.
func (g *Gateway) OptionValues(ctx context.Context, cusip, quarter string) (put, call int64, err error) {
	c, err := utils.ValidateCUSIP(cusip)
	if err != nil {
		return 0, 0, err
	}
	q, err := utils.ValidateQuarter(quarter)
	if err != nil {
		return 0, 0, err
	}
	err = g.QueryRow(ctx, `WITH `+latestCTE+`
		SELECT CAST(COALESCE(sum(CASE WHEN h.put_call = 'PUT' THEN h.value END), 0) AS BIGINT),
		       CAST(COALESCE(sum(CASE WHEN h.put_call = 'CALL' THEN h.value END), 0) AS BIGINT)
		FROM holdings h
		JOIN latest l ON l.accession_number = h.accession_number
		WHERE h.cusip = ?`, []any{q, q, c}, &put, &call)
	return put, call, err
}

// LatestQuarter returns the most recent quarter with holdings of cusip.
func (g *Gateway) LatestQuarter(ctx context.Context, cusip string) (string, error) {
	c, err := utils.ValidateCUSIP(cusip)
	if err != nil {
		return "", err
	}
	var q sql.NullString
	if err := g.QueryRow(ctx, `
		SELECT max(f.quarter)
		FROM holdings h
		JOIN filings f ON f.accession_number = h.accession_number
		WHERE h.cusip = ?`, []any{c}, &q); err != nil {
		return "", err
	}
	if !q.Valid {
		return "", fmt.Errorf("holdings of %s: %w", c, ErrNotFound)
	}
	return q.String, nil
}

// MaxQuarter returns the most recent quarter with any 13F filing.
func (g *Gateway) MaxQuarter(ctx context.Context) (string, error) {
	var q sql.NullString
	if err := g.QueryRow(ctx, `SELECT max(quarter) FROM filings WHERE form_type IN ('13F-HR', '13F-HR/A')`, nil, &q); err != nil {
		return "", err
	}
	if !q.Valid {
		return "", fmt.Errorf("13F filings: %w", ErrNotFound)
	}
	return q.String, nil
}
