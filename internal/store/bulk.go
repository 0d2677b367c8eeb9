package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fixed file names inside the quarterly data set archives.
const (
	File13FSubmission = "SUBMISSION.tsv"
	File13FCoverPage  = "COVERPAGE.tsv"
	File13FInfoTable  = "INFOTABLE.tsv"

	FileOwnSubmission      = "SUBMISSION.tsv"
	FileOwnReportingOwner  = "REPORTINGOWNER.tsv"
	FileOwnNonDerivTrans   = "NONDERIV_TRANS.tsv"
	FileOwnNonDerivHolding = "NONDERIV_HOLDING.tsv"
	FileOwnDerivTrans      = "DERIV_TRANS.tsv"
	FileOwnDerivHolding    = "DERIV_HOLDING.tsv"
)

// Expression fragments shared by the loaders. Dates in the data sets are
// DD-MON-YYYY.
const (
	dsDate  = `TRY_CAST(try_strptime(%s, '%%d-%%b-%%Y') AS DATE)`
	dsInt   = `TRY_CAST(replace(%s, ',', '') AS BIGINT)`
	dsDec   = `TRY_CAST(replace(%s, ',', '') AS DECIMAL(24, 4))`
	unitCut = `DATE '2023-01-03'`
)

func readTSV(path string) string {
	return `read_csv(` + quoteLiteral(path) + `, delim = '\t', header = true, all_varchar = true, ignore_errors = true)`
}

// quarterExpr labels the quarter of period when known, else of the filing
// date less the 45-day filing lag.
func quarterExpr(period, filed string) string {
	return fmt.Sprintf(`CASE WHEN %[1]s IS NOT NULL THEN format('{}-Q{}', year(%[1]s), quarter(%[1]s))
		WHEN %[2]s IS NOT NULL THEN format('{}-Q{}', year(%[2]s - 45), quarter(%[2]s - 45)) END`, period, filed)
}

func requireFiles(dir string, names ...string) error {
	for _, n := range names {
		if _, err := os.Stat(filepath.Join(dir, n)); err != nil {
			return fmt.Errorf("data set file %s: %w", n, err)
		}
	}
	return nil
}

// Load13FDataset bulk-loads an extracted 13F data set directory. Filings
// and holding lines already present are skipped, so loading the same
// quarter twice leaves row counts unchanged. Values reported in thousands
// before 2023-01-03 are scaled to dollars. It returns the number of holding
// lines inserted.
func (g *Gateway) Load13FDataset(ctx context.Context, dir string) (int64, error) {
	if err := requireFiles(dir, File13FSubmission, File13FInfoTable); err != nil {
		return 0, err
	}
	sub := readTSV(filepath.Join(dir, File13FSubmission))
	info := readTSV(filepath.Join(dir, File13FInfoTable))

	names := `(SELECT NULL AS acc, NULL AS name WHERE false)`
	if requireFiles(dir, File13FCoverPage) == nil {
		names = `(SELECT ACCESSION_NUMBER AS acc, FILINGMANAGER_NAME AS name FROM ` +
			readTSV(filepath.Join(dir, File13FCoverPage)) + `)`
	}

	subq := `(SELECT ACCESSION_NUMBER AS acc, SUBMISSIONTYPE AS form,
			` + fmt.Sprintf(dsDate, "FILING_DATE") + ` AS filed,
			` + fmt.Sprintf(dsDate, "PERIODOFREPORT") + ` AS period,
			ltrim(CIK, '0') AS cik
		FROM ` + sub + `)`

	filings := `INSERT OR IGNORE INTO filings
		(accession_number, form_type, filing_date, period_of_report, quarter, filer_cik, filer_name,
		 issuer_cik, issuer_name, issuer_cusip)
		SELECT DISTINCT ON (s.acc) s.acc, s.form, s.filed, s.period, ` + quarterExpr("s.period", "s.filed") + `,
			s.cik, c.name, '', '', ''
		FROM ` + subq + ` s
		LEFT JOIN ` + names + ` c ON c.acc = s.acc
		WHERE s.acc IS NOT NULL`

	value := fmt.Sprintf(dsInt, "i.VALUE")
	holdings := `INSERT OR IGNORE INTO holdings
		(accession_number, row_key, cusip, issuer_name, title_of_class, figi, value, shares, share_type,
		 put_call, investment_discretion, other_manager, voting_sole, voting_shared, voting_none)
		SELECT DISTINCT ON (i.ACCESSION_NUMBER, i.INFOTABLE_SK)
			i.ACCESSION_NUMBER, i.INFOTABLE_SK, upper(trim(i.CUSIP)), i.NAMEOFISSUER, i.TITLEOFCLASS, i.FIGI,
			COALESCE(CASE WHEN s.filed < ` + unitCut + ` THEN ` + value + ` * 1000 ELSE ` + value + ` END, 0),
			COALESCE(` + fmt.Sprintf(dsInt, "i.SSHPRNAMT") + `, 0),
			upper(i.SSHPRNAMTTYPE),
			CASE WHEN upper(i.PUTCALL) IN ('PUT', 'CALL') THEN upper(i.PUTCALL) ELSE '' END,
			upper(i.INVESTMENTDISCRETION), i.OTHERMANAGER,
			COALESCE(` + fmt.Sprintf(dsInt, "i.VOTING_AUTH_SOLE") + `, 0),
			COALESCE(` + fmt.Sprintf(dsInt, "i.VOTING_AUTH_SHARED") + `, 0),
			COALESCE(` + fmt.Sprintf(dsInt, "i.VOTING_AUTH_NONE") + `, 0)
		FROM ` + info + ` i
		JOIN ` + subq + ` s ON s.acc = i.ACCESSION_NUMBER
		WHERE regexp_full_match(upper(trim(i.CUSIP)), '[0-9A-Z]{9}') AND i.INFOTABLE_SK IS NOT NULL`

	var inserted int64
	err := g.Tx(ctx, func(w *Writer) error {
		if _, err := w.Exec(ctx, filings); err != nil {
			return fmt.Errorf("load 13F filings: %w", err)
		}
		res, err := w.Exec(ctx, holdings)
		if err != nil {
			return fmt.Errorf("load 13F holdings: %w", err)
		}
		inserted, _ = res.RowsAffected()
		return nil
	})
	return inserted, err
}

// ownership data set tables, in the order the feed parser numbers them
var ownershipKinds = []struct {
	file, sk, code      string
	derivative, holding bool
}{
	{FileOwnNonDerivTrans, "NONDERIV_TRANS_SK", "NT", false, false},
	{FileOwnNonDerivHolding, "NONDERIV_HOLDING_SK", "NH", false, true},
	{FileOwnDerivTrans, "DERIV_TRANS_SK", "DT", true, false},
	{FileOwnDerivHolding, "DERIV_HOLDING_SK", "DH", true, true},
}

// LoadInsiderDataset bulk-loads an extracted Form 3/4/5 data set directory.
// Sequence keys follow the same <accession>:<kind>:<ordinal> scheme as
// parsed filings, ordinals taken from the data set's row order. It returns
// the number of insider rows inserted.
func (g *Gateway) LoadInsiderDataset(ctx context.Context, dir string) (int64, error) {
	if err := requireFiles(dir, FileOwnSubmission, FileOwnReportingOwner); err != nil {
		return 0, err
	}
	sub := `(SELECT ACCESSION_NUMBER AS acc, DOCUMENT_TYPE AS form,
			` + fmt.Sprintf(dsDate, "FILING_DATE") + ` AS filed,
			` + fmt.Sprintf(dsDate, "PERIOD_OF_REPORT") + ` AS period,
			ltrim(ISSUERCIK, '0') AS issuer_cik, ISSUERNAME AS issuer_name,
			upper(ISSUERTRADINGSYMBOL) AS ticker
		FROM ` + readTSV(filepath.Join(dir, FileOwnSubmission)) + `)`
	owner := `(SELECT ACCESSION_NUMBER AS acc, ltrim(RPTOWNERCIK, '0') AS cik, RPTOWNERNAME AS name,
			COALESCE(RPTOWNER_RELATIONSHIP, '') AS rel, RPTOWNER_TITLE AS title
		FROM ` + readTSV(filepath.Join(dir, FileOwnReportingOwner)) + `
		QUALIFY row_number() OVER (PARTITION BY ACCESSION_NUMBER ORDER BY RPTOWNERCIK) = 1)`

	filings := `INSERT OR IGNORE INTO filings
		(accession_number, form_type, filing_date, period_of_report, quarter, filer_cik, filer_name,
		 issuer_cik, issuer_name, issuer_cusip)
		SELECT DISTINCT ON (s.acc) s.acc, s.form, s.filed, s.period, ` + quarterExpr("s.period", "s.filed") + `,
			o.cik, o.name, s.issuer_cik, s.issuer_name, ''
		FROM ` + sub + ` s
		LEFT JOIN ` + owner + ` o ON o.acc = s.acc
		WHERE s.acc IS NOT NULL`

	var stmts []string
	for _, k := range ownershipKinds {
		if requireFiles(dir, k.file) != nil {
			continue
		}
		stmts = append(stmts, insiderInsert(readTSV(filepath.Join(dir, k.file)), sub, owner, k.sk, k.code, k.derivative, k.holding))
	}

	var inserted int64
	err := g.Tx(ctx, func(w *Writer) error {
		if _, err := w.Exec(ctx, filings); err != nil {
			return fmt.Errorf("load insider filings: %w", err)
		}
		for _, stmt := range stmts {
			res, err := w.Exec(ctx, stmt)
			if err != nil {
				return fmt.Errorf("load insider rows: %w", err)
			}
			n, _ := res.RowsAffected()
			inserted += n
		}
		return nil
	})
	return inserted, err
}

func insiderInsert(table, sub, owner, sk, code string, derivative, holding bool) string {
	col := func(name string) string {
		if holding {
			return "NULL"
		}
		return "t." + name
	}
	price := fmt.Sprintf(dsDec, col("TRANS_PRICEPERSHARE"))
	if derivative {
		price = `COALESCE(NULLIF(` + price + `, 0), ` + fmt.Sprintf(dsDec, "t.CONV_EXERCISE_PRICE") + `, 0)`
	} else {
		price = `COALESCE(` + price + `, 0)`
	}
	sqlBool := func(b bool) string { return strings.ToUpper(fmt.Sprint(b)) }

	return `INSERT OR IGNORE INTO insider_transactions
		(sequence_key, accession_number, form_type, filing_date, issuer_cik, issuer_name, issuer_ticker,
		 owner_cik, owner_name, is_director, is_officer, is_ten_percent_owner, is_other, officer_title,
		 security_title, transaction_date, transaction_code, shares, price, acquired_disposed,
		 shares_owned_after, direct_ownership, derivative, holding_only)
		SELECT
			t.ACCESSION_NUMBER || ':` + code + `:' || CAST(row_number() OVER (
				PARTITION BY t.ACCESSION_NUMBER ORDER BY TRY_CAST(t.` + sk + ` AS BIGINT)) AS VARCHAR),
			t.ACCESSION_NUMBER, s.form, s.filed, s.issuer_cik, s.issuer_name, s.ticker,
			o.cik, o.name,
			contains(COALESCE(o.rel, ''), 'Director'), contains(COALESCE(o.rel, ''), 'Officer'),
			contains(COALESCE(o.rel, ''), 'TenPercentOwner'), contains(COALESCE(o.rel, ''), 'Other'),
			o.title,
			t.SECURITY_TITLE,
			` + fmt.Sprintf(dsDate, col("TRANS_DATE")) + `,
			upper(` + col("TRANS_CODE") + `),
			COALESCE(` + fmt.Sprintf(dsDec, col("TRANS_SHARES")) + `, 0),
			` + price + `,
			upper(` + col("TRANS_ACQUIRED_DISP_CD") + `),
			COALESCE(` + fmt.Sprintf(dsDec, "t.SHRS_OWND_FOLWNG_TRANS") + `, 0),
			upper(COALESCE(t.DIRECT_INDIRECT_OWNERSHIP, 'D')) <> 'I',
			` + sqlBool(derivative) + `, ` + sqlBool(holding) + `
		FROM ` + table + ` t
		JOIN ` + sub + ` s ON s.acc = t.ACCESSION_NUMBER
		LEFT JOIN ` + owner + ` o ON o.acc = t.ACCESSION_NUMBER
		WHERE t.ACCESSION_NUMBER IS NOT NULL`
}
