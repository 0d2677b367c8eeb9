package store

import (
	"context"
	"database/sql"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

var insiderCols = []string{
	"sequence_key", "accession_number", "form_type", "filing_date", "issuer_cik", "issuer_name",
	"issuer_ticker", "owner_cik", "owner_name", "is_director", "is_officer", "is_ten_percent_owner",
	"is_other", "officer_title", "security_title", "transaction_date", "transaction_code",
	"shares", "price", "acquired_disposed", "shares_owned_after", "direct_ownership",
	"derivative", "holding_only",
}

// SaveInsider upserts Form 3/4/5 rows keyed by sequence key. Decimals are
// bound as text and cast by the column type.
func (w *Writer) SaveInsider(ctx context.Context, txs []models.InsiderTransaction) (int64, error) {
	rows := make([][]any, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, []any{
			t.SequenceKey, t.AccessionNumber, t.FormType, nullTime(t.FilingDate), t.IssuerCIK, t.IssuerName,
			t.IssuerTicker, t.OwnerCIK, t.OwnerName, t.IsDirector, t.IsOfficer, t.IsTenPercentOwner,
			t.IsOther, t.OfficerTitle, t.SecurityTitle, nullTime(t.TransactionDate), t.TransactionCode,
			t.Shares.String(), t.Price.String(), t.AcquiredDisposed, t.SharesOwnedAfter.String(), t.DirectOwnership,
			t.Derivative, t.HoldingOnly,
		})
	}
	return w.Upsert(ctx, TableInsider, insiderCols, rows, "sequence_key")
}

// InsiderTransactions returns the most recent insider rows for an issuer,
// newest transaction first.
func (g *Gateway) InsiderTransactions(ctx context.Context, issuerCIK string, limit int) ([]models.InsiderTransaction, error) {
	cik, err := utils.ValidateCIK(issuerCIK)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateLimit(limit, 1000); err != nil {
		return nil, err
	}
	return queryAll(ctx, g, scanInsider, `
		SELECT sequence_key, accession_number, form_type, filing_date, issuer_cik, issuer_name,
		       issuer_ticker, owner_cik, owner_name, is_director, is_officer, is_ten_percent_owner,
		       is_other, officer_title, security_title, transaction_date, transaction_code,
		       CAST(shares AS VARCHAR), CAST(price AS VARCHAR), acquired_disposed,
		       CAST(shares_owned_after AS VARCHAR), direct_ownership, derivative, holding_only
		FROM insider_transactions
		WHERE issuer_cik = ?
		ORDER BY transaction_date DESC NULLS LAST, filing_date DESC, sequence_key
		LIMIT ?`, cik, limit)
}

func scanInsider(rows *sql.Rows) (models.InsiderTransaction, error) {
	var (
		t                            models.InsiderTransaction
		filed, traded                sql.NullTime
		form, iname, ticker, ocik    sql.NullString
		oname, title, sec, code, ad  sql.NullString
		shares, price, after         sql.NullString
		dir, off, ten, other, direct sql.NullBool
		derivative, holding          sql.NullBool
	)
	err := rows.Scan(&t.SequenceKey, &t.AccessionNumber, &form, &filed, &t.IssuerCIK, &iname,
		&ticker, &ocik, &oname, &dir, &off, &ten,
		&other, &title, &sec, &traded, &code,
		&shares, &price, &ad, &after, &direct, &derivative, &holding)
	if err != nil {
		return t, err
	}
	t.FormType, t.IssuerName, t.IssuerTicker = form.String, iname.String, ticker.String
	t.OwnerCIK, t.OwnerName, t.OfficerTitle = ocik.String, oname.String, title.String
	t.SecurityTitle, t.TransactionCode, t.AcquiredDisposed = sec.String, code.String, ad.String
	t.FilingDate, t.TransactionDate = timeOf(filed), timeOf(traded)
	t.Shares = utils.ParseDecimal(shares.String)
	t.Price = utils.ParseDecimal(price.String)
	t.SharesOwnedAfter = utils.ParseDecimal(after.String)
	t.IsDirector, t.IsOfficer, t.IsTenPercentOwner, t.IsOther = dir.Bool, off.Bool, ten.Bool, other.Bool
	t.DirectOwnership, t.Derivative, t.HoldingOnly = direct.Bool, derivative.Bool, holding.Bool
	return t, nil
}
