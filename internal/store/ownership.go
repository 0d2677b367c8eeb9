package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

var beneficialCols = []string{
	"accession_number", "form_type", "filing_date", "event_date", "issuer_cik", "issuer_name",
	"filer_cik", "filer_name", "cusip", "class_title", "percent_of_class", "aggregate_amount",
	"amendment_number", "purpose", "sole_voting_total", "shared_voting_total",
	"sole_dispositive_total", "shared_dispositive_total",
	"intent_activist", "intent_board_change", "intent_merger_or_sale", "intent_capital_change",
	"intent_passive", "intent_may_acquire", "intent_may_dispose", "items", "signatures",
}

var personCols = []string{
	"accession_number", "ordinal", "name", "cik", "citizenship",
	"sole_voting_power", "shared_voting_power", "sole_dispositive_power", "shared_dispositive_power",
	"aggregate_amount", "percent_of_class", "type_codes",
}

// SaveBeneficial upserts Schedule 13D/G filings and replaces their
// reporting persons.
func (w *Writer) SaveBeneficial(ctx context.Context, filings []models.BeneficialOwnershipFiling) (int64, error) {
	if len(filings) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(filings))
	var persons [][]any
	accs := make([]any, 0, len(filings))
	for _, f := range filings {
		items, err := json.Marshal(f.Items)
		if err != nil {
			return 0, fmt.Errorf("encode items %s: %w", f.AccessionNumber, err)
		}
		sigs, err := json.Marshal(f.Signatures)
		if err != nil {
			return 0, fmt.Errorf("encode signatures %s: %w", f.AccessionNumber, err)
		}
		in := f.Intent
		rows = append(rows, []any{
			f.AccessionNumber, f.FormType, nullTime(f.FilingDate), nullTime(f.EventDate), f.IssuerCIK, f.IssuerName,
			f.FilerCIK, f.FilerName, f.CUSIP, f.ClassTitle, f.PercentOfClass, f.AggregateAmount,
			f.AmendmentNumber, f.Purpose, f.SoleVotingTotal, f.SharedVotingTotal,
			f.SoleDispositiveTotal, f.SharedDispositiveTotal,
			in.Activist, in.BoardChange, in.MergerOrSale, in.CapitalChange,
			in.Passive, in.MayAcquireMore, in.MayDispose, string(items), string(sigs),
		})
		accs = append(accs, f.AccessionNumber)
		for i, p := range f.ReportingPersons {
			persons = append(persons, []any{
				f.AccessionNumber, i + 1, p.Name, p.CIK, p.Citizenship,
				p.SoleVotingPower, p.SharedVotingPower, p.SoleDispositivePower, p.SharedDispositivePower,
				p.AggregateAmount, p.PercentOfClass, strings.Join(p.TypeCodes, ","),
			})
		}
	}

	n, err := w.Upsert(ctx, TableBeneficial, beneficialCols, rows, "accession_number")
	if err != nil {
		return n, err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(accs)), ", ")
	if _, err := w.Exec(ctx, `DELETE FROM bo_reporting_persons WHERE accession_number IN (`+placeholders+`)`, accs...); err != nil {
		return n, fmt.Errorf("clear reporting persons: %w", err)
	}
	if _, err := w.InsertIgnore(ctx, TableReportingPersons, personCols, persons, "accession_number", "ordinal"); err != nil {
		return n, err
	}
	return n, nil
}

// BeneficialFilings returns the most recent Schedule 13D/G filings for a
// CUSIP, newest first, with reporting persons attached.
func (g *Gateway) BeneficialFilings(ctx context.Context, cusip string, limit int) ([]models.BeneficialOwnershipFiling, error) {
	c, err := utils.ValidateCUSIP(cusip)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateLimit(limit, 1000); err != nil {
		return nil, err
	}

	filings, err := queryAll(ctx, g, scanBeneficial,
		`SELECT `+strings.Join(beneficialCols, ", ")+` FROM beneficial_ownership
		 WHERE cusip = ? ORDER BY filing_date DESC, accession_number DESC LIMIT ?`, c, limit)
	if err != nil || len(filings) == 0 {
		return filings, err
	}

	index := make(map[string]int, len(filings))
	args := make([]any, len(filings))
	for i, f := range filings {
		index[f.AccessionNumber] = i
		args[i] = f.AccessionNumber
	}
	type person struct {
		acc string
		p   models.ReportingPerson
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	persons, err := queryAll(ctx, g, func(rows *sql.Rows) (person, error) {
		var (
			r                  person
			name, cik, cz, tcs sql.NullString
		)
		err := rows.Scan(&r.acc, &name, &cik, &cz, &r.p.SoleVotingPower, &r.p.SharedVotingPower,
			&r.p.SoleDispositivePower, &r.p.SharedDispositivePower, &r.p.AggregateAmount, &r.p.PercentOfClass, &tcs)
		r.p.Name, r.p.CIK, r.p.Citizenship = name.String, cik.String, cz.String
		if tcs.String != "" {
			r.p.TypeCodes = strings.Split(tcs.String, ",")
		}
		return r, err
	}, `SELECT accession_number, name, cik, citizenship, sole_voting_power, shared_voting_power,
		sole_dispositive_power, shared_dispositive_power, aggregate_amount, percent_of_class, type_codes
		FROM bo_reporting_persons WHERE accession_number IN (`+placeholders+`) ORDER BY accession_number, ordinal`, args...)
	if err != nil {
		return nil, err
	}
	for _, r := range persons {
		f := &filings[index[r.acc]]
		r.p.Intent = f.Intent
		f.ReportingPersons = append(f.ReportingPersons, r.p)
	}
	return filings, nil
}

func scanBeneficial(rows *sql.Rows) (models.BeneficialOwnershipFiling, error) {
	var (
		f                    models.BeneficialOwnershipFiling
		filed, event         sql.NullTime
		icik, iname, fcik    sql.NullString
		fname, cusip, class  sql.NullString
		purpose, items, sigs sql.NullString
	)
	in := &f.Intent
	err := rows.Scan(&f.AccessionNumber, &f.FormType, &filed, &event, &icik, &iname,
		&fcik, &fname, &cusip, &class, &f.PercentOfClass, &f.AggregateAmount,
		&f.AmendmentNumber, &purpose, &f.SoleVotingTotal, &f.SharedVotingTotal,
		&f.SoleDispositiveTotal, &f.SharedDispositiveTotal,
		&in.Activist, &in.BoardChange, &in.MergerOrSale, &in.CapitalChange,
		&in.Passive, &in.MayAcquireMore, &in.MayDispose, &items, &sigs)
	if err != nil {
		return f, err
	}
	f.FilingDate, f.EventDate = timeOf(filed), timeOf(event)
	f.IssuerCIK, f.IssuerName, f.FilerCIK, f.FilerName = icik.String, iname.String, fcik.String, fname.String
	f.CUSIP, f.ClassTitle, f.Purpose = cusip.String, class.String, purpose.String
	if items.String != "" {
		if err := json.Unmarshal([]byte(items.String), &f.Items); err != nil {
			return f, fmt.Errorf("decode items %s: %w", f.AccessionNumber, err)
		}
	}
	if sigs.String != "" && sigs.String != "null" {
		if err := json.Unmarshal([]byte(sigs.String), &f.Signatures); err != nil {
			return f, fmt.Errorf("decode signatures %s: %w", f.AccessionNumber, err)
		}
	}
	return f, nil
}
