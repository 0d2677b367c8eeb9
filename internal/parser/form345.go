package parser

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// ownership table rows in document order, each with its sequence key code
var ownershipRows = []struct {
	table, row string
	code       string
	derivative bool
	holding    bool
}{
	{"nonDerivativeTable", "nonDerivativeTransaction", "NT", false, false},
	{"nonDerivativeTable", "nonDerivativeHolding", "NH", false, true},
	{"derivativeTable", "derivativeTransaction", "DT", true, false},
	{"derivativeTable", "derivativeHolding", "DH", true, true},
}

// SequenceKey builds the stable per-filing key of an ownership row:
// <accession>:<N|D><T|H>:<ordinal>, ordinal counting from 1 within its kind.
func SequenceKey(accession, code string, ordinal int) string {
	return fmt.Sprintf("%s:%s:%d", accession, code, ordinal)
}

// ParseOwnership parses a Form 3, 4 or 5 ownership document. text may be
// the bare XML or the full submission. It returns nil when no
// ownershipDocument is present.
func (p *Parser) ParseOwnership(text, accession string) *models.OwnershipDocument {
	doc, ok := block(text, "ownershipDocument")
	if !ok {
		p.logger.Debug("no ownershipDocument", zap.String("accession", accession))
		return nil
	}

	issuer, _ := block(doc, "issuer")
	out := &models.OwnershipDocument{
		AccessionNumber: accession,
		FormType:        strings.ToUpper(field(doc, "documentType")),
		PeriodOfReport:  utils.ParseDate(field(doc, "periodOfReport")),
		IssuerCIK:       utils.TrimCIK(field(issuer, "issuerCik")),
		IssuerName:      field(issuer, "issuerName"),
		IssuerTicker:    strings.ToUpper(field(issuer, "issuerTradingSymbol")),
	}
	if out.FormType == "" {
		if h := ParseSECHeader(text); h != nil {
			out.FormType = h.SubmissionType
		}
	}

	// Joint filings list several owners; the first is the filer of record.
	owner, _ := block(doc, "reportingOwner")
	rel, _ := block(owner, "reportingOwnerRelationship")
	base := models.InsiderTransaction{
		AccessionNumber:   accession,
		FormType:          out.FormType,
		IssuerCIK:         out.IssuerCIK,
		IssuerName:        out.IssuerName,
		IssuerTicker:      out.IssuerTicker,
		OwnerCIK:          utils.TrimCIK(field(owner, "rptOwnerCik")),
		OwnerName:         field(owner, "rptOwnerName"),
		IsDirector:        flag(rel, "isDirector"),
		IsOfficer:         flag(rel, "isOfficer"),
		IsTenPercentOwner: flag(rel, "isTenPercentOwner"),
		IsOther:           flag(rel, "isOther"),
		OfficerTitle:      field(rel, "officerTitle"),
	}

	for _, kind := range ownershipRows {
		table, ok := block(doc, kind.table)
		if !ok {
			continue
		}
		for i, row := range blocks(table, kind.row) {
			tx := base
			tx.SequenceKey = SequenceKey(accession, kind.code, i+1)
			tx.Derivative = kind.derivative
			tx.HoldingOnly = kind.holding
			tx.SecurityTitle = field(row, "securityTitle")
			tx.TransactionDate = utils.ParseDate(field(row, "transactionDate"))
			tx.TransactionCode = strings.ToUpper(field(row, "transactionCode"))
			tx.Shares = utils.ParseDecimal(field(row, "transactionShares"))
			tx.Price = utils.ParseDecimal(field(row, "transactionPricePerShare"))
			if tx.Derivative && tx.Price.IsZero() {
				tx.Price = utils.ParseDecimal(field(row, "conversionOrExercisePrice"))
			}
			tx.AcquiredDisposed = strings.ToUpper(field(row, "transactionAcquiredDisposedCode"))
			tx.SharesOwnedAfter = utils.ParseDecimal(field(row, "sharesOwnedFollowingTransaction"))
			tx.DirectOwnership = strings.ToUpper(field(row, "directOrIndirectOwnership")) != "I"
			out.Transactions = append(out.Transactions, tx)
		}
	}

	if out.IssuerCIK == "" && len(out.Transactions) == 0 {
		p.logger.Debug("empty ownership document", zap.String("accession", accession))
		return nil
	}
	return out
}
