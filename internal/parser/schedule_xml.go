package parser

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

var itemNameRe = regexp.MustCompile(`(?i)^item([1-7])$`)

// Aliases across the 13D and 13G XML schemas.
var (
	personTags     = []string{"reportingPersonInfo", "coverPageHeaderReportingPersonDetails", "reportingPersonDetails"}
	personNameTags = []string{"reportingPersonName", "nameOfReportingPerson"}
	personCIKTags  = []string{"reportingPersonCIK", "reportingPersonCik", "rptOwnerCik"}
	citizenTags    = []string{"citizenshipOrOrganization", "citizenshipOrPlaceOfOrganization"}
	soleVoteTags   = []string{"soleVotingPower"}
	sharedVoteTags = []string{"sharedVotingPower"}
	soleDispTags   = []string{"soleDispositivePower"}
	sharedDispTags = []string{"sharedDispositivePower"}
	aggregateTags  = []string{"aggregateAmountOwned", "reportingPersonBeneficiallyOwnedAggregateNumberOfShares", "aggregateAmountBeneficiallyOwned"}
	percentTags    = []string{"percentOfClass", "classPercent", "percentOfClassRepresented"}
	typeTags       = []string{"typeOfReportingPerson", "typeOfReportingPersons"}
	purposeTags    = []string{"transactionPurpose", "purposeOfTransaction"}
)

// ParseScheduleXML parses an XML-format Schedule 13D/G. Reporting persons
// and signatures may be absent. Voting and dispositive totals are summed
// over reporting persons; percent and aggregate amount are the maximum
// reported by any person, since joint filers report the same block. It
// returns nil when the document has no Schedule 13D/G content.
func (p *Parser) ParseScheduleXML(raw, accession string) *models.BeneficialOwnershipFiling {
	if x, ok := block(raw, "XML"); ok {
		raw = x
	}
	root := parseTree(strings.TrimSpace(raw))
	if root == nil {
		p.logger.Debug("schedule xml did not decode", zap.String("accession", accession))
		return nil
	}

	formType := strings.ToUpper(root.get("submissionType"))
	if !IsScheduleForm(formType) {
		p.logger.Debug("not a schedule 13D/G document", zap.String("accession", accession), zap.String("type", formType))
		return nil
	}

	cover := root.find("coverPageHeader")
	issuer := root.find("issuerInfo")
	f := &models.BeneficialOwnershipFiling{
		AccessionNumber: accession,
		FormType:        formType,
		IssuerCIK:       utils.TrimCIK(issuer.get("issuerCIK", "issuerCik")),
		IssuerName:      issuer.get("issuerName"),
		CUSIP:           utils.NormalizeCUSIP(issuer.get("issuerCUSIP", "issuerCusip", "cusipNumber")),
		ClassTitle:      cover.get("securitiesClassTitle", "titleOfClass"),
		EventDate:       utils.ParseDate(cover.get("dateOfEvent", "eventDateRequiresFilingThisStatement")),
		FilerCIK:        utils.TrimCIK(root.find("filerCredentials", "filer").get("cik")),
		Items:           make(map[int]string),
	}
	if f.CUSIP == "" {
		f.CUSIP = utils.NormalizeCUSIP(root.get("issuerCUSIP", "cusipNumber"))
	}
	if c, ok := normalizeCUSIPCandidate(f.CUSIP); ok {
		f.CUSIP = c
		p.noteCheckDigit(accession, c)
	} else if f.CUSIP != "" {
		p.logger.Debug("invalid cusip in schedule xml", zap.String("accession", accession), zap.String("cusip", f.CUSIP))
	}
	if n := root.get("amendmentNo", "amendmentNumber"); n != "" {
		f.AmendmentNumber, _ = strconv.Atoi(n)
	} else if strings.HasSuffix(formType, "/A") {
		f.AmendmentNumber = 1
	}

	if items := root.find("items1To7", "items"); items != nil {
		for _, c := range items.children {
			if m := itemNameRe.FindStringSubmatch(c.name); m != nil {
				n, _ := strconv.Atoi(m[1])
				f.Items[n] = c.textContent()
			}
		}
	}
	f.Purpose = root.get(purposeTags...)
	if f.Purpose == "" {
		f.Purpose = f.Items[4]
	}
	f.Intent = ClassifyIntent(f.Purpose)
	if !f.IsActivist() {
		f.Intent.Passive = true
	}

	for _, pn := range root.findAll(personTags...) {
		rp := models.ReportingPerson{
			Name:                   pn.get(personNameTags...),
			CIK:                    utils.TrimCIK(pn.get(personCIKTags...)),
			Citizenship:            pn.get(citizenTags...),
			SoleVotingPower:        utils.ParseIntOrZero(pn.get(soleVoteTags...)),
			SharedVotingPower:      utils.ParseIntOrZero(pn.get(sharedVoteTags...)),
			SoleDispositivePower:   utils.ParseIntOrZero(pn.get(soleDispTags...)),
			SharedDispositivePower: utils.ParseIntOrZero(pn.get(sharedDispTags...)),
			AggregateAmount:        utils.ParseIntOrZero(pn.get(aggregateTags...)),
			Intent:                 f.Intent,
		}
		rp.PercentOfClass, _ = utils.ParsePercent(pn.get(percentTags...))
		for _, tn := range pn.findAll(typeTags...) {
			for _, code := range strings.FieldsFunc(tn.textContent(), func(r rune) bool { return r == ',' || r == ' ' || r == ';' }) {
				rp.TypeCodes = append(rp.TypeCodes, strings.ToUpper(code))
			}
		}

		f.ReportingPersons = append(f.ReportingPersons, rp)
		f.SoleVotingTotal += rp.SoleVotingPower
		f.SharedVotingTotal += rp.SharedVotingPower
		f.SoleDispositiveTotal += rp.SoleDispositivePower
		f.SharedDispositiveTotal += rp.SharedDispositivePower
		if rp.AggregateAmount > f.AggregateAmount {
			f.AggregateAmount = rp.AggregateAmount
		}
		if rp.PercentOfClass > f.PercentOfClass {
			f.PercentOfClass = rp.PercentOfClass
		}
	}
	if len(f.ReportingPersons) > 0 {
		f.FilerName = f.ReportingPersons[0].Name
		if f.FilerCIK == "" {
			f.FilerCIK = f.ReportingPersons[0].CIK
		}
	}

	for _, sn := range root.findAll("signatureDetails", "signaturePerson") {
		sig := models.Signature{
			Name:  sn.get("signature", "signatureName"),
			Title: sn.get("title", "signatureTitle"),
			Date:  sn.get("date", "signatureDate"),
		}
		if sig.Name != "" || sig.Title != "" {
			f.Signatures = append(f.Signatures, sig)
		}
	}

	if f.IssuerName == "" && f.CUSIP == "" {
		p.logger.Debug("schedule xml without issuer", zap.String("accession", accession))
		return nil
	}
	return f
}
