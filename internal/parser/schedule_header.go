package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// extractor is one heuristic for pulling a value out of a cover page.
// Extractors run in order; the first candidate accepted by the chain's
// validator wins.
type extractor struct {
	name string
	re   *regexp.Regexp
}

const cusipToken = `([0-9A-Z]{6}[ \-]?[0-9A-Z]{2}[ \-]?[0-9])`

var cusipExtractors = []extractor{
	{"value above caption", regexp.MustCompile(`(?i)` + cusipToken + `\s*[_\-]*\s*\(\s*CUSIP\s+(?:Number|No\.?)\s*\)`)},
	{"labelled", regexp.MustCompile(`(?i)CUSIP\s*(?:Number|No\.?|#)?\s*(?:of\s+class\s+of\s+securities)?\s*[:.]?\s*` + cusipToken)},
	{"caption then value", regexp.MustCompile(`(?i)\(\s*CUSIP\s+(?:Number|No\.?)\s*\)\s*[_\-]*\s*` + cusipToken)},
}

var classExtractors = []extractor{
	{"value above caption", regexp.MustCompile(`(?i)([A-Za-z][^\n()]{1,120}?)\s*[_\-]*\s*\n?\s*\(\s*Title\s+of\s+Class\s+of\s+Securities\s*\)`)},
	{"labelled", regexp.MustCompile(`(?i)Title\s+of\s+Class\s+of\s+Securities\s*[:.]\s*([A-Za-z][^\n]{1,120})`)},
}

var percentExtractors = []extractor{
	{"row 11/13", regexp.MustCompile(`(?is)percent\s+of\s+class\s+represented\s+by\s+amount\s+in\s+row\s*\(?\s*(?:9|11)\s*\)?\s*[:.]?\s*([0-9]{1,3}(?:\.[0-9]+)?)\s*%`)},
	{"percent of class", regexp.MustCompile(`(?is)percent\s+of\s+class[^0-9%]{0,120}?([0-9]{1,3}(?:\.[0-9]+)?)\s*%`)},
}

var amountExtractors = []extractor{
	{"row 9/11", regexp.MustCompile(`(?is)aggregate\s+amount\s+beneficially\s+owned\s+by\s+each\s+reporting\s+person\s*[:.]?\s*([0-9][0-9,]*)`)},
	{"amount beneficially owned", regexp.MustCompile(`(?is)amount\s+beneficially\s+owned\s*[:.]?\s*([0-9][0-9,]*)`)},
}

var (
	eventDateRe = regexp.MustCompile(`(?i)([A-Za-z]+\.?\s+\d{1,2},?\s+\d{4}|\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2})\s*[_\-]*\s*\(\s*Date\s+of\s+Event`)
	amendmentRe = regexp.MustCompile(`(?i)Amendment\s+No\.?\s*:?\s*(\d{1,3})`)
	purposeRe   = regexp.MustCompile(`(?is)Item\s*4\.?\s*[:.\-]?\s*Purpose\s+of\s+(?:the\s+)?Transaction\.?(.*?)(?:Item\s*5\b|$)`)
)

// first runs the chain and returns the first candidate accepted by valid.
func first(chain []extractor, text string, valid func(string) (string, bool)) (string, string) {
	for _, ex := range chain {
		for _, m := range ex.re.FindAllStringSubmatch(text, -1) {
			if v, ok := valid(m[1]); ok {
				return v, ex.name
			}
		}
	}
	return "", ""
}

// IsScheduleForm reports whether a submission type is a Schedule 13D or 13G.
func IsScheduleForm(formType string) bool {
	return models.FamilyOf(strings.ToUpper(strings.TrimSpace(formType))) == models.Family13DG
}

// ParseScheduleHeader parses a legacy Schedule 13D/G submission: the
// SEC-HEADER gives the parties and dates, the cover page body gives the
// security and position. It returns nil for any other submission type.
func (p *Parser) ParseScheduleHeader(text, accession string) *models.BeneficialOwnershipFiling {
	h := ParseSECHeader(text)
	if h == nil {
		p.logger.Debug("no SEC-HEADER", zap.String("accession", accession))
		return nil
	}
	if !IsScheduleForm(h.SubmissionType) {
		return nil
	}

	f := &models.BeneficialOwnershipFiling{
		AccessionNumber: accession,
		FormType:        strings.ToUpper(h.SubmissionType),
		FilingDate:      h.FiledAsOf,
		IssuerCIK:       h.Subject.CIK,
		IssuerName:      h.Subject.Name,
		FilerCIK:        h.FiledBy.CIK,
		FilerName:       h.FiledBy.Name,
	}
	if f.AccessionNumber == "" {
		f.AccessionNumber = h.AccessionNumber
	}

	body := FlattenHTML(Body(text))

	var how string
	f.CUSIP, how = first(cusipExtractors, body, normalizeCUSIPCandidate)
	if f.CUSIP == "" {
		p.logger.Debug("no cusip on cover page", zap.String("accession", f.AccessionNumber))
	} else {
		p.logger.Debug("cusip extracted", zap.String("accession", f.AccessionNumber), zap.String("extractor", how))
		p.noteCheckDigit(f.AccessionNumber, f.CUSIP)
	}

	f.ClassTitle, _ = first(classExtractors, body, func(s string) (string, bool) {
		s = strings.Trim(strings.TrimSpace(s), "_-: ")
		return s, s != "" && !strings.EqualFold(s, "None")
	})

	if pct, _ := first(percentExtractors, body, func(s string) (string, bool) {
		v, ok := utils.ParsePercent(s)
		return s, ok && v >= 0 && v <= 100
	}); pct != "" {
		f.PercentOfClass, _ = utils.ParsePercent(pct)
	}

	if amt, _ := first(amountExtractors, body, func(s string) (string, bool) {
		_, ok := utils.ParseInt(s)
		return s, ok
	}); amt != "" {
		f.AggregateAmount = utils.ParseIntOrZero(amt)
	}

	if m := eventDateRe.FindStringSubmatch(body); m != nil {
		f.EventDate = parseLooseDate(m[1])
	}
	if m := amendmentRe.FindStringSubmatch(body); m != nil {
		f.AmendmentNumber, _ = strconv.Atoi(m[1])
	} else if strings.HasSuffix(f.FormType, "/A") {
		f.AmendmentNumber = 1
	}
	if m := purposeRe.FindStringSubmatch(body); m != nil {
		f.Purpose = strings.TrimSpace(m[1])
	}
	f.Intent = ClassifyIntent(f.Purpose)
	if !f.IsActivist() {
		f.Intent.Passive = true
	}
	return f
}

const blockTags = "p, div, tr, li, br, h1, h2, h3, h4, h5, h6, table, td"

// FlattenHTML renders an HTML (or plain text) filing body to text with line
// breaks at block boundaries and entities decoded.
func FlattenHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return cleanText(s)
	}
	doc.Find("script, style").Remove()
	doc.Find(blockTags).Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "td" {
			sel.AppendHtml(" ")
			return
		}
		sel.AppendHtml("\n")
	})

	var b strings.Builder
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func parseLooseDate(s string) (t time.Time) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ".", ""))
	if t = utils.ParseDate(s); !t.IsZero() {
		return t
	}
	for _, layout := range []string{"January 2, 2006", "January 2 2006", "Jan 2, 2006", "Jan 2 2006", "1/2/2006"} {
		if v, err := time.Parse(layout, s); err == nil {
			return v
		}
	}
	return t
}
