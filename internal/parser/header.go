package parser

import (
	"bufio"
	"strings"
	"time"

	"github.com/seenimoa/filinglens/pkg/utils"
)

// Party is one company block of an SEC-HEADER.
type Party struct {
	Name string
	CIK  string
}

// SECHeader is the fixed-format header that opens every submission text.
type SECHeader struct {
	AccessionNumber string
	SubmissionType  string
	FiledAsOf       time.Time
	PeriodOfReport  time.Time
	Subject         Party // SUBJECT COMPANY or ISSUER
	FiledBy         Party // FILED BY, FILER or REPORTING-OWNER
}

// header section names mapped to the party they describe
var headerSections = map[string]string{
	"SUBJECT COMPANY": "subject",
	"ISSUER":          "subject",
	"FILED BY":        "filer",
	"FILER":           "filer",
	"REPORTING-OWNER": "filer",
}

// ParseSECHeader reads the SEC-HEADER block of a submission. The first
// block of each party wins. It returns nil when no submission type is found.
func ParseSECHeader(text string) *SECHeader {
	if i := strings.Index(text, "</SEC-HEADER>"); i >= 0 {
		text = text[:i]
	} else if i := strings.Index(text, "<DOCUMENT>"); i >= 0 {
		text = text[:i]
	}

	h := &SECHeader{}
	section := ""
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		// Section openers sit at column 0 with nothing after the colon.
		if val == "" && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			if s, known := headerSections[key]; known {
				section = s
			}
			continue
		}

		switch key {
		case "ACCESSION NUMBER":
			h.AccessionNumber = utils.NormalizeAccession(val)
		case "CONFORMED SUBMISSION TYPE":
			h.SubmissionType = val
		case "FILED AS OF DATE":
			h.FiledAsOf = utils.ParseDate(val)
		case "CONFORMED PERIOD OF REPORT":
			h.PeriodOfReport = utils.ParseDate(val)
		case "COMPANY CONFORMED NAME":
			switch section {
			case "subject":
				if h.Subject.Name == "" {
					h.Subject.Name = val
				}
			case "filer":
				if h.FiledBy.Name == "" {
					h.FiledBy.Name = val
				}
			}
		case "CENTRAL INDEX KEY":
			switch section {
			case "subject":
				if h.Subject.CIK == "" {
					h.Subject.CIK = utils.TrimCIK(val)
				}
			case "filer":
				if h.FiledBy.CIK == "" {
					h.FiledBy.CIK = utils.TrimCIK(val)
				}
			}
		}
	}
	if h.SubmissionType == "" {
		return nil
	}
	return h
}

// Body returns the submission text after the SEC-HEADER block.
func Body(text string) string {
	if i := strings.Index(text, "</SEC-HEADER>"); i >= 0 {
		return text[i+len("</SEC-HEADER>"):]
	}
	if i := strings.Index(text, "<DOCUMENT>"); i >= 0 {
		return text[i:]
	}
	return text
}
