// Package parser turns raw filing text into canonical records.
//
// Three wire shapes are handled: namespaced XML (13F information tables,
// Schedule 13D/G XML, Forms 3/4/5), fixed-format SEC-HEADER blocks with a
// free-form HTML or text body (legacy Schedule 13D/G), and the full
// submission text that wraps either. Parsers never return errors for
// malformed input: they return nil or an empty result and log why, so one
// bad filing cannot abort a batch.
package parser

import (
	"html"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/pkg/utils"
)

// Parser holds the diagnostic logger shared by every format.
type Parser struct {
	logger *zap.Logger
}

// New returns a Parser logging diagnostics to logger (nil discards them).
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger.Named("parser")}
}

// --- Tag matching shared by the regex-driven formats ---

var blockCache = newPatternCache()

// blocks returns the inner text of every <local> element, any namespace
// prefix, any letter case.
func blocks(raw, local string) []string {
	re := blockCache.get(local)
	ms := re.FindAllStringSubmatch(raw, -1)
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m[1])
	}
	return out
}

// block returns the inner text of the first <local> element.
func block(raw, local string) (string, bool) {
	m := blockCache.get(local).FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// field returns the decoded text of the first <local> element, unwrapping a
// nested <value> element when present. Missing elements yield "".
func field(raw, local string) string {
	inner, ok := block(raw, local)
	if !ok {
		return ""
	}
	if v, ok := block(inner, "value"); ok {
		inner = v
	}
	return cleanText(inner)
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// cleanText strips tags, decodes entities, and collapses whitespace.
func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func flag(raw, local string) bool {
	switch strings.ToLower(field(raw, local)) {
	case "1", "true", "y", "yes", "x":
		return true
	}
	return false
}

type patternCache struct {
	m map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	pc := &patternCache{m: make(map[string]*regexp.Regexp)}
	// Pre-compile every tag the parsers read so the map is never written
	// after init.
	for _, t := range knownTags {
		pc.m[strings.ToLower(t)] = compileBlock(t)
	}
	return pc
}

func (pc *patternCache) get(local string) *regexp.Regexp {
	if re, ok := pc.m[strings.ToLower(local)]; ok {
		return re
	}
	return compileBlock(local)
}

func compileBlock(local string) *regexp.Regexp {
	q := regexp.QuoteMeta(local)
	return regexp.MustCompile(`(?is)<(?:[\w.-]+:)?` + q + `(?:\s[^>]*)?>(.*?)</(?:[\w.-]+:)?` + q + `\s*>`)
}

var knownTags = []string{
	"value",
	// 13F information table
	"infoTable", "nameOfIssuer", "titleOfClass", "cusip", "figi", "shrsOrPrnAmt",
	"sshPrnamt", "sshPrnamtType", "putCall", "investmentDiscretion", "otherManager",
	"votingAuthority", "Sole", "Shared", "None",
	// Forms 3/4/5
	"ownershipDocument", "documentType", "periodOfReport", "issuer", "issuerCik",
	"issuerName", "issuerTradingSymbol", "reportingOwner", "rptOwnerCik", "rptOwnerName",
	"reportingOwnerRelationship", "isDirector", "isOfficer", "isTenPercentOwner", "isOther",
	"officerTitle", "nonDerivativeTable", "derivativeTable", "nonDerivativeTransaction",
	"nonDerivativeHolding", "derivativeTransaction", "derivativeHolding", "securityTitle",
	"transactionDate", "transactionCode", "transactionShares", "transactionPricePerShare",
	"transactionAcquiredDisposedCode", "sharesOwnedFollowingTransaction",
	"directOrIndirectOwnership", "conversionOrExercisePrice",
}

// normalizeCUSIPCandidate strips separators from a matched CUSIP and
// reports whether it is structurally valid: 9 alphanumerics ending in a
// numeric check digit.
func normalizeCUSIPCandidate(s string) (string, bool) {
	c := strings.ToUpper(strings.NewReplacer(" ", "", "-", "", "\t", "", "\n", "").Replace(s))
	if !utils.IsCUSIP(c) || c[8] < '0' || c[8] > '9' {
		return "", false
	}
	return c, true
}

// noteCheckDigit logs a CUSIP whose check digit does not verify. The CUSIP
// is still used.
func (p *Parser) noteCheckDigit(accession, cusip string) {
	if cusip != "" && !utils.CUSIPCheckDigitOK(cusip) {
		p.logger.Debug("cusip check digit mismatch", zap.String("accession", accession), zap.String("cusip", cusip))
	}
}
