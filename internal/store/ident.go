package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrIdentifier is returned when a table, column or database name fails
	// the identifier pattern.
	ErrIdentifier = errors.New("invalid sql identifier")
	// ErrTableNotAllowed is returned for a well-formed table name that is not
	// part of the schema.
	ErrTableNotAllowed = errors.New("table not allowed")
	// ErrNotFound is returned by single-row reads that match nothing.
	ErrNotFound = errors.New("not found")
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Tables that writes and dynamic reads may target.
const (
	TableFilings          = "filings"
	TableHoldings         = "holdings"
	TableBeneficial       = "beneficial_ownership"
	TableReportingPersons = "bo_reporting_persons"
	TableInsider          = "insider_transactions"
	TableCusipMappings    = "cusip_mappings"
	TableFilerNames       = "filer_names"
	TableSyncState        = "sync_state"
	TableBackfill         = "backfill_progress"
)

var allowedTables = map[string]bool{
	TableFilings:          true,
	TableHoldings:         true,
	TableBeneficial:       true,
	TableReportingPersons: true,
	TableInsider:          true,
	TableCusipMappings:    true,
	TableFilerNames:       true,
	TableSyncState:        true,
	TableBackfill:         true,
}

// QuoteIdent validates name against the identifier pattern and returns it
// double-quoted for interpolation.
func QuoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrIdentifier, name)
	}
	return `"` + name + `"`, nil
}

// QuoteTable validates a table name against the pattern and the schema
// allow-list.
func QuoteTable(name string) (string, error) {
	q, err := QuoteIdent(name)
	if err != nil {
		return "", err
	}
	if !allowedTables[name] {
		return "", fmt.Errorf("%w: %q", ErrTableNotAllowed, name)
	}
	return q, nil
}

func quoteIdents(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		q, err := QuoteIdent(n)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// quoteLiteral renders s as a SQL string literal. Only used for values
// DuckDB cannot bind as parameters, such as table function file paths.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
