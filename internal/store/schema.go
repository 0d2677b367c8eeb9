package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS filings (
		accession_number VARCHAR PRIMARY KEY,
		form_type        VARCHAR NOT NULL,
		filing_date      DATE,
		period_of_report DATE,
		quarter          VARCHAR,
		filer_cik        VARCHAR,
		filer_name       VARCHAR,
		issuer_cik       VARCHAR,
		issuer_name      VARCHAR,
		issuer_cusip     VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		accession_number      VARCHAR NOT NULL,
		row_key               VARCHAR NOT NULL,
		cusip                 VARCHAR NOT NULL,
		issuer_name           VARCHAR,
		title_of_class        VARCHAR,
		figi                  VARCHAR,
		value                 BIGINT NOT NULL DEFAULT 0,
		shares                BIGINT NOT NULL DEFAULT 0,
		share_type            VARCHAR,
		put_call              VARCHAR,
		investment_discretion VARCHAR,
		other_manager         VARCHAR,
		voting_sole           BIGINT NOT NULL DEFAULT 0,
		voting_shared         BIGINT NOT NULL DEFAULT 0,
		voting_none           BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (accession_number, row_key)
	)`,
	`CREATE TABLE IF NOT EXISTS beneficial_ownership (
		accession_number         VARCHAR PRIMARY KEY,
		form_type                VARCHAR NOT NULL,
		filing_date              DATE,
		event_date               DATE,
		issuer_cik               VARCHAR,
		issuer_name              VARCHAR,
		filer_cik                VARCHAR,
		filer_name               VARCHAR,
		cusip                    VARCHAR,
		class_title              VARCHAR,
		percent_of_class         DOUBLE,
		aggregate_amount         BIGINT,
		amendment_number         INTEGER,
		purpose                  VARCHAR,
		sole_voting_total        BIGINT,
		shared_voting_total      BIGINT,
		sole_dispositive_total   BIGINT,
		shared_dispositive_total BIGINT,
		intent_activist          BOOLEAN,
		intent_board_change      BOOLEAN,
		intent_merger_or_sale    BOOLEAN,
		intent_capital_change    BOOLEAN,
		intent_passive           BOOLEAN,
		intent_may_acquire       BOOLEAN,
		intent_may_dispose       BOOLEAN,
		items                    VARCHAR,
		signatures               VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS bo_reporting_persons (
		accession_number         VARCHAR NOT NULL,
		ordinal                  INTEGER NOT NULL,
		name                     VARCHAR,
		cik                      VARCHAR,
		citizenship              VARCHAR,
		sole_voting_power        BIGINT,
		shared_voting_power      BIGINT,
		sole_dispositive_power   BIGINT,
		shared_dispositive_power BIGINT,
		aggregate_amount         BIGINT,
		percent_of_class         DOUBLE,
		type_codes               VARCHAR,
		PRIMARY KEY (accession_number, ordinal)
	)`,
	`CREATE TABLE IF NOT EXISTS insider_transactions (
		sequence_key         VARCHAR PRIMARY KEY,
		accession_number     VARCHAR NOT NULL,
		form_type            VARCHAR,
		filing_date          DATE,
		issuer_cik           VARCHAR,
		issuer_name          VARCHAR,
		issuer_ticker        VARCHAR,
		owner_cik            VARCHAR,
		owner_name           VARCHAR,
		is_director          BOOLEAN,
		is_officer           BOOLEAN,
		is_ten_percent_owner BOOLEAN,
		is_other             BOOLEAN,
		officer_title        VARCHAR,
		security_title       VARCHAR,
		transaction_date     DATE,
		transaction_code     VARCHAR,
		shares               DECIMAL(24, 4),
		price                DECIMAL(20, 4),
		acquired_disposed    VARCHAR,
		shares_owned_after   DECIMAL(24, 4),
		direct_ownership     BOOLEAN,
		derivative           BOOLEAN,
		holding_only         BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS cusip_mappings (
		cusip         VARCHAR PRIMARY KEY,
		ticker        VARCHAR,
		figi          VARCHAR,
		name          VARCHAR,
		exchange_code VARCHAR,
		security_type VARCHAR,
		market_sector VARCHAR,
		error         VARCHAR,
		cached_at     TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS filer_names (
		cik       VARCHAR PRIMARY KEY,
		name      VARCHAR NOT NULL,
		cached_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		source            VARCHAR PRIMARY KEY,
		last_filing_date  DATE,
		last_accession    VARCHAR,
		status            VARCHAR NOT NULL,
		error             VARCHAR,
		last_run_at       TIMESTAMP,
		last_run_id       VARCHAR,
		records_processed INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS backfill_progress (
		family      VARCHAR NOT NULL,
		quarter     VARCHAR NOT NULL,
		status      VARCHAR NOT NULL,
		rows_loaded BIGINT NOT NULL DEFAULT 0,
		error       VARCHAR,
		updated_at  TIMESTAMP NOT NULL,
		PRIMARY KEY (family, quarter)
	)`,
}

// EnsureSchema creates every table that does not exist yet. Only primary
// keys are declared: DuckDB refuses conflict updates on columns covered by
// secondary indexes.
func (g *Gateway) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := g.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	g.logger.Debug("schema ready", zap.Int("statements", len(schema)))
	return nil
}
