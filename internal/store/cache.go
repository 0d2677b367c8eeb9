package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

var cusipCols = []string{
	"cusip", "ticker", "figi", "name", "exchange_code", "security_type", "market_sector", "error", "cached_at",
}

// CusipMappings returns the durable mappings for cusips, keyed by CUSIP.
// Missing CUSIPs are absent from the map. Every CUSIP is validated first.
func (g *Gateway) CusipMappings(ctx context.Context, cusips []string) (map[string]models.CusipMapping, error) {
	out := make(map[string]models.CusipMapping, len(cusips))
	if len(cusips) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(cusips))
	for _, c := range cusips {
		v, err := utils.ValidateCUSIP(c)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	for start := 0; start < len(args); start += maxParams {
		chunk := args[start:min(start+maxParams, len(args))]
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		ms, err := queryAll(ctx, g, scanCusip,
			`SELECT `+strings.Join(cusipCols, ", ")+` FROM cusip_mappings WHERE cusip IN (`+placeholders+`)`, chunk...)
		if err != nil {
			return nil, fmt.Errorf("cusip mappings: %w", err)
		}
		for _, m := range ms {
			out[m.CUSIP] = m
		}
	}
	return out, nil
}

func scanCusip(rows *sql.Rows) (models.CusipMapping, error) {
	var (
		m                        models.CusipMapping
		ticker, figi, name, exch sql.NullString
		stype, sector, errReason sql.NullString
	)
	err := rows.Scan(&m.CUSIP, &ticker, &figi, &name, &exch, &stype, &sector, &errReason, &m.CachedAt)
	m.Ticker, m.FIGI, m.Name, m.ExchangeCode = ticker.String, figi.String, name.String, exch.String
	m.SecurityType, m.MarketSector, m.Error = stype.String, sector.String, errReason.String
	m.CachedAt = m.CachedAt.UTC()
	return m, err
}

// SaveCusipMappings upserts resolved and failed mappings alike.
func (g *Gateway) SaveCusipMappings(ctx context.Context, ms []models.CusipMapping) error {
	rows := make([][]any, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, []any{
			m.CUSIP, m.Ticker, m.FIGI, m.Name, m.ExchangeCode, m.SecurityType, m.MarketSector, m.Error, m.CachedAt,
		})
	}
	_, err := g.Upsert(ctx, TableCusipMappings, cusipCols, rows, "cusip")
	return err
}

// FilerName returns the durable name for a CIK.
func (g *Gateway) FilerName(ctx context.Context, cik string) (models.FilerName, error) {
	c, err := utils.ValidateCIK(cik)
	if err != nil {
		return models.FilerName{}, err
	}
	n := models.FilerName{CIK: c}
	if err := g.QueryRow(ctx, `SELECT name, cached_at FROM filer_names WHERE cik = ?`, []any{c}, &n.Name, &n.CachedAt); err != nil {
		return n, err
	}
	n.CachedAt = n.CachedAt.UTC()
	return n, nil
}

// FilerNames returns every cached filer name.
func (g *Gateway) FilerNames(ctx context.Context) ([]models.FilerName, error) {
	return queryAll(ctx, g, func(rows *sql.Rows) (models.FilerName, error) {
		var n models.FilerName
		err := rows.Scan(&n.CIK, &n.Name, &n.CachedAt)
		n.CachedAt = n.CachedAt.UTC()
		return n, err
	}, `SELECT cik, name, cached_at FROM filer_names ORDER BY cik`)
}

// SaveFilerNames upserts names keyed by CIK.
func (g *Gateway) SaveFilerNames(ctx context.Context, names []models.FilerName) error {
	rows := make([][]any, 0, len(names))
	for _, n := range names {
		rows = append(rows, []any{n.CIK, n.Name, n.CachedAt})
	}
	_, err := g.Upsert(ctx, TableFilerNames, []string{"cik", "name", "cached_at"}, rows, "cik")
	return err
}
