package sec

import (
	"context"
	"fmt"
	"strings"
)

type submissionsResponse struct {
	CIK         string       `json:"cik"`
	Name        string       `json:"name"`
	Tickers     []string     `json:"tickers"`
	FormerNames []formerName `json:"formerNames"`
}

type formerName struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Entity is the registrant identity from the submissions endpoint.
type Entity struct {
	CIK     string
	Name    string
	Tickers []string
}

// Entity returns the current registered name (and tickers) of cik.
func (p *Provider) Entity(ctx context.Context, cik string) (*Entity, error) {
	var resp submissionsResponse
	if err := p.fetchJSON(ctx, p.submissionsURL(cik), &resp); err != nil {
		return nil, fmt.Errorf("sec submissions %s: %w", cik, err)
	}
	name := strings.TrimSpace(resp.Name)
	if name == "" && len(resp.FormerNames) > 0 {
		name = strings.TrimSpace(resp.FormerNames[0].Name)
	}
	if name == "" {
		return nil, fmt.Errorf("sec submissions %s: no registrant name", cik)
	}
	return &Entity{CIK: resp.CIK, Name: name, Tickers: resp.Tickers}, nil
}

// CompanyName returns the registered name of cik.
func (p *Provider) CompanyName(ctx context.Context, cik string) (string, error) {
	e, err := p.Entity(ctx, cik)
	if err != nil {
		return "", err
	}
	return e.Name, nil
}
