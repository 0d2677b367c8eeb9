// Package sec implements the SEC EDGAR client.
// EDGAR provides free access to filings, the "current filings" Atom feed,
// submissions JSON, and quarterly bulk data sets.
//
// No API key required. Must include a User-Agent header per SEC policy.
// Rate limit: 10 requests/second per user-agent.
package sec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/internal/infra"
	"github.com/seenimoa/filinglens/internal/metrics"
	"github.com/seenimoa/filinglens/internal/provider"
	"github.com/seenimoa/filinglens/pkg/utils"
)

const (
	providerName = "sec"

	DefaultBaseURL = "https://www.sec.gov"
	DefaultDataURL = "https://data.sec.gov"

	// pingCIK is a long-lived registrant used for connectivity checks.
	pingCIK = "320193"
)

// Options configures a Provider.
type Options struct {
	BaseURL   string // www.sec.gov root: archives, feeds, data sets
	DataURL   string // data.sec.gov root: submissions JSON
	UserAgent string
	RateLimit int // requests per second
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Provider implements provider.Provider for SEC EDGAR.
type Provider struct {
	provider.BaseProvider
	baseURL   string
	dataURL   string
	userAgent string
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New creates an EDGAR client.
func New(opts Options) *Provider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.DataURL == "" {
		opts.DataURL = DefaultDataURL
	}
	if opts.RateLimit <= 0 || opts.RateLimit > 10 {
		opts.RateLimit = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Provider{
		BaseProvider: provider.NewBaseProvider(provider.ProviderInfo{
			Name:        providerName,
			Description: "SEC EDGAR - ownership filings, current filings feed, and bulk data sets",
			Website:     "https://www.sec.gov/edgar",
		}, opts.RateLimit, time.Second),
		baseURL:   opts.BaseURL,
		dataURL:   opts.DataURL,
		userAgent: opts.UserAgent,
		metrics:   opts.Metrics,
		logger:    opts.Logger.Named("sec"),
	}
}

// Ping checks connectivity to SEC EDGAR.
func (p *Provider) Ping(ctx context.Context) error {
	body, err := p.open(ctx, p.submissionsURL(pingCIK))
	if err != nil {
		return fmt.Errorf("sec ping: %w", err)
	}
	body.Close()
	return nil
}

// --- Shared helpers ---

func (p *Provider) headers() map[string]string {
	return map[string]string{
		"User-Agent": p.userAgent,
	}
}

// open paces, performs a GET, and records the outcome. The caller closes
// the body.
func (p *Provider) open(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := p.RateLimit(ctx); err != nil {
		return nil, err
	}
	body, status, err := infra.DoGet(ctx, url, p.headers())
	p.metrics.RecordUpstream(providerName, status)
	if err != nil {
		p.logger.Debug("edgar request failed", zap.String("url", url), zap.Int("status", status), zap.Error(err))
		return nil, err
	}
	return body, nil
}

// fetchJSON performs a GET request and decodes JSON.
func (p *Provider) fetchJSON(ctx context.Context, url string, dest any) error {
	data, err := p.fetchRaw(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse SEC JSON: %w", err)
	}
	return nil
}

// fetchRaw performs a GET request and returns raw bytes.
func (p *Provider) fetchRaw(ctx context.Context, url string) ([]byte, error) {
	body, err := p.open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read SEC response: %w", err)
	}
	return data, nil
}

func (p *Provider) submissionsURL(cik string) string {
	return fmt.Sprintf("%s/submissions/CIK%s.json", p.dataURL, utils.PadCIK(cik))
}

func (p *Provider) filingDir(cik, accession string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s", p.baseURL, utils.TrimCIK(cik), utils.AccessionPath(accession))
}
