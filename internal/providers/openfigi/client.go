// Package openfigi maps CUSIPs to tickers through the OpenFIGI mapping API.
//
// Docs: https://www.openfigi.com/api
// Limits: 25 requests/minute and 10 jobs/request without a key; 25
// requests per 6 seconds and 100 jobs/request with one.
package openfigi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/filinglens/internal/infra"
	"github.com/seenimoa/filinglens/internal/metrics"
	"github.com/seenimoa/filinglens/internal/provider"
	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

const (
	providerName   = "openfigi"
	DefaultBaseURL = "https://api.openfigi.com/v3/mapping"

	// ReasonNoMatch is stored when the service knows no instrument for a CUSIP.
	ReasonNoMatch = "no identifier found"
	// ReasonInvalid is stored for CUSIPs that fail validation locally.
	ReasonInvalid = "invalid cusip"
)

var (
	sharedOnce sync.Once
	shared     *infra.WindowLimiter
)

// SharedLimiter returns the process-wide limiter for the mapping API. Every
// Client in the process must use it; the first caller's settings win.
func SharedLimiter(withKey bool, concurrency int) *infra.WindowLimiter {
	sharedOnce.Do(func() {
		window := time.Minute
		if withKey {
			window = 6 * time.Second
		}
		shared = infra.NewWindowLimiter(25, window, concurrency)
	})
	return shared
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	APIKey      string
	BatchSize   int
	Concurrency int
	Backoff     infra.Backoff
	Limiter     *infra.WindowLimiter // nil selects SharedLimiter
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Client implements provider.Provider for OpenFIGI.
type Client struct {
	provider.BaseProvider
	baseURL     string
	batchSize   int
	concurrency int
	backoff     infra.Backoff
	limiter     *infra.WindowLimiter
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// New creates a mapping client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	maxBatch := 10
	if opts.APIKey != "" {
		maxBatch = 100
	}
	if opts.BatchSize <= 0 || opts.BatchSize > maxBatch {
		opts.BatchSize = maxBatch
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.Backoff.MaxAttempts == 0 {
		opts.Backoff = infra.DefaultBackoff
	}
	if opts.Limiter == nil {
		opts.Limiter = SharedLimiter(opts.APIKey != "", opts.Concurrency)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Client{
		BaseProvider: provider.NewBaseProvider(provider.ProviderInfo{
			Name:        providerName,
			Description: "OpenFIGI - CUSIP to FIGI and ticker mapping",
			Website:     "https://www.openfigi.com",
			Credentials: []provider.ProviderCredential{{
				Name:        "api_key",
				Description: "OpenFIGI API key, raises rate and batch limits",
				EnvVar:      "FILINGLENS_OPENFIGI_API_KEY",
			}},
		}, 0, 0),
		baseURL:     opts.BaseURL,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		backoff:     opts.Backoff,
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
		logger:      opts.Logger.Named("openfigi"),
	}
	_ = c.Init(map[string]string{"api_key": opts.APIKey})
	return c
}

// Ping maps a single well-known CUSIP.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.mapBatch(ctx, []string{"037833100"})
	if err != nil {
		return fmt.Errorf("openfigi ping: %w", err)
	}
	return nil
}

// --- Wire types ---

type mappingJob struct {
	IDType  string `json:"idType"`
	IDValue string `json:"idValue"`
}

type mappingResult struct {
	Data    []Instrument `json:"data"`
	Warning string       `json:"warning"`
	Error   string       `json:"error"`
}

// Instrument is one candidate listing returned for a mapping job.
type Instrument struct {
	FIGI         string `json:"figi"`
	Name         string `json:"name"`
	Ticker       string `json:"ticker"`
	ExchCode     string `json:"exchCode"`
	SecurityType string `json:"securityType"`
	MarketSector string `json:"marketSector"`
}

// Map resolves cusips. Every input appears in the result: mapped, or with
// Error set to the failure reason. Only context cancellation is returned as
// an error; other failures become per-CUSIP reasons.
func (c *Client) Map(ctx context.Context, cusips []string) (map[string]models.CusipMapping, error) {
	now := time.Now().UTC()
	out := make(map[string]models.CusipMapping, len(cusips))
	var valid []string
	seen := make(map[string]bool, len(cusips))
	for _, raw := range cusips {
		cusip, err := utils.ValidateCUSIP(raw)
		if err != nil {
			key := utils.NormalizeCUSIP(raw)
			out[key] = models.CusipMapping{CUSIP: key, Error: ReasonInvalid, CachedAt: now}
			continue
		}
		if !seen[cusip] {
			seen[cusip] = true
			valid = append(valid, cusip)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(valid); start += c.batchSize {
		batch := valid[start:min(start+c.batchSize, len(valid))]
		g.Go(func() error {
			results, err := c.mapBatch(gctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("mapping batch failed", zap.Int("size", len(batch)), zap.Error(err))
				for _, cusip := range batch {
					out[cusip] = models.CusipMapping{CUSIP: cusip, Error: failureReason(err), CachedAt: now, Transient: true}
				}
				return nil
			}
			for i, cusip := range batch {
				m := toMapping(cusip, results[i])
				m.CachedAt = now
				out[cusip] = m
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// mapBatch posts one batch with limiter and backoff; the result slice is
// aligned with cusips.
func (c *Client) mapBatch(ctx context.Context, cusips []string) ([]mappingResult, error) {
	jobs := make([]mappingJob, len(cusips))
	for i, cusip := range cusips {
		jobs[i] = mappingJob{IDType: "ID_CUSIP", IDValue: cusip}
	}
	body, err := json.Marshal(jobs)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if key := c.Credential("api_key"); key != "" {
		headers["X-OPENFIGI-APIKEY"] = key
	}

	var results []mappingResult
	err = c.backoff.Retry(ctx, infra.IsRetryable, func(ctx context.Context) error {
		release, err := c.limiter.Acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		rc, status, err := infra.DoPost(ctx, c.baseURL, body, headers)
		c.metrics.RecordUpstream(providerName, status)
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read mapping response: %w", err)
		}
		results = nil
		if err := json.Unmarshal(data, &results); err != nil {
			return fmt.Errorf("parse mapping response: %w", err)
		}
		if len(results) != len(cusips) {
			return fmt.Errorf("mapping response has %d results for %d jobs", len(results), len(cusips))
		}
		return nil
	})
	if err != nil {
		var he *infra.ErrHTTP
		if errors.As(err, &he) && he.StatusCode == 429 {
			return nil, fmt.Errorf("%w: %v", infra.ErrRateLimited, err)
		}
		return nil, err
	}
	return results, nil
}

func toMapping(cusip string, r mappingResult) models.CusipMapping {
	m := models.CusipMapping{CUSIP: cusip}
	switch {
	case r.Error != "":
		m.Error = r.Error
		return m
	case len(r.Data) == 0:
		m.Error = ReasonNoMatch
		return m
	}
	best := BestMatch(r.Data)
	m.Ticker = best.Ticker
	m.FIGI = best.FIGI
	m.Name = best.Name
	m.ExchangeCode = best.ExchCode
	m.SecurityType = best.SecurityType
	m.MarketSector = best.MarketSector
	return m
}

// BestMatch picks the instrument to report for a CUSIP: a primary (US
// composite) listing first, then equity sector, then common stock, then
// the first result.
func BestMatch(candidates []Instrument) Instrument {
	best, bestScore := 0, -1
	for i, in := range candidates {
		score := 0
		if in.ExchCode == "US" {
			score += 4
		}
		if in.MarketSector == "Equity" {
			score += 2
		}
		if in.SecurityType == "Common Stock" {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return candidates[best]
}

func failureReason(err error) string {
	if errors.Is(err, infra.ErrRateLimited) {
		return "rate limited"
	}
	var he *infra.ErrHTTP
	if errors.As(err, &he) {
		return fmt.Sprintf("http %d", he.StatusCode)
	}
	return err.Error()
}
