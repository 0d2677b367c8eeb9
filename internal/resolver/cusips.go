package resolver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/internal/infra"
	"github.com/seenimoa/filinglens/internal/metrics"
	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// Mapper maps CUSIPs to instruments. Every input appears in the result,
// failed ones with Error set.
type Mapper interface {
	Map(ctx context.Context, cusips []string) (map[string]models.CusipMapping, error)
}

// CusipStore is the durable tier of the mapping cache.
type CusipStore interface {
	CusipMappings(ctx context.Context, cusips []string) (map[string]models.CusipMapping, error)
	SaveCusipMappings(ctx context.Context, ms []models.CusipMapping) error
}

// CusipsOptions configures Cusips.
type CusipsOptions struct {
	Mapper  Mapper
	Store   CusipStore
	Cache   *infra.Cache[models.CusipMapping]
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	CacheTTL time.Duration
	// FailureTTL is how long a failed mapping is trusted before the
	// mapping service is asked again. Zero keeps failures forever.
	FailureTTL time.Duration
}

// Cusips resolves CUSIPs to tickers.
type Cusips struct {
	mapper     Mapper
	store      CusipStore
	cache      *infra.Cache[models.CusipMapping]
	failureTTL time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewCusips creates a CUSIP resolver.
func NewCusips(opts CusipsOptions) *Cusips {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.Cache == nil {
		opts.Cache = infra.NewCache[models.CusipMapping](infra.NewLRUStore[models.CusipMapping](10000, opts.CacheTTL), opts.CacheTTL)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cusips{
		mapper:     opts.Mapper,
		store:      opts.Store,
		cache:      opts.Cache,
		failureTTL: opts.FailureTTL,
		metrics:    opts.Metrics,
		logger:     opts.Logger.Named("cusips"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns a mapping for every valid input CUSIP. Invalid CUSIPs
// are rejected before any lookup. Mappings that could not be resolved are
// returned and cached with Error set, unless the failure is transient.
func (c *Cusips) Resolve(ctx context.Context, cusips []string) (map[string]models.CusipMapping, error) {
	out := make(map[string]models.CusipMapping, len(cusips))
	var pending []string
	for _, raw := range cusips {
		cusip, err := utils.ValidateCUSIP(raw)
		if err != nil {
			return nil, err
		}
		if _, done := out[cusip]; done {
			continue
		}
		if m, ok := c.cache.Get(cusip); ok {
			c.metrics.RecordLookup("cusip", tierMemory)
			out[cusip] = m
			continue
		}
		pending = append(pending, cusip)
		out[cusip] = models.CusipMapping{}
	}
	if len(pending) == 0 {
		return out, nil
	}

	if c.store != nil {
		durable, err := c.store.CusipMappings(ctx, pending)
		if err != nil {
			c.logger.Warn("durable mapping lookup failed", zap.Int("cusips", len(pending)), zap.Error(err))
		}
		remaining := pending[:0]
		for _, cusip := range pending {
			m, ok := durable[cusip]
			if ok && !c.expired(m) {
				c.metrics.RecordLookup("cusip", tierDurable)
				c.cache.Set(cusip, m)
				out[cusip] = m
				continue
			}
			remaining = append(remaining, cusip)
		}
		pending = remaining
	}
	if len(pending) == 0 {
		return out, nil
	}

	fetched, err := c.fetch(ctx, pending)
	if err != nil {
		return nil, err
	}
	for _, cusip := range pending {
		m := fetched[cusip]
		if !m.Transient {
			c.cache.Set(cusip, m)
		}
		out[cusip] = m
	}
	return out, nil
}

// Ticker returns the ticker of one CUSIP, or "" when it has none.
func (c *Cusips) Ticker(ctx context.Context, cusip string) (string, error) {
	ms, err := c.Resolve(ctx, []string{cusip})
	if err != nil {
		return "", err
	}
	for _, m := range ms {
		return m.Ticker, nil
	}
	return "", nil
}

// expired reports whether a cached failure is due for a retry.
func (c *Cusips) expired(m models.CusipMapping) bool {
	return m.Error != "" && c.failureTTL > 0 && c.now().Sub(m.CachedAt) > c.failureTTL
}

func (c *Cusips) fetch(ctx context.Context, cusips []string) (map[string]models.CusipMapping, error) {
	out := make(map[string]models.CusipMapping, len(cusips))
	if c.mapper == nil {
		for _, cusip := range cusips {
			out[cusip] = models.CusipMapping{CUSIP: cusip, Error: "no mapping service", CachedAt: c.now()}
		}
		return out, nil
	}
	mapped, err := c.mapper.Map(ctx, cusips)
	if err != nil {
		return nil, fmt.Errorf("map %d cusips: %w", len(cusips), err)
	}
	save := make([]models.CusipMapping, 0, len(cusips))
	for _, cusip := range cusips {
		m, ok := mapped[cusip]
		if !ok {
			m = models.CusipMapping{CUSIP: cusip, Error: "missing from response", CachedAt: c.now()}
		}
		if m.Mapped() {
			c.metrics.RecordLookup("cusip", tierRemote)
		} else {
			c.metrics.RecordLookup("cusip", tierMiss)
		}
		out[cusip] = m
		if m.Transient {
			c.logger.Debug("transient mapping failure", zap.String("cusip", cusip), zap.String("reason", m.Error))
			continue
		}
		save = append(save, m)
	}
	if c.store != nil {
		if err := c.store.SaveCusipMappings(ctx, save); err != nil {
			c.logger.Warn("saving cusip mappings failed", zap.Int("cusips", len(save)), zap.Error(err))
		}
	}
	return out, nil
}
