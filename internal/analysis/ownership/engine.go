package ownership

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/internal/config"
	"github.com/seenimoa/filinglens/internal/infra"
	"github.com/seenimoa/filinglens/internal/store"
	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// Store is the slice of the analytical store the engine reads.
type Store interface {
	HolderPositions(ctx context.Context, cusip, quarter string) ([]models.HolderPosition, error)
	QuarterValues(ctx context.Context, from, to string) ([]models.QuarterValue, error)
	OptionValues(ctx context.Context, cusip, quarter string) (put, call int64, err error)
	LatestQuarter(ctx context.Context, cusip string) (string, error)
	MaxQuarter(ctx context.Context) (string, error)
}

// NameResolver supplies holder display names without blocking.
type NameResolver interface {
	LookupOrPlaceholder(ctx context.Context, cik string) string
}

// TickerResolver maps CUSIPs to tickers.
type TickerResolver interface {
	Resolve(ctx context.Context, cusips []string) (map[string]models.CusipMapping, error)
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Store   Store
	Names   NameResolver
	Tickers TickerResolver
	Cache   *infra.Cache[[]models.Alert] // nil uses an in-memory cache
	Config  config.AnalysisConfig
	Logger  *zap.Logger
}

// Engine answers ownership questions about a security.
type Engine struct {
	store    Store
	names    NameResolver
	tickers  TickerResolver
	alerts   *infra.Cache[[]models.Alert]
	defaults AlertParams
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	keys map[string]struct{}
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	d := AlertParams{
		LookbackMonths: cfg.LookbackMonths,
		MinChange:      cfg.MinChange,
		MinStartValue:  cfg.MinStartValue,
		Limit:          cfg.AlertLimit,
	}.WithDefaults(AlertParams{
		LookbackMonths: DefaultLookbackMonths,
		MinChange:      DefaultMinChange,
		MinStartValue:  DefaultMinStartValue,
		Limit:          DefaultAlertLimit,
	})

	cache := opts.Cache
	if cache == nil {
		ttl := DefaultAlertTTL
		if cfg.AlertCacheTTL > 0 {
			ttl = time.Duration(cfg.AlertCacheTTL) * time.Second
		}
		cache = infra.NewMemoryCache[[]models.Alert](ttl)
	}
	return &Engine{
		store:    opts.Store,
		names:    opts.Names,
		tickers:  opts.Tickers,
		alerts:   cache,
		defaults: d,
		logger:   logger.Named("ownership"),
		now:      time.Now,
		keys:     make(map[string]struct{}),
	}
}

// DefaultAlertParams returns the configured alert defaults.
func (e *Engine) DefaultAlertParams() AlertParams { return e.defaults }

// quarterFor validates cusip and resolves an empty quarter to the latest
// quarter with holdings. The quarter is empty when cusip has no holdings.
func (e *Engine) quarterFor(ctx context.Context, cusip, quarter string) (string, string, error) {
	c, err := utils.ValidateCUSIP(cusip)
	if err != nil {
		return "", "", err
	}
	if quarter == "" {
		q, err := e.store.LatestQuarter(ctx, c)
		if errors.Is(err, store.ErrNotFound) {
			return c, "", nil
		}
		return c, q, err
	}
	q, err := utils.ValidateQuarter(quarter)
	return c, q, err
}

func (e *Engine) displayName(ctx context.Context, cik, name string) string {
	if name != "" || e.names == nil {
		return name
	}
	return e.names.LookupOrPlaceholder(ctx, cik)
}

// positionPair loads holder positions for quarter and the one before it.
func (e *Engine) positionPair(ctx context.Context, cusip, quarter string) (prevQ string, prev, curr []models.HolderPosition, err error) {
	prevQ, err = utils.ShiftQuarter(quarter, -1)
	if err != nil {
		return "", nil, nil, err
	}
	if curr, err = e.store.HolderPositions(ctx, cusip, quarter); err != nil {
		return "", nil, nil, err
	}
	if prev, err = e.store.HolderPositions(ctx, cusip, prevQ); err != nil {
		return "", nil, nil, err
	}
	return prevQ, prev, curr, nil
}

// Changes compares every holder's position in quarter against the quarter
// before. An empty quarter means the latest one.
func (e *Engine) Changes(ctx context.Context, cusip, quarter string) ([]models.PositionChange, error) {
	c, q, err := e.quarterFor(ctx, cusip, quarter)
	if err != nil || q == "" {
		return nil, err
	}
	_, prev, curr, err := e.positionPair(ctx, c, q)
	if err != nil {
		return nil, fmt.Errorf("changes %s %s: %w", c, q, err)
	}
	changes := ComputeChanges(prev, curr)
	for i := range changes {
		changes[i].FilerName = e.displayName(ctx, changes[i].FilerCIK, changes[i].FilerName)
	}
	return changes, nil
}

// Sentiment scores institutional sentiment for the latest quarter.
func (e *Engine) Sentiment(ctx context.Context, cusip string) (models.SentimentScore, error) {
	c, q, err := e.quarterFor(ctx, cusip, "")
	if err != nil {
		return models.SentimentScore{}, err
	}
	if q == "" {
		score, signal, comps := ScoreSentiment(SentimentInputs{})
		return models.SentimentScore{CUSIP: c, Score: score, Signal: signal, Components: comps}, nil
	}
	prevQ, prev, curr, err := e.positionPair(ctx, c, q)
	if err != nil {
		return models.SentimentScore{}, fmt.Errorf("sentiment %s: %w", c, err)
	}
	counts := CountChanges(ComputeChanges(prev, curr))
	conc := ComputeConcentration(c, q, curr)
	in := SentimentInputs{
		PreviousValue:   sumValue(prev),
		CurrentValue:    conc.TotalValue,
		PreviousHolders: ComputeConcentration(c, prevQ, prev).HolderCount,
		CurrentHolders:  conc.HolderCount,
		HHI:             conc.HHI,
		NewHolders:      counts[models.ChangeNew],
		ClosedHolders:   counts[models.ChangeClosed],
	}
	score, signal, comps := ScoreSentiment(in)
	return models.SentimentScore{
		CUSIP:           c,
		Quarter:         q,
		PreviousQuarter: prevQ,
		Score:           score,
		Signal:          signal,
		Components:      comps,
		NewHolders:      in.NewHolders,
		ClosedHolders:   in.ClosedHolders,
		HolderCount:     in.CurrentHolders,
	}, nil
}

func sumValue(ps []models.HolderPosition) int64 {
	var total int64
	for _, p := range ps {
		if p.Value > 0 {
			total += p.Value
		}
	}
	return total
}

// Concentration measures ownership concentration in quarter, or the
// latest quarter when empty.
func (e *Engine) Concentration(ctx context.Context, cusip, quarter string) (models.ConcentrationMetrics, error) {
	c, q, err := e.quarterFor(ctx, cusip, quarter)
	if err != nil {
		return models.ConcentrationMetrics{}, err
	}
	if q == "" {
		return ComputeConcentration(c, "", nil), nil
	}
	ps, err := e.store.HolderPositions(ctx, c, q)
	if err != nil {
		return models.ConcentrationMetrics{}, err
	}
	m := ComputeConcentration(c, q, ps)
	if m.LargestHolderCIK != "" {
		m.LargestHolderName = e.displayName(ctx, m.LargestHolderCIK, m.LargestHolderName)
	}
	return m, nil
}

// PutCall computes the put/call ratio for the latest quarter.
func (e *Engine) PutCall(ctx context.Context, cusip string) (models.PutCallRatio, error) {
	c, q, err := e.quarterFor(ctx, cusip, "")
	if err != nil {
		return models.PutCallRatio{}, err
	}
	if q == "" {
		return ComputePutCall(c, "", 0, 0), nil
	}
	put, call, err := e.store.OptionValues(ctx, c, q)
	if err != nil {
		return models.PutCallRatio{}, fmt.Errorf("put/call %s: %w", c, err)
	}
	return ComputePutCall(c, q, put, call), nil
}

// ------------------------------------------------------------------
// Alerts
// ------------------------------------------------------------------

// Alerts returns accumulation alerts for params, serving a cached result
// for the same parameters until it expires.
func (e *Engine) Alerts(ctx context.Context, params AlertParams) ([]models.Alert, error) {
	p := params.WithDefaults(e.defaults)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	key := p.Key()

	e.mu.Lock()
	if cached, ok := e.alerts.Get(key); ok {
		out := slices.Clone(cached)
		e.mu.Unlock()
		return out, nil
	}
	e.mu.Unlock()

	alerts, err := e.computeAlerts(ctx, p)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts.Set(key, alerts)
	e.keys[key] = struct{}{}
	return slices.Clone(alerts), nil
}

func (e *Engine) computeAlerts(ctx context.Context, p AlertParams) ([]models.Alert, error) {
	end, err := e.store.MaxQuarter(ctx)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Debug("no 13F filings loaded")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	start, err := utils.ShiftQuarter(end, -p.Quarters())
	if err != nil {
		return nil, err
	}
	values, err := e.store.QuarterValues(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("alerts %s..%s: %w", start, end, err)
	}
	candidates := DetectAlerts(values, start, end, p, e.now().UTC())

	// Without the ticker restriction only the returned alerts need tickers.
	lookup := candidates
	if !p.TickersOnly && len(lookup) > p.Limit {
		lookup = lookup[:p.Limit]
	}
	tickers, err := e.resolveTickers(ctx, lookup)
	if err != nil {
		if p.TickersOnly {
			return nil, fmt.Errorf("alerts: resolve tickers: %w", err)
		}
		e.logger.Warn("ticker resolution failed", zap.Error(err))
	}

	out := make([]models.Alert, 0, min(len(candidates), p.Limit))
	for _, a := range candidates {
		if len(out) == p.Limit {
			break
		}
		m, ok := tickers[a.CUSIP]
		if ok && m.Mapped() {
			a.Ticker = m.Ticker
		}
		if p.TickersOnly && !utils.IsSimpleTicker(a.Ticker) {
			continue
		}
		out = append(out, a)
	}

	for i := range out {
		ps, err := e.store.HolderPositions(ctx, out[i].CUSIP, end)
		if err != nil {
			e.logger.Debug("largest holder lookup failed", zap.String("cusip", out[i].CUSIP), zap.Error(err))
			continue
		}
		if len(ps) > 0 {
			out[i].LargestHolder = e.displayName(ctx, ps[0].FilerCIK, ps[0].FilerName)
		}
	}
	e.logger.Info("alerts computed",
		zap.String("start", start),
		zap.String("end", end),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(out)))
	return out, nil
}

func (e *Engine) resolveTickers(ctx context.Context, alerts []models.Alert) (map[string]models.CusipMapping, error) {
	if e.tickers == nil || len(alerts) == 0 {
		return nil, nil
	}
	cusips := make([]string, 0, len(alerts))
	for _, a := range alerts {
		if !utils.IsCUSIP(a.CUSIP) {
			e.logger.Debug("skipping ticker lookup for invalid cusip", zap.String("cusip", a.CUSIP))
			continue
		}
		cusips = append(cusips, a.CUSIP)
	}
	if len(cusips) == 0 {
		return nil, nil
	}
	return e.tickers.Resolve(ctx, cusips)
}

// Acknowledge marks every cached alert for cusip as acknowledged. The flag
// lives only on cached results and is lost when they expire. It reports
// whether any cached alert matched.
func (e *Engine) Acknowledge(cusip string) bool {
	c := utils.NormalizeCUSIP(cusip)
	e.mu.Lock()
	defer e.mu.Unlock()
	found := false
	for key := range e.keys {
		cached, ok := e.alerts.Get(key)
		if !ok {
			delete(e.keys, key)
			continue
		}
		for i := range cached {
			if cached[i].CUSIP == c {
				cached[i].Acknowledged = true
				found = true
			}
		}
	}
	return found
}

// InvalidateAlerts drops every cached alert result.
func (e *Engine) InvalidateAlerts() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.keys {
		e.alerts.Invalidate(key)
	}
	clear(e.keys)
}
