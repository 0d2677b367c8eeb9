// Package resolver turns filer CIKs into display names and CUSIPs into
// tickers, caching both in process and in the analytical store.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/internal/infra"
	"github.com/seenimoa/filinglens/internal/metrics"
	"github.com/seenimoa/filinglens/internal/store"
	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// Lookup results recorded in metrics.
const (
	tierMemory  = "memory"
	tierDurable = "durable"
	tierRemote  = "remote"
	tierMiss    = "miss"
)

// NameSource fetches the registered name of a CIK from the authority.
type NameSource interface {
	CompanyName(ctx context.Context, cik string) (string, error)
}

// NameStore is the durable tier of the name cache.
type NameStore interface {
	FilerName(ctx context.Context, cik string) (models.FilerName, error)
	FilerNames(ctx context.Context) ([]models.FilerName, error)
	SaveFilerNames(ctx context.Context, names []models.FilerName) error
}

// NamesOptions configures Names.
type NamesOptions struct {
	Source  NameSource
	Store   NameStore
	Cache   *infra.Cache[string] // nil selects an in-memory cache with CacheTTL
	Queue   *infra.TaskQueue     // nil disables background refresh
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	CacheTTL time.Duration
}

// Names resolves CIKs to registrant names.
type Names struct {
	source  NameSource
	store   NameStore
	cache   *infra.Cache[string]
	index   *NameIndex
	queue   *infra.TaskQueue
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewNames creates a name resolver.
func NewNames(opts NamesOptions) *Names {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.Cache == nil {
		opts.Cache = infra.NewMemoryCache[string](opts.CacheTTL)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Names{
		source:  opts.Source,
		store:   opts.Store,
		cache:   opts.Cache,
		index:   NewNameIndex(),
		queue:   opts.Queue,
		metrics: opts.Metrics,
		logger:  opts.Logger.Named("names"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Lookup returns the registered name of cik, fetching it from the source
// when neither cache tier has it.
func (n *Names) Lookup(ctx context.Context, cik string) (string, error) {
	c, err := utils.ValidateCIK(cik)
	if err != nil {
		return "", err
	}
	if name, ok := n.cached(ctx, c); ok {
		return name, nil
	}
	name, err := n.fetch(ctx, c)
	if err != nil {
		n.metrics.RecordLookup("cik", tierMiss)
		return "", err
	}
	return name, nil
}

// LookupOrPlaceholder returns the cached name of cik, or the zero-padded
// CIK while a background refresh fetches the real name. It never blocks on
// the network.
func (n *Names) LookupOrPlaceholder(ctx context.Context, cik string) string {
	c, err := utils.ValidateCIK(cik)
	if err != nil {
		return cik
	}
	if name, ok := n.cached(ctx, c); ok {
		return name
	}
	n.metrics.RecordLookup("cik", tierMiss)
	n.Refresh(c)
	return utils.PadCIK(c)
}

// Refresh schedules a background fetch of cik. Duplicate requests for a
// CIK already queued are dropped.
func (n *Names) Refresh(cik string) {
	if n.queue == nil || n.source == nil {
		return
	}
	n.queue.Submit("cik:"+cik, func(ctx context.Context) error {
		_, err := n.fetch(ctx, cik)
		return err
	})
}

// Warm loads every durable name into the memory tier and the search
// index. It returns the number of names loaded.
func (n *Names) Warm(ctx context.Context) (int, error) {
	if n.store == nil {
		return 0, nil
	}
	names, err := n.store.FilerNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("warm names: %w", err)
	}
	for _, fn := range names {
		n.remember(fn.CIK, fn.Name)
	}
	n.logger.Info("name index warmed", zap.Int("names", len(names)))
	return len(names), nil
}

// Search finds CIKs whose names match query.
func (n *Names) Search(query string, limit int) ([]models.NameMatch, error) {
	if err := utils.ValidateLimit(limit, 100); err != nil {
		return nil, err
	}
	return n.index.Search(query, limit), nil
}

// Index exposes the reverse name index.
func (n *Names) Index() *NameIndex { return n.index }

func (n *Names) cached(ctx context.Context, cik string) (string, bool) {
	if name, ok := n.cache.Get(cik); ok {
		n.metrics.RecordLookup("cik", tierMemory)
		return name, true
	}
	if n.store == nil {
		return "", false
	}
	fn, err := n.store.FilerName(ctx, cik)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			n.logger.Warn("durable name lookup failed", zap.String("cik", cik), zap.Error(err))
		}
		return "", false
	}
	n.metrics.RecordLookup("cik", tierDurable)
	n.remember(cik, fn.Name)
	return fn.Name, true
}

func (n *Names) fetch(ctx context.Context, cik string) (string, error) {
	if n.source == nil {
		return "", fmt.Errorf("name of cik %s: %w", cik, store.ErrNotFound)
	}
	name, err := n.source.CompanyName(ctx, cik)
	if err != nil {
		return "", fmt.Errorf("name of cik %s: %w", cik, err)
	}
	n.metrics.RecordLookup("cik", tierRemote)
	n.remember(cik, name)
	if n.store != nil {
		if err := n.store.SaveFilerNames(ctx, []models.FilerName{{CIK: cik, Name: name, CachedAt: n.now()}}); err != nil {
			n.logger.Warn("saving filer name failed", zap.String("cik", cik), zap.Error(err))
		}
	}
	return name, nil
}

func (n *Names) remember(cik, name string) {
	n.cache.Set(cik, name)
	n.index.Add(cik, name)
}
