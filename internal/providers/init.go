// Package providers builds the external service clients from configuration
// and registers them with a provider registry for health checks.
package providers

import (
	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/internal/config"
	"github.com/seenimoa/filinglens/internal/infra"
	"github.com/seenimoa/filinglens/internal/metrics"
	"github.com/seenimoa/filinglens/internal/provider"
	"github.com/seenimoa/filinglens/internal/providers/openfigi"
	"github.com/seenimoa/filinglens/internal/providers/sec"
)

// Set holds the configured clients.
type Set struct {
	SEC      *sec.Provider
	OpenFIGI *openfigi.Client
	Registry *provider.Registry
}

// New creates the EDGAR and OpenFIGI clients and registers both.
func New(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*Set, error) {
	backoff := infra.DefaultBackoff
	if cfg.OpenFIGI.MaxRetries > 0 {
		backoff.MaxAttempts = cfg.OpenFIGI.MaxRetries
	}
	s := &Set{
		SEC: sec.New(sec.Options{
			BaseURL:   cfg.SEC.BaseURL,
			DataURL:   cfg.SEC.DataURL,
			UserAgent: cfg.SEC.UserAgent,
			RateLimit: cfg.SEC.RateLimit,
			Metrics:   m,
			Logger:    logger,
		}),
		OpenFIGI: openfigi.New(openfigi.Options{
			BaseURL:     cfg.OpenFIGI.BaseURL,
			APIKey:      cfg.OpenFIGI.APIKey,
			BatchSize:   cfg.OpenFIGI.BatchSize,
			Concurrency: cfg.OpenFIGI.Concurrency,
			Backoff:     backoff,
			Metrics:     m,
			Logger:      logger,
		}),
		Registry: provider.NewRegistry(),
	}
	if err := RegisterAllTo(s.Registry, s.SEC, s.OpenFIGI); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterAllTo registers providers with reg.
func RegisterAllTo(reg *provider.Registry, ps ...provider.Provider) error {
	for _, p := range ps {
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}
