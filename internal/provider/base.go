package provider

import (
	"context"
	"time"

	"github.com/seenimoa/filinglens/internal/infra"
)

// BaseProvider provides common functionality for provider implementations.
// Embed this in concrete providers to get credential handling and request
// pacing.
type BaseProvider struct {
	info        ProviderInfo
	credentials map[string]string
	limiter     *infra.RateLimiter
}

// NewBaseProvider creates a base provider allowing rate requests per window.
// A rate of zero disables pacing.
func NewBaseProvider(info ProviderInfo, rate int, window time.Duration) BaseProvider {
	bp := BaseProvider{
		info:        info,
		credentials: make(map[string]string),
	}
	if rate > 0 {
		bp.limiter = infra.NewRateLimiter(rate, window)
	}
	return bp
}

func (bp *BaseProvider) Info() ProviderInfo { return bp.info }

func (bp *BaseProvider) Init(credentials map[string]string) error {
	for _, cred := range bp.info.Credentials {
		if cred.Required {
			val, ok := credentials[cred.Name]
			if !ok || val == "" {
				return &ErrInvalidCredentials{
					Provider: bp.info.Name,
					Detail:   "missing required credential: " + cred.Name,
				}
			}
		}
	}
	bp.credentials = make(map[string]string, len(credentials))
	for k, v := range credentials {
		bp.credentials[k] = v
	}
	return nil
}

// Ping is a no-op; concrete providers override it.
func (bp *BaseProvider) Ping(ctx context.Context) error {
	return nil
}

// Credential returns a stored credential value.
func (bp *BaseProvider) Credential(name string) string {
	return bp.credentials[name]
}

// RateLimit waits until a request slot is available.
func (bp *BaseProvider) RateLimit(ctx context.Context) error {
	if bp.limiter == nil {
		return ctx.Err()
	}
	return bp.limiter.Wait(ctx)
}
