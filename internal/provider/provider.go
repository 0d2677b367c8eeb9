// Package provider defines the shared shape of the external data services
// filinglens talks to (EDGAR, OpenFIGI): metadata, credential validation,
// rate limiting, and a registry used for health checks.
package provider

import (
	"context"
	"fmt"
)

// ProviderCredential describes a credential a provider accepts.
type ProviderCredential struct {
	Name        string `json:"name"`        // e.g., "api_key"
	Description string `json:"description"` // e.g., "OpenFIGI API key, raises rate limits"
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"` // e.g., "FILINGLENS_OPENFIGI_API_KEY"
}

// ProviderInfo holds metadata about a registered provider.
type ProviderInfo struct {
	Name        string               `json:"name"` // e.g., "sec", "openfigi"
	Description string               `json:"description"`
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
}

// Provider is the interface every external service client implements.
type Provider interface {
	// Info returns metadata about this provider.
	Info() ProviderInfo

	// Init validates and stores credentials. Returns ErrInvalidCredentials
	// when a required credential is missing.
	Init(credentials map[string]string) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}

// ErrProviderNotFound is returned when a requested provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// ErrInvalidCredentials is returned when provider credentials are invalid.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}
