// Package providers assembles the concrete provider plugins into a
// registry. Clients are constructed once here, at registration time; an
// unconfigured provider is still registered and simply never shows up as
// enabled.
package providers

import (
	"net/http"
	"time"

	"mediagen/internal/infra"
	"mediagen/internal/provider"
	"mediagen/internal/providers/fal"
	"mediagen/internal/providers/sogni"
)

// BuildRegistry wires every known backend against its configuration.
func BuildRegistry(cfg *infra.Config, logger infra.Logger) *provider.Registry {
	httpClient := &http.Client{Timeout: 60 * time.Second}

	registry := provider.NewRegistry()
	registry.Register(fal.New(cfg.Fal, fal.NewClient(fal.Options{
		APIKey:     cfg.Fal.APIKey,
		BaseURL:    cfg.Fal.BaseURL,
		HTTPClient: httpClient,
		Logger:     &logger,
	})))
	registry.Register(sogni.New(cfg.Sogni, sogni.NewClient(sogni.Options{
		APIKey:     cfg.Sogni.APIKey,
		BaseURL:    cfg.Sogni.BaseURL,
		HTTPClient: httpClient,
		Logger:     &logger,
	})))
	return registry
}
