// Package orchestrator is the boundary surface callers use: model
// discovery, task submission, and resuming a submitted task through the
// tracking mode its provider supports.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/provider"
	"mediagen/internal/status"
	"mediagen/internal/track"
)

// Mode names the tracking transport a provider uses.
type Mode string

const (
	ModePush Mode = "push"
	ModePull Mode = "pull"
)

// Service resolves providers through the registry and enforces the
// submission preconditions.
type Service struct {
	registry     *provider.Registry
	dial         track.Dialer
	pollInterval time.Duration
	logger       zerolog.Logger
}

// New constructs the orchestrator service. A nil dialer uses the websocket
// client for push tracking.
func New(registry *provider.Registry, dial track.Dialer, pollInterval time.Duration, logger zerolog.Logger) *Service {
	return &Service{registry: registry, dial: dial, pollInterval: pollInterval, logger: logger}
}

// ListModels aggregates the catalogs of all enabled providers, optionally
// filtered by media type.
func (s *Service) ListModels(media provider.MediaType) []provider.CatalogEntry {
	return s.registry.AvailableModels(media)
}

// TrackingMode reports how tasks submitted to the given provider are
// tracked. The mode is a static property of the plugin.
func (s *Service) TrackingMode(providerID string) (Mode, error) {
	p, ok := s.registry.Get(providerID)
	if !ok {
		return "", &provider.ConfigError{Provider: providerID, Reason: "unknown provider"}
	}
	if p.TransportURL() != "" {
		return ModePush, nil
	}
	return ModePull, nil
}

// StartGeneration validates the request against the chosen provider's
// configuration and catalog, then performs the provider's single submission.
// Both precondition failures return a ConfigError before any network call is
// made, with no partial side effects.
func (s *Service) StartGeneration(ctx context.Context, providerID string, req provider.Request) (provider.Task, error) {
	p, ok := s.registry.Get(providerID)
	if !ok {
		return provider.Task{}, &provider.ConfigError{Provider: providerID, Reason: "unknown provider"}
	}
	if !p.Configured() {
		return provider.Task{}, &provider.ConfigError{Provider: providerID, Reason: "provider not configured"}
	}
	if !offersModel(p, req.ModelID, req.Media) {
		return provider.Task{}, &provider.ConfigError{
			Provider: providerID,
			Reason:   fmt.Sprintf("model %q not offered for media type %q", req.ModelID, req.Media),
		}
	}
	task, err := p.Start(ctx, req)
	if err != nil {
		return provider.Task{}, err
	}
	s.logger.Info().
		Str("provider", providerID).
		Str("task_id", task.ID).
		Str("media_type", string(req.Media)).
		Msg("generation submitted")
	return task, nil
}

// CheckStatus performs one pull-mode status check. It is intended to be
// called on a timer by the caller; each call is stateless and safe to retry.
func (s *Service) CheckStatus(ctx context.Context, providerID, handle string) (status.Update, error) {
	p, ok := s.registry.Get(providerID)
	if !ok {
		return status.Update{}, &provider.ConfigError{Provider: providerID, Reason: "unknown provider"}
	}
	pull, ok := p.(provider.PullPlugin)
	if !ok {
		return status.Update{}, &provider.ConfigError{Provider: providerID, Reason: "provider is push-tracked, not pollable"}
	}
	return pull.CheckStatus(ctx, handle)
}

// Track resumes the given task through whichever tracking mode its provider
// supports and returns the canonical update stream. Exactly one tracker may
// own a task's handle at a time; that exclusivity is the caller's to uphold.
func (s *Service) Track(ctx context.Context, providerID string, task provider.Task) (<-chan status.Update, error) {
	p, ok := s.registry.Get(providerID)
	if !ok {
		return nil, &provider.ConfigError{Provider: providerID, Reason: "unknown provider"}
	}
	if push, ok := p.(provider.PushPlugin); ok && p.TransportURL() != "" {
		return track.NewPush(push, s.dial, s.logger).Track(ctx, task), nil
	}
	if pull, ok := p.(provider.PullPlugin); ok {
		return track.NewPoller(pull, s.pollInterval, s.logger).Run(ctx, task), nil
	}
	return nil, &provider.ConfigError{Provider: providerID, Reason: "provider supports no tracking mode"}
}

func offersModel(p provider.Plugin, modelID string, media provider.MediaType) bool {
	for _, m := range p.Models() {
		if m.ID == modelID && m.Media == media {
			return true
		}
	}
	return false
}
