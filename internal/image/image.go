// Package image generates images through an ordered provider chain.
//
// The primary provider comes from configuration. Only the pollinations
// provider has a fallback: a deterministic random-image URL keyed by the
// requested dimensions, which cannot fail because it is never validated.
// The OpenAI-style provider surfaces its errors directly.
package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/youruser/quill/internal/config"
	"github.com/youruser/quill/internal/logging"
)

var (
	ErrNotConfigured = errors.New("image provider not configured")
	ErrNoImage       = errors.New("provider returned no image")

	log = logging.Get()
)

// Provider produces a URL for a generated image.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generator wraps the configured primary provider with the fallback policy.
type Generator struct {
	primary       Provider
	allowFallback bool
	width         int
	height        int
}

// NewGenerator builds the provider chain for the configured image provider.
func NewGenerator(cfg *config.Config) (*Generator, error) {
	g := &Generator{width: cfg.ImageWidth, height: cfg.ImageHeight}

	switch cfg.ImageProvider {
	case config.ImageProviderPollinations:
		g.primary = NewPollinations(cfg.ImageBaseURL, cfg.ImageModel, cfg.ImageWidth, cfg.ImageHeight)
		g.allowFallback = true
	case config.ImageProviderOpenAI:
		g.primary = NewOpenAI(cfg.ImageAPIURL, cfg.APIKey, cfg.ImageModel, cfg.ImageWidth, cfg.ImageHeight)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, cfg.ImageProvider)
	}
	return g, nil
}

// Generate runs the primary provider and applies the fallback policy.
// Cancellation never triggers the fallback; the context error surfaces so
// the caller can finalize as a stop rather than a failure.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	url, err := g.primary.Generate(ctx, prompt)
	if err == nil {
		return url, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if !g.allowFallback {
		return "", err
	}

	log.Info("Primary image provider failed (%v), using fallback", err)
	return FallbackURL(g.width, g.height), nil
}

// FallbackURL builds the always-available random-image URL for the given
// dimensions. It is a pure URL construction; the result is not validated.
func FallbackURL(width, height int) string {
	return fmt.Sprintf("https://picsum.photos/%d/%d", width, height)
}
