package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/yourusername/nicedowns-go/internal/domain"
)

// Resolver turns raw input into a media descriptor by walking the configured
// provider chain for the input's platform
type Resolver struct {
	providers map[string]domain.Provider
	order     []string
	chains    map[domain.Platform][]domain.Provider
	cache     domain.DescriptorCache
	logger    *zap.Logger
}

// NewResolver builds a resolver. Every provider named in chains must be
// registered and must support the platform it is chained for.
func NewResolver(providers []domain.Provider, chains map[string][]string, cache domain.DescriptorCache, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Resolver{
		providers: make(map[string]domain.Provider, len(providers)),
		chains:    make(map[domain.Platform][]domain.Provider, len(chains)),
		cache:     cache,
		logger:    logger,
	}
	for _, p := range providers {
		if _, dup := r.providers[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate provider %q", p.Name())
		}
		r.providers[p.Name()] = p
		r.order = append(r.order, p.Name())
	}

	for name, chain := range chains {
		platform := domain.Platform(name)
		if !platform.IsKnown() {
			return nil, fmt.Errorf("provider chain for unknown platform %q", name)
		}
		for _, providerName := range chain {
			p, ok := r.providers[providerName]
			if !ok {
				return nil, fmt.Errorf("platform %s: unknown provider %q", platform, providerName)
			}
			if !p.Supports(platform) {
				return nil, fmt.Errorf("platform %s: provider %q does not support it", platform, providerName)
			}
			r.chains[platform] = append(r.chains[platform], p)
		}
	}

	return r, nil
}

// Providers returns the registered providers in registration order
func (r *Resolver) Providers() []domain.Provider {
	out := make([]domain.Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Chain returns the provider names tried for a platform, in order
func (r *Resolver) Chain(platform domain.Platform) []string {
	chain := r.chains[platform]
	names := make([]string, 0, len(chain))
	for _, p := range chain {
		names = append(names, p.Name())
	}
	return names
}

// SupportedPlatforms returns the platforms that have a provider chain
func (r *Resolver) SupportedPlatforms() []domain.Platform {
	platforms := make([]domain.Platform, 0, len(r.chains))
	for p, chain := range r.chains {
		if len(chain) > 0 {
			platforms = append(platforms, p)
		}
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

// Resolve classifies the input and queries providers strictly in chain order.
// The first descriptor wins; provider errors advance to the next provider.
func (r *Resolver) Resolve(ctx context.Context, rawInput string) (*domain.Resolution, error) {
	input := strings.TrimSpace(rawInput)
	if input == "" {
		return nil, fmt.Errorf("%w: empty input", domain.ErrInvalidInput)
	}

	platform, err := r.classify(input)
	if err != nil {
		r.logger.Info("Input rejected",
			zap.String("input", input),
			zap.Error(err))
		return nil, err
	}

	if r.cache != nil {
		if cached, ok := r.cache.Get(input); ok {
			r.logger.Info("Resolved from cache",
				zap.String("input", input),
				zap.String("platform", platform.String()),
				zap.String("provider", cached.Provider))
			return cached, nil
		}
	}

	chain := r.chains[platform]
	if platform == domain.PlatformInstagramStory {
		// Profile lookups go to one dedicated client with no fallback
		chain = chain[:1]
	}

	r.logger.Info("Resolving",
		zap.String("input", input),
		zap.String("platform", platform.String()),
		zap.Strings("chain", r.Chain(platform)))

	var result *multierror.Error
	var attempts []string
	for _, p := range chain {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolution cancelled: %w", err)
		}

		start := time.Now()
		descriptor, err := p.FetchDescriptor(ctx, platform, input)
		if err == nil {
			if verr := descriptor.Validate(); verr != nil {
				err = domain.NewProviderError(p.Name(), domain.ProviderMalformed, verr)
			}
		}
		took := time.Since(start)
		attempts = append(attempts, p.Name())

		if err != nil {
			r.logger.Warn("Provider failed",
				zap.String("provider", p.Name()),
				zap.String("platform", platform.String()),
				zap.String("kind", string(providerErrorKind(err))),
				zap.Duration("took", took),
				zap.Error(err))
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", p.Name())))
			continue
		}

		if descriptor.Platform == domain.PlatformNone {
			descriptor.Platform = platform
		}
		if descriptor.SourceProvider == "" {
			descriptor.SourceProvider = p.Name()
		}
		resolution := &domain.Resolution{
			Descriptor: descriptor,
			Platform:   platform,
			Provider:   p.Name(),
			Degraded:   descriptor.Degraded,
			Attempts:   attempts[:len(attempts)-1],
		}

		r.logger.Info("Resolved",
			zap.String("provider", p.Name()),
			zap.String("platform", platform.String()),
			zap.String("title", descriptor.Title),
			zap.Int("assets", len(descriptor.Assets)),
			zap.Bool("degraded", descriptor.Degraded),
			zap.Duration("took", took))

		if r.cache != nil {
			if err := r.cache.Put(input, resolution); err != nil {
				r.logger.Warn("Failed to cache resolution", zap.Error(err))
			}
		}
		return resolution, nil
	}

	result.ErrorFormat = joinProviderErrors
	err = fmt.Errorf("%w: %w", domain.ErrAllProvidersFailed, result.ErrorOrNil())
	r.logger.Error("All providers failed",
		zap.String("input", input),
		zap.String("platform", platform.String()),
		zap.Strings("attempts", attempts),
		zap.Error(err))
	return nil, err
}

// classify maps input to a platform that has a provider chain
func (r *Resolver) classify(input string) (domain.Platform, error) {
	platform := domain.Classify(input)
	if platform == domain.PlatformNone {
		if domain.LooksLikeURL(input) {
			return platform, &domain.UnsupportedPlatformError{Supported: r.SupportedPlatforms()}
		}
		return platform, fmt.Errorf("%w: %q is neither a link nor a username", domain.ErrInvalidInput, input)
	}
	if len(r.chains[platform]) == 0 {
		return platform, &domain.UnsupportedPlatformError{Platform: platform, Supported: r.SupportedPlatforms()}
	}
	return platform, nil
}

func joinProviderErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func providerErrorKind(err error) domain.ProviderErrorKind {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}
