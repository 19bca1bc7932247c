package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/nicedowns-go/internal/domain"
)

// DeliveryEngine runs the ordered strategy cascade for one asset at a time
type DeliveryEngine struct {
	strategies []domain.DeliveryStrategy
	logger     *zap.Logger
}

// NewDeliveryEngine creates an engine that tries strategies in the given order
func NewDeliveryEngine(strategies []domain.DeliveryStrategy, logger *zap.Logger) *DeliveryEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryEngine{
		strategies: strategies,
		logger:     logger,
	}
}

// Deliver delivers a single asset URL under filename
func (e *DeliveryEngine) Deliver(ctx context.Context, assetURL, filename string) (*domain.DeliveryOutcome, error) {
	return e.Run(ctx, &domain.DeliveryAttempt{AssetURL: assetURL, Filename: filename})
}

// Run walks the cascade for attempt, appending one record per strategy.
// A failing strategy advances to the next one; only a malformed asset URL or
// cancellation is returned as an error. Exhaustion yields assisted manual.
func (e *DeliveryEngine) Run(ctx context.Context, attempt *domain.DeliveryAttempt) (*domain.DeliveryOutcome, error) {
	asset, err := parseAsset(attempt.AssetURL)
	if err != nil {
		e.logger.Warn("Rejected asset url",
			zap.String("url", attempt.AssetURL),
			zap.Error(err))
		return nil, err
	}
	asset.Manual = attempt.Manual
	filename := strings.TrimSpace(attempt.Filename)
	if filename == "" {
		filename = "download"
	}

	log := e.logger.With(
		zap.String("attempt_id", attempt.ID),
		zap.String("host", asset.Host),
		zap.String("filename", filename),
		zap.Bool("manual", asset.Manual))
	log.Info("Delivery started")

	for _, strategy := range e.strategies {
		name := strategy.Name()
		if err := ctx.Err(); err != nil {
			log.Warn("Delivery cancelled", zap.String("strategy", string(name)), zap.Error(err))
			return nil, fmt.Errorf("delivery cancelled: %w", err)
		}

		if !strategy.Applicable(asset) {
			attempt.Record(name, domain.OutcomeSkipped, "", 0)
			log.Debug("Strategy skipped", zap.String("strategy", string(name)))
			continue
		}

		start := time.Now()
		result, err := strategy.Attempt(ctx, asset, filename)
		took := time.Since(start)

		if err != nil {
			outcome := domain.OutcomeError
			if errors.Is(err, domain.ErrDeliveryBlocked) {
				outcome = domain.OutcomeBlocked
			}
			attempt.Record(name, outcome, err.Error(), took)
			log.Info("Strategy failed",
				zap.String("strategy", string(name)),
				zap.String("outcome", string(outcome)),
				zap.Duration("took", took),
				zap.Error(err))
			continue
		}

		attempt.Record(name, domain.OutcomeSuccess, "", took)
		out := &domain.DeliveryOutcome{
			Kind:         result.Kind,
			Strategy:     name,
			Caveat:       result.Caveat,
			Instructions: result.Instructions,
			SavedPath:    result.SavedPath,
			Bytes:        result.Bytes,
		}
		log.Info("Delivery finished",
			zap.String("strategy", string(name)),
			zap.String("kind", string(out.Kind)),
			zap.String("saved_path", out.SavedPath),
			zap.Int64("bytes", out.Bytes),
			zap.Duration("took", took))
		return out, nil
	}

	log.Info("All strategies exhausted, falling back to manual save")
	return &domain.DeliveryOutcome{
		Kind:     domain.OutcomeAssistedManual,
		Strategy: domain.StrategyAssisted,
		Instructions: fmt.Sprintf("Open the link in your browser and save the file manually. Suggested name: %s\nLink: %s",
			filename, asset.URL),
	}, nil
}

// parseAsset validates an asset URL and derives its host and platform
func parseAsset(raw string) (domain.Asset, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return domain.Asset{}, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.Asset{}, fmt.Errorf("%w: unsupported scheme %q", domain.ErrDeliveryFailed, u.Scheme)
	}
	if u.Hostname() == "" {
		return domain.Asset{}, fmt.Errorf("%w: missing host", domain.ErrDeliveryFailed)
	}
	return domain.Asset{
		URL:      u.String(),
		Host:     strings.ToLower(u.Hostname()),
		Platform: domain.ClassifyHost(u.Hostname()),
	}, nil
}
