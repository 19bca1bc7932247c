package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/nicedowns-go/internal/domain"
)

// MediaResolver resolves raw input into a descriptor
type MediaResolver interface {
	Resolve(ctx context.Context, rawInput string) (*domain.Resolution, error)
}

// AssetDeliverer runs the delivery cascade for one attempt
type AssetDeliverer interface {
	Run(ctx context.Context, attempt *domain.DeliveryAttempt) (*domain.DeliveryOutcome, error)
}

// InFlightDelivery is a snapshot of a running delivery
type InFlightDelivery struct {
	AttemptID    string    `json:"attempt_id"`
	SubmissionID string    `json:"submission_id"`
	AssetID      string    `json:"asset_id"`
	Filename     string    `json:"filename"`
	StartedAt    time.Time `json:"started_at"`
}

// Orchestrator owns the current submission and the set of in-flight deliveries
type Orchestrator struct {
	resolver MediaResolver
	engine   AssetDeliverer
	history  domain.HistoryRepository
	notifier domain.Notifier
	probes   []domain.Prober
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	current    *domain.Submission
	generation uint64
	inFlight   map[string]*domain.DeliveryAttempt
}

// OrchestratorOption configures optional collaborators
type OrchestratorOption func(*Orchestrator)

// WithHistory persists submissions and attempts
func WithHistory(history domain.HistoryRepository) OrchestratorOption {
	return func(o *Orchestrator) { o.history = history }
}

// WithNotifier reports delivery outcomes to the user
func WithNotifier(notifier domain.Notifier) OrchestratorOption {
	return func(o *Orchestrator) { o.notifier = notifier }
}

// WithProbes registers connectivity probes for ProviderStatus
func WithProbes(probes ...domain.Prober) OrchestratorOption {
	return func(o *Orchestrator) { o.probes = append(o.probes, probes...) }
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(resolver MediaResolver, engine AssetDeliverer, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		resolver: resolver,
		engine:   engine,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]*domain.DeliveryAttempt),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProbesFromProviders returns the providers that can probe themselves
func ProbesFromProviders(providers []domain.Provider) []domain.Prober {
	var probes []domain.Prober
	for _, p := range providers {
		if prober, ok := p.(domain.Prober); ok {
			probes = append(probes, prober)
		}
	}
	return probes
}

// Submit resolves raw input and makes the result the current submission.
// On resolution failure the returned submission carries the user message.
// If another Submit or a reset happened meanwhile, the result is dropped and
// ErrSubmissionSuperseded is returned.
func (o *Orchestrator) Submit(ctx context.Context, raw string) (*domain.Submission, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return nil, fmt.Errorf("%w: empty input", domain.ErrInvalidInput)
	}
	input = domain.CleanURL(input)

	sub := domain.NewSubmission(input)

	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.mu.Unlock()

	o.logger.Info("Submission received",
		zap.String("id", sub.ID),
		zap.String("input", input))

	res, err := o.resolver.Resolve(ctx, input)

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		o.logger.Info("Discarding stale resolution", zap.String("id", sub.ID))
		return nil, domain.ErrSubmissionSuperseded
	}
	if err != nil {
		sub.MarkFailed(err)
		sub.Platform = domain.Classify(input)
	} else {
		sub.MarkResolved(res)
	}
	o.current = sub
	o.mu.Unlock()

	o.saveSubmission(sub)

	if err != nil {
		o.logger.Warn("Submission failed",
			zap.String("id", sub.ID),
			zap.String("kind", string(sub.ErrorKind)),
			zap.Error(err))
		return sub, err
	}

	o.logger.Info("Submission resolved",
		zap.String("id", sub.ID),
		zap.String("platform", sub.Platform.String()),
		zap.String("provider", sub.Provider),
		zap.Bool("degraded", sub.Degraded))
	return sub, nil
}

// Current returns the current submission, or nil
func (o *Orchestrator) Current() *domain.Submission {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// ResetSubmission clears the current submission. Deliveries still running
// for it are independent and finish with their own outcome.
func (o *Orchestrator) ResetSubmission() {
	o.mu.Lock()
	o.generation++
	o.current = nil
	running := len(o.inFlight)
	o.mu.Unlock()

	o.logger.Info("Submission reset", zap.Int("in_flight", running))
}

// RequestDelivery delivers one asset of the current submission. An empty
// filename is generated from the descriptor. At most one delivery per asset
// runs at a time.
func (o *Orchestrator) RequestDelivery(ctx context.Context, assetID, filename string) (*domain.DeliveryAttempt, error) {
	o.mu.Lock()
	sub := o.current
	if sub == nil || !sub.IsResolved() {
		o.mu.Unlock()
		return nil, domain.ErrNoSubmission
	}
	asset, ok := sub.Descriptor.FindAsset(assetID)
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, assetID)
	}
	if _, busy := o.inFlight[assetID]; busy {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrDeliveryInFlight, assetID)
	}

	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = domain.GenerateFilename(sub.Descriptor.Platform, sub.Descriptor.Title, asset, o.now())
	}
	attempt := domain.NewDeliveryAttempt(sub.ID, asset, filename)
	o.inFlight[assetID] = attempt
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		if o.inFlight[assetID] == attempt {
			delete(o.inFlight, assetID)
		}
		o.mu.Unlock()
	}()

	o.saveAttempt(attempt)

	outcome, err := o.engine.Run(ctx, attempt)

	o.mu.Lock()
	replaced := o.current != sub
	o.mu.Unlock()
	if replaced {
		o.logger.Info("Delivery finished after its submission was replaced",
			zap.String("attempt_id", attempt.ID),
			zap.String("submission_id", sub.ID))
	}

	attempt.Finish(outcome, err)
	o.saveAttempt(attempt)
	o.notify(attempt, err)

	if err != nil {
		o.logger.Error("Delivery failed",
			zap.String("attempt_id", attempt.ID),
			zap.String("asset_id", assetID),
			zap.Error(err))
		return attempt, err
	}
	return attempt, nil
}

// InFlight lists running deliveries, oldest first
func (o *Orchestrator) InFlight() []InFlightDelivery {
	o.mu.Lock()
	out := make([]InFlightDelivery, 0, len(o.inFlight))
	for _, a := range o.inFlight {
		out = append(out, InFlightDelivery{
			AttemptID:    a.ID,
			SubmissionID: a.SubmissionID,
			AssetID:      a.AssetID,
			Filename:     a.Filename,
			StartedAt:    a.StartedAt,
		})
	}
	o.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Restore makes the last resolved submission from history current again.
// It is a no-op without history or when a submission already exists.
func (o *Orchestrator) Restore() error {
	if o.history == nil {
		return nil
	}
	latest, err := o.history.LatestResolved()
	if err != nil {
		return fmt.Errorf("failed to load last submission: %w", err)
	}
	if latest == nil {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		return nil
	}
	o.current = latest
	o.logger.Info("Restored last submission",
		zap.String("id", latest.ID),
		zap.String("platform", latest.Platform.String()))
	return nil
}

// History returns recent submissions, newest first
func (o *Orchestrator) History(limit int) ([]*domain.Submission, error) {
	if o.history == nil {
		return nil, nil
	}
	return o.history.ListSubmissions(limit)
}

// Attempts returns the delivery attempts of a submission
func (o *Orchestrator) Attempts(submissionID string) ([]*domain.DeliveryAttempt, error) {
	if o.history == nil {
		return nil, nil
	}
	return o.history.ListAttempts(submissionID)
}

// Stats returns aggregate history counts
func (o *Orchestrator) Stats() (*domain.HistoryStats, error) {
	if o.history == nil {
		return &domain.HistoryStats{}, nil
	}
	return o.history.GetStats()
}

// ProviderStatus probes every registered provider concurrently
func (o *Orchestrator) ProviderStatus(ctx context.Context) []domain.ProviderStatus {
	statuses := make([]domain.ProviderStatus, len(o.probes))
	var wg sync.WaitGroup
	for i, probe := range o.probes {
		wg.Add(1)
		go func(i int, probe domain.Prober) {
			defer wg.Done()
			statuses[i] = probe.Probe(ctx)
		}(i, probe)
	}
	wg.Wait()
	return statuses
}

func (o *Orchestrator) saveSubmission(sub *domain.Submission) {
	if o.history == nil {
		return
	}
	if err := o.history.SaveSubmission(sub); err != nil {
		o.logger.Error("Failed to save submission", zap.String("id", sub.ID), zap.Error(err))
	}
}

func (o *Orchestrator) saveAttempt(attempt *domain.DeliveryAttempt) {
	if o.history == nil {
		return
	}
	if err := o.history.SaveAttempt(attempt); err != nil {
		o.logger.Error("Failed to save delivery attempt", zap.String("id", attempt.ID), zap.Error(err))
	}
}

func (o *Orchestrator) notify(attempt *domain.DeliveryAttempt, err error) {
	if o.notifier == nil {
		return
	}
	switch {
	case err != nil:
		o.notifier.NotifyDeliveryFailed(attempt.Filename, err)
	case attempt.Outcome.IsAutomated():
		o.notifier.NotifyDelivered(attempt.Filename, attempt.Outcome)
	default:
		o.notifier.NotifyAssisted(attempt.Filename)
	}
}
