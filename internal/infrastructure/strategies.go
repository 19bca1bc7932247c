package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/yourusername/nicedowns-go/internal/domain"
	"go.uber.org/zap"
)

// StrategyDeps are the collaborators shared by the default delivery cascade
type StrategyDeps struct {
	Config   domain.DeliveryConfig
	Client   *http.Client
	Saver    domain.Saver
	Opener   domain.Opener
	Progress ProgressFunc
	Logger   *zap.Logger
}

// NewDefaultStrategies returns the cascade in its fixed order: direct,
// proxy, host-specific, assisted manual
func NewDefaultStrategies(deps StrategyDeps) []domain.DeliveryStrategy {
	if deps.Client == nil {
		deps.Client = &http.Client{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	policy := NewHostPolicy(deps.Config.RestrictedHosts, deps.Config.SignedHosts)
	xfer := &transfer{
		client:   deps.Client,
		timeout:  deps.Config.Timeout,
		maxBytes: deps.Config.MaxPayloadBytes,
		progress: deps.Progress,
	}

	return []domain.DeliveryStrategy{
		&DirectStrategy{
			transfer:    xfer,
			policy:      policy,
			saver:       deps.Saver,
			origin:      deps.Config.Origin,
			enforceCORS: deps.Config.EnforceCORS,
		},
		&ProxyStrategy{
			transfer: xfer,
			policy:   policy,
			saver:    deps.Saver,
			endpoint: deps.Config.ProxyEndpoint,
		},
		&HostSpecificStrategy{
			policy: policy,
			opener: deps.Opener,
		},
		&AssistedStrategy{
			policy: policy,
			opener: deps.Opener,
			logger: deps.Logger,
		},
	}
}

// DirectStrategy fetches the asset in memory from its own host, then saves it
type DirectStrategy struct {
	transfer    *transfer
	policy      *HostPolicy
	saver       domain.Saver
	origin      string
	enforceCORS bool
}

// Name returns the strategy name
func (s *DirectStrategy) Name() domain.StrategyName {
	return domain.StrategyDirect
}

// Applicable excludes manual assets, hosts known to reject cross-origin reads
// and signed hosts
func (s *DirectStrategy) Applicable(asset domain.Asset) bool {
	if asset.Manual {
		return false
	}
	return !s.policy.IsRestricted(asset.Host) && !s.policy.IsSigned(asset.Host)
}

// Attempt fetches and saves the payload
func (s *DirectStrategy) Attempt(ctx context.Context, asset domain.Asset, filename string) (*domain.StrategyResult, error) {
	header := http.Header{}
	if s.origin != "" {
		header.Set("Origin", s.origin)
	}

	result, err := s.transfer.fetch(ctx, asset.URL, header, filename)
	if err != nil {
		return nil, err
	}
	if s.enforceCORS && !allowsOrigin(result.header, s.origin) {
		return nil, fmt.Errorf("%w: response does not allow cross-origin reads", domain.ErrDeliveryBlocked)
	}

	return save(ctx, s.saver, filename, result.payload)
}

// ProxyStrategy fetches the asset through a re-serving intermediary
type ProxyStrategy struct {
	transfer *transfer
	policy   *HostPolicy
	saver    domain.Saver
	endpoint string
}

// Name returns the strategy name
func (s *ProxyStrategy) Name() domain.StrategyName {
	return domain.StrategyProxy
}

// Applicable to every payload asset except those on signed-URL hosts
func (s *ProxyStrategy) Applicable(asset domain.Asset) bool {
	return s.endpoint != "" && !asset.Manual && !s.policy.IsSigned(asset.Host)
}

// Attempt fetches via the proxy and saves the payload
func (s *ProxyStrategy) Attempt(ctx context.Context, asset domain.Asset, filename string) (*domain.StrategyResult, error) {
	result, err := s.transfer.fetch(ctx, ProxyURL(s.endpoint, asset.URL), nil, filename)
	if err != nil {
		return nil, err
	}
	return save(ctx, s.saver, filename, result.payload)
}

// ProxyURL builds the intermediary URL. A "{url}" placeholder is replaced,
// otherwise the escaped asset URL is appended.
func ProxyURL(endpoint, assetURL string) string {
	escaped := url.QueryEscape(assetURL)
	if strings.Contains(endpoint, "{url}") {
		return strings.ReplaceAll(endpoint, "{url}", escaped)
	}
	return endpoint + escaped
}

func save(ctx context.Context, saver domain.Saver, filename string, payload []byte) (*domain.StrategyResult, error) {
	if saver == nil {
		return nil, fmt.Errorf("no saver configured")
	}
	path, err := saver.Save(ctx, filename, payload)
	if err != nil {
		return nil, fmt.Errorf("save failed: %w", err)
	}
	return &domain.StrategyResult{
		Kind:      domain.OutcomeAutomated,
		SavedPath: path,
		Bytes:     int64(len(payload)),
	}, nil
}

// HostSpecificStrategy opens signed-URL assets directly in the user's browser,
// where the host's own headers trigger the download
type HostSpecificStrategy struct {
	policy *HostPolicy
	opener domain.Opener
}

// Name returns the strategy name
func (s *HostSpecificStrategy) Name() domain.StrategyName {
	return domain.StrategyHostSpecific
}

// Applicable only to payload assets on signed-URL hosts
func (s *HostSpecificStrategy) Applicable(asset domain.Asset) bool {
	return !asset.Manual && s.policy.IsSigned(asset.Host)
}

// Attempt opens the asset URL
func (s *HostSpecificStrategy) Attempt(ctx context.Context, asset domain.Asset, filename string) (*domain.StrategyResult, error) {
	if s.opener == nil {
		return nil, fmt.Errorf("no opener configured")
	}
	if err := s.opener.Open(ctx, asset.URL); err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	return &domain.StrategyResult{
		Kind:   domain.OutcomeAutomated,
		Caveat: fmt.Sprintf("Opened in your browser. The download starts there and is saved by the browser, not as %s.", filename),
	}, nil
}

// AssistedStrategy opens the asset and hands the user instructions. It never fails.
type AssistedStrategy struct {
	policy *HostPolicy
	opener domain.Opener
	logger *zap.Logger
}

// Name returns the strategy name
func (s *AssistedStrategy) Name() domain.StrategyName {
	return domain.StrategyAssisted
}

// Applicable to every asset
func (s *AssistedStrategy) Applicable(asset domain.Asset) bool {
	return true
}

// Attempt opens the asset when possible and returns manual steps
func (s *AssistedStrategy) Attempt(ctx context.Context, asset domain.Asset, filename string) (*domain.StrategyResult, error) {
	if s.opener != nil {
		if err := s.opener.Open(ctx, asset.URL); err != nil {
			s.logger.Debug("Could not open asset for manual save",
				zap.String("host", asset.Host),
				zap.Error(err))
		}
	}
	return &domain.StrategyResult{
		Kind:         domain.OutcomeAssistedManual,
		Instructions: s.policy.Instructions(asset, filename),
	}, nil
}
