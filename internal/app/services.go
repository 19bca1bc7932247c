package app

import (
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/yourusername/nicedowns-go/internal/domain"
	"github.com/yourusername/nicedowns-go/internal/infrastructure"
	"github.com/yourusername/nicedowns-go/pkg/logger"
)

// ServicesOptions adjusts how the pipeline is assembled
type ServicesOptions struct {
	// Progress receives transfer progress for automated saves
	Progress infrastructure.ProgressFunc
	// DisableHistory skips the SQLite history database
	DisableHistory bool
	// DisableNotifications skips desktop notifications
	DisableNotifications bool
}

// Services is the assembled resolution and delivery pipeline
type Services struct {
	Config       *domain.Config
	HTTPClient   *http.Client
	Providers    []domain.Provider
	Resolver     *Resolver
	Engine       *DeliveryEngine
	Orchestrator *Orchestrator
	Saver        *infrastructure.FileSaver

	cache   *infrastructure.BoltDescriptorCache
	history *infrastructure.SQLiteHistoryRepository
	logger  *zap.Logger
}

// NewServices builds providers, cache, resolver, delivery cascade, history
// and orchestrator from config. Call Close when done.
func NewServices(config *domain.Config, logs *logger.LoggerAdapter, opts ServicesOptions) (*Services, error) {
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(zap.NewNop())
	}

	s := &Services{
		Config:     config,
		HTTPClient: &http.Client{},
		logger:     logs.General(),
	}

	s.Providers = []domain.Provider{
		infrastructure.NewSparkyProvider(config.Providers.Sparky, config.Providers.ProbeURL,
			s.HTTPClient, config.Providers.Timeout, logs.Resolve()),
		infrastructure.NewNexoracleProvider(config.Providers.Nexoracle, config.Providers.DegradeOnEmpty,
			s.HTTPClient, config.Providers.Timeout, logs.Resolve()),
		infrastructure.NewYouTubeProvider(config.Providers.YouTube,
			s.HTTPClient, config.Providers.Timeout, logs.Resolve()),
	}

	var cache domain.DescriptorCache
	if config.Cache.Enabled {
		c, err := infrastructure.NewBoltDescriptorCache(config.Cache.Path, config.Cache.TTL, logs.Resolve())
		if err != nil {
			return nil, fmt.Errorf("failed to open descriptor cache: %w", err)
		}
		s.cache = c
		cache = c
	}

	resolver, err := NewResolver(s.Providers, config.Providers.Chains, cache, logs.Resolve())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to build resolver: %w", err)
	}
	s.Resolver = resolver

	saver, err := infrastructure.NewFileSaver(config.Delivery.IncomingDir, config.Delivery.CompletedDir, logs.Delivery())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare output directories: %w", err)
	}
	s.Saver = saver

	strategies := infrastructure.NewDefaultStrategies(infrastructure.StrategyDeps{
		Config:   config.Delivery,
		Client:   s.HTTPClient,
		Saver:    saver,
		Opener:   infrastructure.NewBrowserOpener(config.Delivery.OpenInBrowser, logs.Delivery()),
		Progress: opts.Progress,
		Logger:   logs.Delivery(),
	})
	s.Engine = NewDeliveryEngine(strategies, logs.Delivery())

	orchestratorOpts := []OrchestratorOption{
		WithProbes(ProbesFromProviders(s.Providers)...),
	}
	if !opts.DisableHistory {
		history, err := infrastructure.NewSQLiteHistoryRepository(config.Storage.DatabasePath, logs.Error())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		s.history = history
		orchestratorOpts = append(orchestratorOpts, WithHistory(history))
	}
	if !opts.DisableNotifications {
		orchestratorOpts = append(orchestratorOpts,
			WithNotifier(infrastructure.NewNotificationService(config.Notification, logs.General())))
	}
	s.Orchestrator = NewOrchestrator(resolver, s.Engine, logs.General(), orchestratorOpts...)

	return s, nil
}

// PruneCache drops expired descriptor cache entries
func (s *Services) PruneCache() {
	if s.cache == nil {
		return
	}
	removed, err := s.cache.Prune()
	if err != nil {
		s.logger.Warn("Failed to prune descriptor cache", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("Pruned descriptor cache", zap.Int("removed", removed))
	}
}

// Close releases the cache and history database
func (s *Services) Close() error {
	var result *multierror.Error
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("cache: %w", err))
		}
		s.cache = nil
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("history: %w", err))
		}
		s.history = nil
	}
	return result.ErrorOrNil()
}
