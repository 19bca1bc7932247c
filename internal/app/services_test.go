package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/nicedowns-go/internal/domain"
)

func servicesConfig(t *testing.T) *domain.Config {
	t.Helper()
	dir := t.TempDir()
	config := domain.DefaultConfig()
	config.Delivery.BaseDir = dir
	config.Delivery.CompletedDir = filepath.Join(dir, "completed")
	config.Delivery.IncomingDir = filepath.Join(dir, "incoming")
	config.Delivery.LogsDir = filepath.Join(dir, "logs")
	config.Cache.Path = filepath.Join(dir, "config", "cache.db")
	config.Storage.DatabasePath = filepath.Join(dir, "config", "history.db")
	return config
}

func TestNewServices(t *testing.T) {
	config := servicesConfig(t)

	s, err := NewServices(config, nil, ServicesOptions{DisableNotifications: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	names := make([]string, 0, len(s.Providers))
	for _, p := range s.Providers {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"sparky", "nexoracle", "youtube"}, names)

	assert.Len(t, s.Resolver.SupportedPlatforms(), len(domain.DefaultChains()))
	assert.Equal(t, []string{"sparky", "nexoracle"}, s.Resolver.Chain(domain.PlatformFacebook))
	assert.Equal(t, config.Delivery.CompletedDir, s.Saver.CompletedDir())
	assert.DirExists(t, config.Delivery.IncomingDir)
	assert.FileExists(t, config.Cache.Path)
	assert.FileExists(t, config.Storage.DatabasePath)

	history, err := s.Orchestrator.History(10)
	require.NoError(t, err)
	assert.Empty(t, history)

	s.PruneCache()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestNewServices_WithoutOptionalStores(t *testing.T) {
	config := servicesConfig(t)
	config.Cache.Enabled = false

	s, err := NewServices(config, nil, ServicesOptions{DisableHistory: true, DisableNotifications: true})
	require.NoError(t, err)
	defer s.Close()

	assert.NoFileExists(t, config.Cache.Path)
	assert.NoFileExists(t, config.Storage.DatabasePath)

	stats, err := s.Orchestrator.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Submissions)
}

func TestNewServices_InvalidChain(t *testing.T) {
	config := servicesConfig(t)
	config.Providers.Chains = map[string][]string{"tiktok": {"snaptik"}}

	_, err := NewServices(config, nil, ServicesOptions{DisableNotifications: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snaptik")
}
