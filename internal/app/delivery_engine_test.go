package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/nicedowns-go/internal/domain"
	"github.com/yourusername/nicedowns-go/internal/infrastructure"
)

type scriptedStrategy struct {
	name       domain.StrategyName
	applicable func(domain.Asset) bool
	result     *domain.StrategyResult
	err        error
	calls      int
	onAttempt  func()
}

func (s *scriptedStrategy) Name() domain.StrategyName { return s.name }

func (s *scriptedStrategy) Applicable(asset domain.Asset) bool {
	if s.applicable == nil {
		return true
	}
	return s.applicable(asset)
}

func (s *scriptedStrategy) Attempt(ctx context.Context, asset domain.Asset, filename string) (*domain.StrategyResult, error) {
	s.calls++
	if s.onAttempt != nil {
		s.onAttempt()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func never(domain.Asset) bool { return false }

func hostIs(host string) func(domain.Asset) bool {
	return func(a domain.Asset) bool { return a.Host == host }
}

func hostIsNot(host string) func(domain.Asset) bool {
	return func(a domain.Asset) bool { return a.Host != host }
}

func outcomes(attempt *domain.DeliveryAttempt) []string {
	var out []string
	for _, r := range attempt.Strategies {
		out = append(out, fmt.Sprintf("%s:%s", r.Strategy, r.Outcome))
	}
	return out
}

func TestDeliver_DirectSuccessStopsCascade(t *testing.T) {
	direct := &scriptedStrategy{name: domain.StrategyDirect, result: &domain.StrategyResult{Kind: domain.OutcomeAutomated, SavedPath: "/done/a.mp4", Bytes: 10}}
	proxy := &scriptedStrategy{name: domain.StrategyProxy, result: &domain.StrategyResult{Kind: domain.OutcomeAutomated}}
	engine := NewDeliveryEngine([]domain.DeliveryStrategy{direct, proxy}, nil)

	attempt := &domain.DeliveryAttempt{AssetURL: "https://files.example.com/a.mp4", Filename: "a.mp4"}
	outcome, err := engine.Run(context.Background(), attempt)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAutomated, outcome.Kind)
	assert.Equal(t, domain.StrategyDirect, outcome.Strategy)
	assert.Equal(t, "/done/a.mp4", outcome.SavedPath)
	assert.Equal(t, 0, proxy.calls)
	assert.Equal(t, []string{"direct:success"}, outcomes(attempt))
}

func TestDeliver_SignedHostCascade(t *testing.T) {
	const signed = "dl.snapcdn.app"
	direct := &scriptedStrategy{name: domain.StrategyDirect, applicable: hostIsNot(signed)}
	proxy := &scriptedStrategy{name: domain.StrategyProxy, applicable: hostIsNot(signed)}
	hostSpecific := &scriptedStrategy{name: domain.StrategyHostSpecific, applicable: hostIs(signed),
		result: &domain.StrategyResult{Kind: domain.OutcomeAutomated, Caveat: "opened in browser"}}
	assisted := &scriptedStrategy{name: domain.StrategyAssisted, result: &domain.StrategyResult{Kind: domain.OutcomeAssistedManual}}
	engine := NewDeliveryEngine([]domain.DeliveryStrategy{direct, proxy, hostSpecific, assisted}, nil)

	attempt := &domain.DeliveryAttempt{AssetURL: "https://" + signed + "/get?token=1", Filename: "a.mp4"}
	outcome, err := engine.Run(context.Background(), attempt)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAutomated, outcome.Kind)
	assert.Equal(t, domain.StrategyHostSpecific, outcome.Strategy)
	assert.Equal(t, "opened in browser", outcome.Caveat)
	assert.Equal(t, 0, direct.calls)
	assert.Equal(t, 0, proxy.calls)
	assert.Equal(t, 0, assisted.calls)
	assert.Equal(t, []string{"direct:skipped", "proxy:skipped", "host_specific:success"}, outcomes(attempt))
}

func TestDeliver_FailingGenericHostEndsAssisted(t *testing.T) {
	direct := &scriptedStrategy{name: domain.StrategyDirect, err: fmt.Errorf("%w: status 403", domain.ErrDeliveryBlocked)}
	proxy := &scriptedStrategy{name: domain.StrategyProxy, err: errors.New("proxy timeout")}
	hostSpecific := &scriptedStrategy{name: domain.StrategyHostSpecific, applicable: never}
	assisted := &scriptedStrategy{name: domain.StrategyAssisted, result: &domain.StrategyResult{Kind: domain.OutcomeAssistedManual, Instructions: "save it yourself"}}
	engine := NewDeliveryEngine([]domain.DeliveryStrategy{direct, proxy, hostSpecific, assisted}, nil)

	attempt := &domain.DeliveryAttempt{AssetURL: "https://files.example.com/a.mp4", Filename: "a.mp4"}
	outcome, err := engine.Run(context.Background(), attempt)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAssistedManual, outcome.Kind)
	assert.Equal(t, domain.StrategyAssisted, outcome.Strategy)
	assert.Equal(t, "save it yourself", outcome.Instructions)
	assert.Equal(t, []string{"direct:blocked", "proxy:error", "host_specific:skipped", "assisted_manual:success"}, outcomes(attempt))
	assert.Contains(t, attempt.Strategies[1].Detail, "proxy timeout")
}

func TestDeliver_ExhaustionWithoutAssistedStrategy(t *testing.T) {
	direct := &scriptedStrategy{name: domain.StrategyDirect, err: errors.New("boom")}
	engine := NewDeliveryEngine([]domain.DeliveryStrategy{direct}, nil)

	outcome, err := engine.Deliver(context.Background(), "https://files.example.com/a.mp4", "a.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAssistedManual, outcome.Kind)
	assert.Contains(t, outcome.Instructions, "a.mp4")
	assert.Contains(t, outcome.Instructions, "https://files.example.com/a.mp4")
}

func TestDeliver_MalformedURL(t *testing.T) {
	direct := &scriptedStrategy{name: domain.StrategyDirect}
	engine := NewDeliveryEngine([]domain.DeliveryStrategy{direct}, nil)

	for _, raw := range []string{"", "not a url", "ftp://files.example.com/a", "https:///nohost", "javascript:alert(1)"} {
		_, err := engine.Deliver(context.Background(), raw, "a.mp4")
		assert.ErrorIs(t, err, domain.ErrDeliveryFailed, "url %q", raw)
	}
	assert.Equal(t, 0, direct.calls)
}

func TestDeliver_CancelledBetweenStrategies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	direct := &scriptedStrategy{name: domain.StrategyDirect, err: errors.New("fail"), onAttempt: cancel}
	proxy := &scriptedStrategy{name: domain.StrategyProxy, result: &domain.StrategyResult{Kind: domain.OutcomeAutomated}}
	engine := NewDeliveryEngine([]domain.DeliveryStrategy{direct, proxy}, nil)

	_, err := engine.Deliver(ctx, "https://files.example.com/a.mp4", "a.mp4")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, proxy.calls)
}

func TestParseAsset(t *testing.T) {
	asset, err := parseAsset("https://V16M.TikTokCDN.com/video.mp4?sig=1")
	require.NoError(t, err)
	assert.Equal(t, "v16m.tiktokcdn.com", asset.Host)

	asset, err = parseAsset("https://www.youtube.com/watch?v=1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformYouTube, asset.Platform)
}

// realEngine builds the default cascade against handler, used both as the
// asset host and as the proxy
func realEngine(t *testing.T, handler http.HandlerFunc) (*DeliveryEngine, *httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	completed := filepath.Join(dir, "completed")
	saver, err := infrastructure.NewFileSaver(filepath.Join(dir, "incoming"), completed, nil)
	require.NoError(t, err)

	config := domain.DefaultConfig().Delivery
	config.Timeout = 5 * time.Second
	config.ProxyEndpoint = server.URL + "/raw?url="
	strategies := infrastructure.NewDefaultStrategies(infrastructure.StrategyDeps{
		Config: config,
		Client: server.Client(),
		Saver:  saver,
	})
	return NewDeliveryEngine(strategies, nil), server, completed
}

func completedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDeliver_SavesExactPayload(t *testing.T) {
	engine, server, completed := realEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write([]byte("\x00\x00\x00\x18ftypmp42"))
	})

	attempt := &domain.DeliveryAttempt{AssetURL: server.URL + "/v.mp4", Filename: "clip.mp4"}
	outcome, err := engine.Run(context.Background(), attempt)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAutomated, outcome.Kind)
	assert.Equal(t, domain.StrategyDirect, outcome.Strategy)

	data, err := os.ReadFile(filepath.Join(completed, "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "\x00\x00\x00\x18ftypmp42", string(data))
}

func TestDeliver_ManualAssetGoesStraightToAssisted(t *testing.T) {
	var hits int32
	engine, server, completed := realEngine(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("<!doctype html><html>instagram login page</html>"))
	})

	attempt := &domain.DeliveryAttempt{AssetURL: server.URL + "/p/abc/", Filename: "instagram_x.mp4", Manual: true}
	outcome, err := engine.Run(context.Background(), attempt)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAssistedManual, outcome.Kind)
	assert.Contains(t, outcome.Instructions, attempt.AssetURL)
	assert.Contains(t, outcome.Instructions, "post page")
	assert.Equal(t, []string{
		"direct:skipped",
		"proxy:skipped",
		"host_specific:skipped",
		"assisted_manual:success",
	}, outcomes(attempt))
	assert.Zero(t, atomic.LoadInt32(&hits), "a page link is never fetched")
	assert.Empty(t, completedFiles(t, completed))
}

func TestDeliver_HTMLResponseFallsThroughToAssisted(t *testing.T) {
	engine, server, completed := realEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write([]byte("<!doctype html><html>instagram login page</html>"))
	})

	attempt := &domain.DeliveryAttempt{AssetURL: server.URL + "/p/abc/", Filename: "instagram_x.mp4"}
	outcome, err := engine.Run(context.Background(), attempt)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAssistedManual, outcome.Kind)
	assert.Equal(t, []string{
		"direct:error",
		"proxy:error",
		"host_specific:skipped",
		"assisted_manual:success",
	}, outcomes(attempt))
	assert.Empty(t, completedFiles(t, completed))
}
