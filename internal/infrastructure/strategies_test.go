package infrastructure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/nicedowns-go/internal/domain"
)

type memorySaver struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func newMemorySaver() *memorySaver {
	return &memorySaver{saved: make(map[string][]byte)}
}

func (s *memorySaver) Save(ctx context.Context, filename string, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved[filename] = append([]byte(nil), payload...)
	return "/completed/" + filename, nil
}

func (s *memorySaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type fakeOpener struct {
	opened []string
	err    error
}

func (o *fakeOpener) Open(ctx context.Context, target string) error {
	o.opened = append(o.opened, target)
	return o.err
}

func testDeliveryConfig(proxy string) domain.DeliveryConfig {
	return domain.DeliveryConfig{
		ProxyEndpoint:   proxy,
		Timeout:         5 * time.Second,
		MaxPayloadBytes: 1024,
		EnforceCORS:     true,
		Origin:          "http://localhost:8080",
		RestrictedHosts: []string{"tiktokcdn.com"},
		SignedHosts:     []string{"snapcdn.app"},
	}
}

func strategyByName(t *testing.T, strategies []domain.DeliveryStrategy, name domain.StrategyName) domain.DeliveryStrategy {
	t.Helper()
	for _, s := range strategies {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("strategy %s not found", name)
	return nil
}

func assetFor(t *testing.T, raw string) domain.Asset {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return domain.Asset{URL: raw, Host: u.Hostname()}
}

func TestNewDefaultStrategies_Order(t *testing.T) {
	strategies := NewDefaultStrategies(StrategyDeps{Config: testDeliveryConfig("https://proxy.example/?url=")})

	var names []domain.StrategyName
	for _, s := range strategies {
		names = append(names, s.Name())
	}
	assert.Equal(t, []domain.StrategyName{
		domain.StrategyDirect,
		domain.StrategyProxy,
		domain.StrategyHostSpecific,
		domain.StrategyAssisted,
	}, names)
}

func TestStrategies_Applicability(t *testing.T) {
	strategies := NewDefaultStrategies(StrategyDeps{Config: testDeliveryConfig("https://proxy.example/?url=")})
	direct := strategyByName(t, strategies, domain.StrategyDirect)
	proxy := strategyByName(t, strategies, domain.StrategyProxy)
	hostSpecific := strategyByName(t, strategies, domain.StrategyHostSpecific)
	assisted := strategyByName(t, strategies, domain.StrategyAssisted)

	tests := []struct {
		host                                  string
		direct, proxy, hostSpecific, assisted bool
	}{
		{"files.example.com", true, true, false, true},
		{"v16m.tiktokcdn.com", false, true, false, true},
		{"dl.snapcdn.app", false, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			asset := domain.Asset{URL: "https://" + tt.host + "/a.mp4", Host: tt.host}
			assert.Equal(t, tt.direct, direct.Applicable(asset))
			assert.Equal(t, tt.proxy, proxy.Applicable(asset))
			assert.Equal(t, tt.hostSpecific, hostSpecific.Applicable(asset))
			assert.Equal(t, tt.assisted, assisted.Applicable(asset))
		})
	}

	for _, host := range []string{"www.instagram.com", "dl.snapcdn.app"} {
		page := domain.Asset{URL: "https://" + host + "/p/abc/", Host: host, Manual: true}
		assert.False(t, direct.Applicable(page), host)
		assert.False(t, proxy.Applicable(page), host)
		assert.False(t, hostSpecific.Applicable(page), host)
		assert.True(t, assisted.Applicable(page), host)
	}

	noProxy := NewDefaultStrategies(StrategyDeps{Config: testDeliveryConfig("")})
	assert.False(t, strategyByName(t, noProxy, domain.StrategyProxy).Applicable(domain.Asset{Host: "files.example.com"}))
}

func TestDirectStrategy_Success(t *testing.T) {
	var gotOrigin string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrigin = r.Header.Get("Origin")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write([]byte("video-bytes"))
	}))
	defer server.Close()

	saver := newMemorySaver()
	strategies := NewDefaultStrategies(StrategyDeps{Config: testDeliveryConfig(""), Client: server.Client(), Saver: saver})
	direct := strategyByName(t, strategies, domain.StrategyDirect)

	result, err := direct.Attempt(context.Background(), assetFor(t, server.URL+"/a.mp4"), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAutomated, result.Kind)
	assert.Equal(t, "/completed/clip.mp4", result.SavedPath)
	assert.Equal(t, int64(len("video-bytes")), result.Bytes)
	assert.Equal(t, "video-bytes", string(saver.saved["clip.mp4"]))
	assert.Equal(t, "http://localhost:8080", gotOrigin)
}

func TestDirectStrategy_CORSBlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("video-bytes"))
	}))
	defer server.Close()

	saver := newMemorySaver()
	strategies := NewDefaultStrategies(StrategyDeps{Config: testDeliveryConfig(""), Client: server.Client(), Saver: saver})

	_, err := strategyByName(t, strategies, domain.StrategyDirect).
		Attempt(context.Background(), assetFor(t, server.URL+"/a.mp4"), "clip.mp4")
	assert.ErrorIs(t, err, domain.ErrDeliveryBlocked)
	assert.Equal(t, 0, saver.count())
}

func TestDirectStrategy_CORSNotEnforced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("video-bytes"))
	}))
	defer server.Close()

	config := testDeliveryConfig("")
	config.EnforceCORS = false
	saver := newMemorySaver()
	strategies := NewDefaultStrategies(StrategyDeps{Config: config, Client: server.Client(), Saver: saver})

	_, err := strategyByName(t, strategies, domain.StrategyDirect).
		Attempt(context.Background(), assetFor(t, server.URL+"/a.mp4"), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, 1, saver.count())
}

func TestDirectStrategy_FailureModes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  error
	}{
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			target: domain.ErrDeliveryBlocked,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "declared too large",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Content-Length", strconv.Itoa(4096))
				w.WriteHeader(http.StatusOK)
			},
			target: domain.ErrPayloadTooLarge,
		},
		{
			name: "streamed too large",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.(http.Flusher).Flush()
				w.Write(make([]byte, 2048))
			},
			target: domain.ErrPayloadTooLarge,
		},
		{
			name: "truncated body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Content-Length", "100")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("short"))
			},
		},
		{
			name: "html page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Write([]byte("<html><body>log in</body></html>"))
			},
			target: domain.ErrNotMedia,
		},
		{
			name: "undeclared html page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Content-Type", "application/octet-stream")
				w.Write([]byte("<!doctype html><html>instagram login page</html>"))
			},
			target: domain.ErrNotMedia,
		},
		{
			name: "json error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"error":"expired"}`))
			},
			target: domain.ErrNotMedia,
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.WriteHeader(http.StatusOK)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			saver := newMemorySaver()
			strategies := NewDefaultStrategies(StrategyDeps{Config: testDeliveryConfig(""), Client: server.Client(), Saver: saver})

			_, err := strategyByName(t, strategies, domain.StrategyDirect).
				Attempt(context.Background(), assetFor(t, server.URL+"/a.mp4"), "clip.mp4")
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.Equal(t, 0, saver.count(), "nothing is saved on failure")
		})
	}
}

func TestDirectStrategy_SaveError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write([]byte("video-bytes"))
	}))
	defer server.Close()

	saver := newMemorySaver()
	saver.err = errors.New("disk full")
	strategies := NewDefaultStrategies(StrategyDeps{Config: testDeliveryConfig(""), Client: server.Client(), Saver: saver})

	_, err := strategyByName(t, strategies, domain.StrategyDirect).
		Attempt(context.Background(), assetFor(t, server.URL+"/a.mp4"), "clip.mp4")
	assert.ErrorContains(t, err, "disk full")
}

func TestProxyStrategy_Success(t *testing.T) {
	var requested string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Query().Get("url")
		w.Write([]byte("proxied-bytes"))
	}))
	defer proxy.Close()

	saver := newMemorySaver()
	strategies := NewDefaultStrategies(StrategyDeps{
		Config: testDeliveryConfig(proxy.URL + "/raw?url="),
		Client: proxy.Client(),
		Saver:  saver,
	})

	asset := domain.Asset{URL: "https://v16m.tiktokcdn.com/v.mp4?sig=a&b=c", Host: "v16m.tiktokcdn.com"}
	result, err := strategyByName(t, strategies, domain.StrategyProxy).Attempt(context.Background(), asset, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAutomated, result.Kind)
	assert.Equal(t, asset.URL, requested)
	assert.Equal(t, "proxied-bytes", string(saver.saved["clip.mp4"]))
}

func TestProxyStrategy_RejectsPage(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<!doctype html><html>instagram login page</html>"))
	}))
	defer proxy.Close()

	saver := newMemorySaver()
	strategies := NewDefaultStrategies(StrategyDeps{
		Config: testDeliveryConfig(proxy.URL + "/raw?url="),
		Client: proxy.Client(),
		Saver:  saver,
	})

	asset := domain.Asset{URL: "https://www.instagram.com/p/abc/", Host: "www.instagram.com"}
	_, err := strategyByName(t, strategies, domain.StrategyProxy).Attempt(context.Background(), asset, "instagram_x.mp4")
	assert.ErrorIs(t, err, domain.ErrNotMedia)
	assert.Equal(t, 0, saver.count())
}

func TestCheckMediaType(t *testing.T) {
	tests := []struct {
		contentType string
		ok          bool
	}{
		{"", true},
		{"video/mp4", true},
		{"image/jpeg", true},
		{"application/octet-stream", true},
		{"binary/octet-stream", true},
		{"text/plain; charset=utf-8", true},
		{"text/html; charset=utf-8", false},
		{"TEXT/HTML", false},
		{"application/xhtml+xml", false},
		{"application/json", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			err := checkMediaType(tt.contentType)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrNotMedia)
			}
		})
	}
}

func TestProxyURL(t *testing.T) {
	assert.Equal(t,
		"https://api.allorigins.win/raw?url=https%3A%2F%2Fa.com%2Fv.mp4%3Fx%3D1",
		ProxyURL("https://api.allorigins.win/raw?url=", "https://a.com/v.mp4?x=1"))
	assert.Equal(t,
		"https://proxy.local/fetch?target=https%3A%2F%2Fa.com%2Fv.mp4&mode=raw",
		ProxyURL("https://proxy.local/fetch?target={url}&mode=raw", "https://a.com/v.mp4"))
}

func TestHostSpecificStrategy(t *testing.T) {
	opener := &fakeOpener{}
	strategies := NewDefaultStrategies(StrategyDeps{Config: testDeliveryConfig(""), Opener: opener})
	hostSpecific := strategyByName(t, strategies, domain.StrategyHostSpecific)

	asset := domain.Asset{URL: "https://dl.snapcdn.app/get?token=abc", Host: "dl.snapcdn.app"}
	result, err := hostSpecific.Attempt(context.Background(), asset, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAutomated, result.Kind)
	assert.NotEmpty(t, result.Caveat)
	assert.Equal(t, []string{asset.URL}, opener.opened)

	opener.err = errors.New("no browser")
	_, err = hostSpecific.Attempt(context.Background(), asset, "clip.mp4")
	assert.Error(t, err)

	noOpener := NewDefaultStrategies(StrategyDeps{Config: testDeliveryConfig("")})
	_, err = strategyByName(t, noOpener, domain.StrategyHostSpecific).Attempt(context.Background(), asset, "clip.mp4")
	assert.Error(t, err)
}

func TestAssistedStrategy_NeverFails(t *testing.T) {
	opener := &fakeOpener{err: errors.New("no browser")}
	strategies := NewDefaultStrategies(StrategyDeps{Config: testDeliveryConfig(""), Opener: opener})
	assisted := strategyByName(t, strategies, domain.StrategyAssisted)

	asset := domain.Asset{URL: "https://v16m.tiktokcdn.com/v.mp4", Host: "v16m.tiktokcdn.com"}
	result, err := assisted.Attempt(context.Background(), asset, "tiktok_clip_1.mp4")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAssistedManual, result.Kind)
	assert.Contains(t, result.Instructions, "TikTok")
	assert.Contains(t, result.Instructions, "tiktok_clip_1.mp4")
	assert.Contains(t, result.Instructions, asset.URL)
	assert.Equal(t, []string{asset.URL}, opener.opened)
}

func TestTransfer_Progress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	var seen int
	var label string
	strategies := NewDefaultStrategies(StrategyDeps{
		Config: testDeliveryConfig(""),
		Client: server.Client(),
		Saver:  newMemorySaver(),
		Progress: func(total int64, description string) io.Writer {
			label = description
			return writerFunc(func(p []byte) (int, error) {
				seen += len(p)
				return len(p), nil
			})
		},
	})

	_, err := strategyByName(t, strategies, domain.StrategyDirect).
		Attempt(context.Background(), assetFor(t, server.URL+"/a.mp4"), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, 10, seen)
	assert.Equal(t, "clip.mp4", label)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestAllowsOrigin(t *testing.T) {
	header := func(v string) http.Header {
		h := http.Header{}
		if v != "" {
			h.Set("Access-Control-Allow-Origin", v)
		}
		return h
	}
	assert.True(t, allowsOrigin(header("*"), "http://localhost:8080"))
	assert.True(t, allowsOrigin(header("http://localhost:8080/"), "http://localhost:8080"))
	assert.False(t, allowsOrigin(header("https://other.example"), "http://localhost:8080"))
	assert.False(t, allowsOrigin(header(""), "http://localhost:8080"))
}
