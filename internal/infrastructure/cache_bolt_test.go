package infrastructure

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/nicedowns-go/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) (*BoltDescriptorCache, *time.Time) {
	t.Helper()
	cache, err := NewBoltDescriptorCache(filepath.Join(t.TempDir(), "config", "cache.db"), ttl, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	return cache, &now
}

func testResolution(title string) *domain.Resolution {
	return &domain.Resolution{
		Platform: domain.PlatformTikTok,
		Provider: "sparky",
		Descriptor: &domain.MediaDescriptor{
			Platform:       domain.PlatformTikTok,
			Title:          title,
			SourceProvider: "sparky",
			Assets: []domain.AssetVariant{
				{MediaType: domain.MediaVideo, URL: "https://v16m.tiktokcdn.com/a.mp4", Quality: "HD"},
			},
		},
	}
}

func TestBoltCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(t, 10*time.Minute)

	_, ok := cache.Get("https://www.tiktok.com/@a/video/1")
	assert.False(t, ok)

	require.NoError(t, cache.Put("https://www.tiktok.com/@a/video/1", testResolution("example video")))

	got, ok := cache.Get("https://www.tiktok.com/@a/video/1")
	require.True(t, ok)
	assert.Equal(t, "example video", got.Descriptor.Title)
	assert.Equal(t, "sparky", got.Provider)
}

func TestBoltCache_Expiry(t *testing.T) {
	cache, now := newTestCache(t, 10*time.Minute)

	require.NoError(t, cache.Put("key", testResolution("clip")))

	*now = now.Add(9 * time.Minute)
	_, ok := cache.Get("key")
	assert.True(t, ok)

	*now = now.Add(2 * time.Minute)
	_, ok = cache.Get("key")
	assert.False(t, ok)

	removed, err := cache.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestBoltCache_SkipsDegraded(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	res := testResolution("degraded")
	res.Degraded = true
	require.NoError(t, cache.Put("key", res))

	_, ok := cache.Get("key")
	assert.False(t, ok)
}

func TestBoltCache_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	cache, err := NewBoltDescriptorCache(path, time.Hour, nil)
	require.NoError(t, err)
	require.NoError(t, cache.Put("key", testResolution("kept")))
	require.NoError(t, cache.Close())

	reopened, err := NewBoltDescriptorCache(path, time.Hour, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get("key")
	require.True(t, ok)
	assert.Equal(t, "kept", got.Descriptor.Title)
}
