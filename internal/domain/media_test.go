package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFilename(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	tests := []struct {
		name     string
		platform Platform
		title    string
		asset    AssetVariant
		expected string
	}{
		{
			name:     "video",
			platform: PlatformTikTok,
			title:    "example video",
			asset:    AssetVariant{MediaType: MediaVideo},
			expected: "tiktok_example_video_1700000000123.mp4",
		},
		{
			name:     "audio strips punctuation",
			platform: PlatformTikTok,
			title:    "Hello, World! #fyp",
			asset:    AssetVariant{MediaType: MediaAudio},
			expected: "tiktok_Hello_World_fyp_1700000000123.mp3",
		},
		{
			name:     "image uses jpeg",
			platform: PlatformInstagramStory,
			title:    "Stories de @sparky.drip",
			asset:    AssetVariant{MediaType: MediaImage},
			expected: "instagram_story_Stories_de_sparkydrip_1700000000123.jpeg",
		},
		{
			name:     "empty title",
			platform: PlatformReddit,
			title:    "!!!",
			asset:    AssetVariant{MediaType: MediaVideo},
			expected: "reddit_media_1700000000123.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GenerateFilename(tt.platform, tt.title, tt.asset, at))
		})
	}
}

func TestGenerateFilenameTruncatesTitle(t *testing.T) {
	name := GenerateFilename(PlatformYouTube, strings.Repeat("a", 80), AssetVariant{}, time.UnixMilli(1))
	assert.Equal(t, "youtube_"+strings.Repeat("a", 50)+"_1.mp4", name)
}

func TestCleanURL(t *testing.T) {
	assert.Equal(t,
		"https://www.tiktok.com/@u/video/1?lang=en",
		CleanURL("https://www.tiktok.com/@u/video/1?lang=en&utm_source=copy&fbclid=abc"))
	assert.Equal(t, "https://x.com/u/status/1", CleanURL("https://x.com/u/status/1"))
	assert.Equal(t, "sparky.drip", CleanURL("sparky.drip"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", FormatDuration(0))
	assert.Equal(t, "0:15", FormatDuration(15))
	assert.Equal(t, "2:30", FormatDuration(150))
	assert.Equal(t, "1:05:30", FormatDuration(3930))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"15", 15, true},
		{"0:15", 15, true},
		{"1:02:03", 3723, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1:2:3:4", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseDuration(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "500 MB", FormatBytes(500*1024*1024))
}

func TestDescriptorValidate(t *testing.T) {
	var nilDescriptor *MediaDescriptor
	assert.Error(t, nilDescriptor.Validate())
	assert.Error(t, (&MediaDescriptor{}).Validate())
	assert.Error(t, (&MediaDescriptor{Assets: []AssetVariant{{URL: " "}}}).Validate())
	assert.NoError(t, (&MediaDescriptor{Assets: []AssetVariant{{URL: "https://cdn.example.com/a.mp4"}}}).Validate())
}

func TestSubmissionLifecycle(t *testing.T) {
	sub := NewSubmission("https://vt.tiktok.com/ZSNvs6h6o")
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, SubmissionPending, sub.Status)
	assert.False(t, sub.IsTerminal())

	res := &Resolution{
		Platform: PlatformTikTok,
		Provider: "sparky",
		Descriptor: &MediaDescriptor{
			Platform: PlatformTikTok,
			Assets: []AssetVariant{
				{MediaType: MediaVideo, URL: "https://cdn.example.com/v.mp4"},
				{MediaType: MediaAudio, URL: "https://cdn.example.com/a.mp3"},
			},
		},
	}
	sub.MarkResolved(res)

	assert.True(t, sub.IsResolved())
	require.NotNil(t, sub.ResolvedAt)
	ids := map[string]bool{}
	for _, asset := range sub.Descriptor.Assets {
		assert.NotEmpty(t, asset.ID)
		ids[asset.ID] = true
		found, ok := sub.Descriptor.FindAsset(asset.ID)
		assert.True(t, ok)
		assert.Equal(t, asset.URL, found.URL)
	}
	assert.Len(t, ids, 2)

	_, ok := sub.Descriptor.FindAsset("missing")
	assert.False(t, ok)
}

func TestSubmissionMarkFailed(t *testing.T) {
	sub := NewSubmission("https://x.com/u/status/1")
	sub.MarkFailed(fmt.Errorf("resolve: %w", ErrAllProvidersFailed))

	assert.Equal(t, SubmissionFailed, sub.Status)
	assert.Equal(t, KindAllProvidersFailed, sub.ErrorKind)
	assert.True(t, sub.Retryable)
	assert.NotEmpty(t, sub.UserMessage)
	assert.NotNil(t, sub.FailedAt)
	assert.True(t, sub.IsTerminal())
}

func TestUserMessage(t *testing.T) {
	unsupported := &UnsupportedPlatformError{
		Platform:  PlatformPinterest,
		Supported: []Platform{PlatformTikTok, PlatformYouTube},
	}

	assert.True(t, errors.Is(unsupported, ErrUnsupportedPlatform))
	assert.Contains(t, UserMessage(unsupported), "TikTok, YouTube")
	assert.NotContains(t, UserMessage(unsupported), "Pinterest")
	assert.Contains(t, UserMessage(ErrInvalidInput), "sparky.drip")
	assert.Equal(t, "", UserMessage(nil))
	assert.False(t, IsRetryable(ErrInvalidInput))
	assert.True(t, IsRetryable(fmt.Errorf("x: %w", ErrAllProvidersFailed)))
	assert.Equal(t, KindUnsupportedPlatform, KindOf(unsupported))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestProviderError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("wrapped: %w", NewProviderError("sparky", ProviderUnreachable, cause))

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ProviderUnreachable, perr.Kind)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "sparky: unreachable: connection refused", perr.Error())
}

func TestDeliveryAttemptFinish(t *testing.T) {
	attempt := NewDeliveryAttempt("sub", AssetVariant{ID: "a1", URL: "https://cdn.example.com/v.mp4"}, "v.mp4")
	attempt.Record(StrategyDirect, OutcomeBlocked, "cors", time.Millisecond)
	attempt.Record(StrategyProxy, OutcomeSuccess, "", time.Millisecond)
	attempt.Finish(&DeliveryOutcome{Kind: OutcomeAutomated, Strategy: StrategyProxy}, nil)

	assert.Equal(t, DeliveryAutomated, attempt.State)
	assert.Len(t, attempt.Strategies, 2)
	assert.NotNil(t, attempt.FinishedAt)

	failed := NewDeliveryAttempt("sub", AssetVariant{ID: "a2", URL: "::"}, "x")
	failed.Finish(nil, ErrDeliveryFailed)
	assert.Equal(t, DeliveryFailed, failed.State)
	assert.Equal(t, ErrDeliveryFailed.Error(), failed.ErrorMessage)
}
