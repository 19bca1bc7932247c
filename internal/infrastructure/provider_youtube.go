package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/yourusername/nicedowns-go/internal/domain"
	"go.uber.org/zap"
)

// YouTubeProviderName is the chain name of the YouTube client
const YouTubeProviderName = "youtube"

// videoClient is the subset of youtube.Client the provider uses
type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

// YouTubeProvider resolves YouTube links through the innertube client
type YouTubeProvider struct {
	client     videoClient
	timeout    time.Duration
	maxFormats int
	logger     *zap.Logger
}

// NewYouTubeProvider creates a new YouTube provider
func NewYouTubeProvider(config domain.YouTubeConfig, httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *YouTubeProvider {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return newYouTubeProvider(&youtube.Client{HTTPClient: httpClient}, config.MaxFormats, timeout, logger)
}

func newYouTubeProvider(client videoClient, maxFormats int, timeout time.Duration, logger *zap.Logger) *YouTubeProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxFormats <= 0 {
		maxFormats = 4
	}
	return &YouTubeProvider{
		client:     client,
		timeout:    timeout,
		maxFormats: maxFormats,
		logger:     logger.With(zap.String("provider", YouTubeProviderName)),
	}
}

// Name returns the provider name
func (p *YouTubeProvider) Name() string {
	return YouTubeProviderName
}

// Supports reports whether the platform is YouTube
func (p *YouTubeProvider) Supports(platform domain.Platform) bool {
	return platform == domain.PlatformYouTube
}

// FetchDescriptor looks the video up and lists muxed video formats followed by
// the best audio-only format
func (p *YouTubeProvider) FetchDescriptor(ctx context.Context, platform domain.Platform, rawInput string) (*domain.MediaDescriptor, error) {
	if !p.Supports(platform) {
		return nil, domain.NewProviderError(p.Name(), domain.ProviderMalformed, fmt.Errorf("platform %s not served", platform))
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	video, err := p.client.GetVideoContext(ctx, rawInput)
	if err != nil {
		return nil, p.classify(err)
	}

	descriptor := &domain.MediaDescriptor{
		Platform:       domain.PlatformYouTube,
		Title:          firstNonEmpty(video.Title, "YouTube video"),
		Author:         video.Author,
		SourceProvider: p.Name(),
	}
	if seconds := int(video.Duration.Seconds()); seconds > 0 {
		descriptor.DurationSeconds = &seconds
	}
	if video.Views > 0 {
		views := int64(video.Views)
		descriptor.ViewCount = &views
	}
	if len(video.Thumbnails) > 0 {
		descriptor.Thumbnail = video.Thumbnails[len(video.Thumbnails)-1].URL
	}

	for _, format := range p.selectFormats(video.Formats) {
		format := format
		streamURL, err := p.client.GetStreamURLContext(ctx, video, &format)
		if err != nil {
			p.logger.Debug("Skipping format without stream url",
				zap.Int("itag", format.ItagNo),
				zap.Error(err))
			continue
		}
		descriptor.Assets = append(descriptor.Assets, formatAsset(format, streamURL))
	}

	if len(descriptor.Assets) == 0 {
		return nil, emptyResult(p.Name(), "no downloadable formats for %s", video.ID)
	}
	return descriptor, nil
}

// selectFormats keeps muxed video formats (the list is ordered best first)
// up to maxFormats-1, then the highest bitrate audio-only format
func (p *YouTubeProvider) selectFormats(formats youtube.FormatList) []youtube.Format {
	selected := make([]youtube.Format, 0, p.maxFormats)
	for _, format := range formats.WithAudioChannels() {
		if !strings.HasPrefix(format.MimeType, "video/") {
			continue
		}
		if len(selected) >= p.maxFormats-1 {
			break
		}
		selected = append(selected, format)
	}

	var bestAudio *youtube.Format
	for i := range formats {
		format := formats[i]
		if !strings.HasPrefix(format.MimeType, "audio/") {
			continue
		}
		if bestAudio == nil || format.Bitrate > bestAudio.Bitrate {
			bestAudio = &format
		}
	}
	if bestAudio != nil {
		selected = append(selected, *bestAudio)
	}
	return selected
}

func formatAsset(format youtube.Format, streamURL string) domain.AssetVariant {
	asset := domain.AssetVariant{
		MediaType: domain.MediaVideo,
		URL:       streamURL,
		Quality:   firstNonEmpty(format.QualityLabel, format.Quality),
	}
	if strings.HasPrefix(format.MimeType, "audio/") {
		asset.MediaType = domain.MediaAudio
		asset.Quality = "Audio"
	}
	if format.ContentLength > 0 {
		asset.EstimatedSize = domain.FormatBytes(format.ContentLength)
	}
	return asset
}

// classify maps client errors to provider error kinds
func (p *YouTubeProvider) classify(err error) error {
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.As(err, &netErr), errors.As(err, &urlErr):
		return domain.NewProviderError(p.Name(), domain.ProviderUnreachable, err)
	case errors.Is(err, youtube.ErrVideoPrivate), errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return domain.NewProviderError(p.Name(), domain.ProviderEmptyResult, err)
	default:
		return domain.NewProviderError(p.Name(), domain.ProviderMalformed, err)
	}
}
