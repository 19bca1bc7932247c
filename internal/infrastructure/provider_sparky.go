package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yourusername/nicedowns-go/internal/domain"
	"go.uber.org/zap"
)

// SparkyProviderName is the chain name of the modern downloader API
const SparkyProviderName = "sparky"

// sparkyEndpoints maps platforms to path and query parameter
var sparkyEndpoints = map[domain.Platform]struct {
	path  string
	param string
}{
	domain.PlatformTikTok:         {"/tiktok", "url"},
	domain.PlatformFacebook:       {"/fbdl", "url"},
	domain.PlatformTwitter:        {"/twiter", "url"},
	domain.PlatformInstagramStory: {"/story", "search"},
}

// SparkyProvider talks to the modern downloader API. Responses carry a truthy
// status and the payload either nested under data or at the top level.
type SparkyProvider struct {
	baseURL  string
	probeURL string
	client   *apiClient
}

// NewSparkyProvider creates a new sparky provider
func NewSparkyProvider(config domain.SparkyConfig, probeURL string, httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *SparkyProvider {
	return &SparkyProvider{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		probeURL: probeURL,
		client:   newAPIClient(SparkyProviderName, httpClient, timeout, logger),
	}
}

// Name returns the provider name
func (p *SparkyProvider) Name() string {
	return SparkyProviderName
}

// Supports reports whether sparky has an endpoint for the platform
func (p *SparkyProvider) Supports(platform domain.Platform) bool {
	_, ok := sparkyEndpoints[platform]
	return ok
}

type sparkyAuthor struct {
	Nickname string `json:"nickname"`
	UniqueID string `json:"unique_id"`
	Name     string `json:"-"`
}

func (a *sparkyAuthor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Name = s
		return nil
	}
	type plain sparkyAuthor
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	*a = sparkyAuthor(obj)
	if a.Nickname != "" {
		a.Name = a.Nickname
	} else {
		a.Name = a.UniqueID
	}
	return nil
}

type sparkyStory struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

type sparkyPayload struct {
	Title     string        `json:"title"`
	Desc      string        `json:"desc"`
	Text      string        `json:"text"`
	Cover     string        `json:"cover"`
	Thumbnail string        `json:"thumbnail"`
	Video     string        `json:"video"`
	Music     string        `json:"music"`
	HD        string        `json:"hd"`
	SD        string        `json:"sd"`
	Size      flexString    `json:"size"`
	Images    []string      `json:"images"`
	Author    sparkyAuthor  `json:"author"`
	Duration  flexString    `json:"duration"`
	Stories   []sparkyStory `json:"stories"`
}

type sparkyResponse struct {
	Status flexBool        `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// FetchDescriptor queries sparky once for the input
func (p *SparkyProvider) FetchDescriptor(ctx context.Context, platform domain.Platform, rawInput string) (*domain.MediaDescriptor, error) {
	endpoint, ok := sparkyEndpoints[platform]
	if !ok {
		return nil, domain.NewProviderError(p.Name(), domain.ProviderMalformed, fmt.Errorf("platform %s not served", platform))
	}

	target := fmt.Sprintf("%s%s?%s=%s", p.baseURL, endpoint.path, endpoint.param, url.QueryEscape(rawInput))

	var raw json.RawMessage
	if err := p.client.getJSON(ctx, target, &raw); err != nil {
		return nil, err
	}

	var resp sparkyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.NewProviderError(p.Name(), domain.ProviderMalformed, err)
	}
	if !resp.Status {
		return nil, emptyResult(p.Name(), "status is false")
	}

	// Payload lives under data when present, otherwise at the top level
	payloadJSON := raw
	if len(resp.Data) > 0 && string(resp.Data) != "null" {
		payloadJSON = resp.Data
	}
	var payload sparkyPayload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, domain.NewProviderError(p.Name(), domain.ProviderMalformed, fmt.Errorf("decode data: %w", err))
	}

	var descriptor *domain.MediaDescriptor
	switch platform {
	case domain.PlatformTikTok:
		descriptor = p.normalizeTikTok(payload)
	case domain.PlatformFacebook:
		descriptor = p.normalizeFacebook(payload)
	case domain.PlatformTwitter:
		descriptor = p.normalizeTwitter(payload)
	case domain.PlatformInstagramStory:
		descriptor = p.normalizeStories(rawInput, payload)
	}

	if len(descriptor.Assets) == 0 {
		return nil, emptyResult(p.Name(), "no media in response")
	}
	descriptor.Platform = platform
	descriptor.SourceProvider = p.Name()
	return descriptor, nil
}

func (p *SparkyProvider) normalizeTikTok(data sparkyPayload) *domain.MediaDescriptor {
	d := &domain.MediaDescriptor{
		Title:           firstNonEmpty(data.Title, data.Desc, "TikTok video"),
		Thumbnail:       firstNonEmpty(data.Cover, data.Thumbnail),
		Author:          data.Author.Name,
		DurationSeconds: durationSeconds(data.Duration),
	}
	if data.Video != "" {
		d.Assets = append(d.Assets, domain.AssetVariant{
			MediaType:     domain.MediaVideo,
			URL:           data.Video,
			Quality:       "HD",
			EstimatedSize: string(data.Size),
		})
	}
	if data.Music != "" {
		d.Assets = append(d.Assets, domain.AssetVariant{
			MediaType: domain.MediaAudio,
			URL:       data.Music,
			Quality:   "Audio",
		})
	}
	return d
}

func (p *SparkyProvider) normalizeFacebook(data sparkyPayload) *domain.MediaDescriptor {
	d := &domain.MediaDescriptor{
		Title:           firstNonEmpty(data.Title, "Facebook video"),
		Thumbnail:       data.Thumbnail,
		Author:          data.Author.Name,
		DurationSeconds: durationSeconds(data.Duration),
	}
	variants := []struct {
		url     string
		quality string
	}{
		{data.HD, "HD"},
		{data.SD, "SD"},
		{data.Video, "Standard"},
	}
	for _, v := range variants {
		if v.url == "" {
			continue
		}
		d.Assets = append(d.Assets, domain.AssetVariant{
			MediaType: domain.MediaVideo,
			URL:       v.url,
			Quality:   v.quality,
		})
	}
	return d
}

func (p *SparkyProvider) normalizeTwitter(data sparkyPayload) *domain.MediaDescriptor {
	d := &domain.MediaDescriptor{
		Title:           firstNonEmpty(data.Title, data.Text, "Post with media"),
		Thumbnail:       data.Thumbnail,
		Author:          data.Author.Name,
		DurationSeconds: durationSeconds(data.Duration),
	}
	if data.Video != "" {
		d.Assets = append(d.Assets, domain.AssetVariant{
			MediaType:     domain.MediaVideo,
			URL:           data.Video,
			Quality:       "HD",
			EstimatedSize: string(data.Size),
		})
	}
	for i, image := range data.Images {
		if image == "" {
			continue
		}
		d.Assets = append(d.Assets, domain.AssetVariant{
			MediaType: domain.MediaImage,
			URL:       image,
			Quality:   fmt.Sprintf("Image %d", i+1),
		})
	}
	return d
}

func (p *SparkyProvider) normalizeStories(username string, data sparkyPayload) *domain.MediaDescriptor {
	d := &domain.MediaDescriptor{
		Title:  fmt.Sprintf("Stories of @%s", username),
		Author: "@" + username,
	}
	for i, story := range data.Stories {
		if story.URL == "" {
			continue
		}
		mediaType := domain.MediaImage
		if story.Type == "video" {
			mediaType = domain.MediaVideo
		}
		if d.Thumbnail == "" {
			d.Thumbnail = story.Thumbnail
		}
		d.Assets = append(d.Assets, domain.AssetVariant{
			MediaType: mediaType,
			URL:       story.URL,
			Quality:   fmt.Sprintf("Story %d", i+1),
		})
	}
	return d
}

// Probe checks connectivity with a known public TikTok link
func (p *SparkyProvider) Probe(ctx context.Context) domain.ProviderStatus {
	start := time.Now()
	target := fmt.Sprintf("%s/tiktok?url=%s", p.baseURL, url.QueryEscape(p.probeURL))
	var raw json.RawMessage
	err := p.client.getJSON(ctx, target, &raw)
	status := domain.ProviderStatus{
		Provider:  p.Name(),
		Reachable: err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
