package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yourusername/nicedowns-go/internal/domain"
	"go.uber.org/zap"
)

// NexoracleProviderName is the chain name of the legacy keyed downloader API
const NexoracleProviderName = "nexoracle"

var nexoracleEndpoints = map[domain.Platform]string{
	domain.PlatformFacebook:  "/facebook2",
	domain.PlatformTwitter:   "/twitter",
	domain.PlatformInstagram: "/insta",
	domain.PlatformReddit:    "/reddit",
}

// NexoracleProvider talks to the legacy keyed API. Success is status == 200
// with the payload under result.
type NexoracleProvider struct {
	baseURL        string
	apiKey         string
	degradeOnEmpty bool
	client         *apiClient
	logger         *zap.Logger
}

// NewNexoracleProvider creates a new nexoracle provider
func NewNexoracleProvider(config domain.NexoracleConfig, degradeOnEmpty bool, httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *NexoracleProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NexoracleProvider{
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		apiKey:         config.APIKey,
		degradeOnEmpty: degradeOnEmpty,
		client:         newAPIClient(NexoracleProviderName, httpClient, timeout, logger),
		logger:         logger,
	}
}

// Name returns the provider name
func (p *NexoracleProvider) Name() string {
	return NexoracleProviderName
}

// Supports reports whether nexoracle has an endpoint for the platform
func (p *NexoracleProvider) Supports(platform domain.Platform) bool {
	_, ok := nexoracleEndpoints[platform]
	return ok
}

type nexoracleResponse struct {
	Status flexInt         `json:"status"`
	Result json.RawMessage `json:"result"`
}

type nexoracleFacebook struct {
	Title    string     `json:"title"`
	VideoURL string     `json:"videoUrl"`
	Size     flexString `json:"size"`
}

type nexoracleTwitter struct {
	Video     string `json:"video"`
	Caption   string `json:"caption"`
	Thumbnail string `json:"thumbnail"`
	Username  string `json:"username"`
}

type nexoracleReddit struct {
	Title   string     `json:"title"`
	URL     string     `json:"url"`
	Size    flexString `json:"size"`
	Quality string     `json:"quality"`
}

type nexoracleDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type nexoracleMedia struct {
	Type           string               `json:"type"`
	URL            string               `json:"url"`
	Thumbnail      string               `json:"thumbnail"`
	Dimensions     *nexoracleDimensions `json:"dimensions"`
	VideoViewCount *int64               `json:"video_view_count"`
}

type nexoracleInstagram struct {
	PostInfo struct {
		Caption       string `json:"caption"`
		OwnerUsername string `json:"owner_username"`
	} `json:"post_info"`
	MediaDetails []nexoracleMedia `json:"media_details"`
	URLList      []string         `json:"url_list"`
}

// FetchDescriptor queries nexoracle once for the input
func (p *NexoracleProvider) FetchDescriptor(ctx context.Context, platform domain.Platform, rawInput string) (*domain.MediaDescriptor, error) {
	path, ok := nexoracleEndpoints[platform]
	if !ok {
		return nil, domain.NewProviderError(p.Name(), domain.ProviderMalformed, fmt.Errorf("platform %s not served", platform))
	}

	query := url.Values{}
	query.Set("apikey", p.apiKey)
	query.Set("url", rawInput)
	target := p.baseURL + path + "?" + query.Encode()

	var resp nexoracleResponse
	if err := p.client.getJSON(ctx, target, &resp); err != nil {
		return nil, err
	}

	var descriptor *domain.MediaDescriptor
	if resp.Status == 200 && len(resp.Result) > 0 && string(resp.Result) != "null" {
		var err error
		descriptor, err = p.normalize(platform, resp.Result)
		if err != nil {
			return nil, domain.NewProviderError(p.Name(), domain.ProviderMalformed, fmt.Errorf("decode result: %w", err))
		}
	}

	if descriptor == nil || len(descriptor.Assets) == 0 {
		if !p.degradeOnEmpty {
			return nil, emptyResult(p.Name(), "status %d with no media", int64(resp.Status))
		}
		p.logger.Info("Substituting degraded descriptor",
			zap.String("platform", string(platform)),
			zap.Int64("status", int64(resp.Status)))
		return degradedDescriptor(platform, p.Name(), rawInput), nil
	}

	descriptor.Platform = platform
	descriptor.SourceProvider = p.Name()
	return descriptor, nil
}

func (p *NexoracleProvider) normalize(platform domain.Platform, result json.RawMessage) (*domain.MediaDescriptor, error) {
	switch platform {
	case domain.PlatformFacebook:
		var data nexoracleFacebook
		if err := json.Unmarshal(result, &data); err != nil {
			return nil, err
		}
		d := &domain.MediaDescriptor{Title: firstNonEmpty(data.Title, "Facebook video")}
		if data.VideoURL != "" {
			d.Assets = append(d.Assets, domain.AssetVariant{
				MediaType:     domain.MediaVideo,
				URL:           data.VideoURL,
				Quality:       "HD",
				EstimatedSize: string(data.Size),
			})
		}
		return d, nil

	case domain.PlatformTwitter:
		var data nexoracleTwitter
		if err := json.Unmarshal(result, &data); err != nil {
			return nil, err
		}
		d := &domain.MediaDescriptor{
			Title:     firstNonEmpty(data.Caption, "Post with media"),
			Thumbnail: data.Thumbnail,
		}
		if data.Username != "" {
			d.Author = "@" + data.Username
		}
		if data.Video != "" {
			d.Assets = append(d.Assets, domain.AssetVariant{
				MediaType: domain.MediaVideo,
				URL:       data.Video,
				Quality:   "HD",
			})
		}
		return d, nil

	case domain.PlatformReddit:
		var data nexoracleReddit
		if err := json.Unmarshal(result, &data); err != nil {
			return nil, err
		}
		d := &domain.MediaDescriptor{Title: firstNonEmpty(data.Title, "Reddit post")}
		if data.URL != "" {
			d.Assets = append(d.Assets, domain.AssetVariant{
				MediaType:     domain.MediaVideo,
				URL:           data.URL,
				Quality:       firstNonEmpty(data.Quality, "HD"),
				EstimatedSize: string(data.Size),
			})
		}
		return d, nil

	case domain.PlatformInstagram:
		var data nexoracleInstagram
		if err := json.Unmarshal(result, &data); err != nil {
			return nil, err
		}
		return normalizeInstagram(data), nil
	}
	return nil, fmt.Errorf("platform %s not served", platform)
}

// normalizeInstagram pairs url_list entries with media_details by index and
// falls back to the urls inside media_details when url_list is empty.
func normalizeInstagram(data nexoracleInstagram) *domain.MediaDescriptor {
	d := &domain.MediaDescriptor{
		Title: firstNonEmpty(data.PostInfo.Caption, "Instagram post"),
	}
	if data.PostInfo.OwnerUsername != "" {
		d.Author = "@" + data.PostInfo.OwnerUsername
	}
	if len(data.MediaDetails) > 0 {
		d.Thumbnail = data.MediaDetails[0].Thumbnail
		d.ViewCount = data.MediaDetails[0].VideoViewCount
	}

	for i, mediaURL := range data.URLList {
		if mediaURL == "" {
			continue
		}
		var detail nexoracleMedia
		if i < len(data.MediaDetails) {
			detail = data.MediaDetails[i]
		}
		asset := domain.AssetVariant{
			MediaType:     instagramMediaType(detail.Type),
			URL:           mediaURL,
			Quality:       "HD",
			EstimatedSize: estimateSize(detail),
		}
		if detail.Dimensions != nil {
			asset.Quality = fmt.Sprintf("%dx%d HD", detail.Dimensions.Width, detail.Dimensions.Height)
		}
		d.Assets = append(d.Assets, asset)
	}

	if len(d.Assets) == 0 {
		for _, detail := range data.MediaDetails {
			if detail.URL == "" {
				continue
			}
			d.Assets = append(d.Assets, domain.AssetVariant{
				MediaType: instagramMediaType(detail.Type),
				URL:       detail.URL,
				Quality:   "HD",
			})
		}
	}
	return d
}

func instagramMediaType(kind string) domain.MediaType {
	if kind == "video" {
		return domain.MediaVideo
	}
	return domain.MediaImage
}

// estimateSize guesses a display size from pixel dimensions
func estimateSize(detail nexoracleMedia) string {
	if detail.Dimensions == nil {
		return ""
	}
	pixels := float64(detail.Dimensions.Width * detail.Dimensions.Height)
	if detail.Type == "video" {
		mb := math.Round(pixels*0.0001*10) / 10
		return fmt.Sprintf("~%gMB", mb)
	}
	kb := math.Round(pixels * 0.003)
	if kb > 1000 {
		return fmt.Sprintf("~%gMB", math.Round(kb/100)/10)
	}
	return fmt.Sprintf("~%gKB", kb)
}
