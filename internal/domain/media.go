package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MediaType represents the kind of binary payload an asset points at
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaImage MediaType = "image"
)

// AssetVariant is one downloadable payload of a descriptor
type AssetVariant struct {
	ID        string    `json:"id,omitempty"`
	MediaType MediaType `json:"media_type"`
	URL       string    `json:"url"`
	Quality   string    `json:"quality"`
	// EstimatedSize is informational only
	EstimatedSize string `json:"estimated_size,omitempty"`
	// Manual marks a page link rather than a payload; it can only be saved by hand
	Manual bool `json:"manual,omitempty"`
}

// Extension returns the file extension used when saving this asset
func (a AssetVariant) Extension() string {
	switch a.MediaType {
	case MediaAudio:
		return "mp3"
	case MediaImage:
		return "jpeg"
	default:
		return "mp4"
	}
}

// MediaDescriptor is the normalized result of a provider lookup
type MediaDescriptor struct {
	Platform        Platform       `json:"platform"`
	Title           string         `json:"title"`
	Thumbnail       string         `json:"thumbnail,omitempty"`
	Author          string         `json:"author,omitempty"`
	DurationSeconds *int           `json:"duration_seconds,omitempty"`
	ViewCount       *int64         `json:"view_count,omitempty"`
	Assets          []AssetVariant `json:"assets"`
	Degraded        bool           `json:"degraded"`
	Caveat          string         `json:"caveat,omitempty"`
	SourceProvider  string         `json:"source_provider"`
}

// Validate checks that the descriptor is resolved
func (d *MediaDescriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("descriptor is nil")
	}
	if len(d.Assets) == 0 {
		return fmt.Errorf("descriptor has no assets")
	}
	for i, asset := range d.Assets {
		if strings.TrimSpace(asset.URL) == "" {
			return fmt.Errorf("asset %d has empty url", i)
		}
	}
	return nil
}

// FindAsset returns the asset with the given id
func (d *MediaDescriptor) FindAsset(id string) (AssetVariant, bool) {
	if d == nil {
		return AssetVariant{}, false
	}
	for _, asset := range d.Assets {
		if asset.ID == id {
			return asset, true
		}
	}
	return AssetVariant{}, false
}

// Resolution is a descriptor plus its provenance
type Resolution struct {
	Descriptor *MediaDescriptor `json:"descriptor"`
	Platform   Platform         `json:"platform"`
	Provider   string           `json:"provider"`
	Degraded   bool             `json:"degraded"`
	// Attempts lists the providers tried before the winning one, in order
	Attempts []string `json:"attempts,omitempty"`
}

var (
	nonWordPattern    = regexp.MustCompile(`[^\w\s-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// GenerateFilename builds platform_cleanTitle_timestamp.ext
func GenerateFilename(platform Platform, title string, asset AssetVariant, at time.Time) string {
	clean := nonWordPattern.ReplaceAllString(title, "")
	clean = whitespacePattern.ReplaceAllString(strings.TrimSpace(clean), "_")
	if len(clean) > 50 {
		clean = clean[:50]
	}
	if clean == "" {
		clean = "media"
	}
	return fmt.Sprintf("%s_%s_%d.%s", platform, clean, at.UnixMilli(), asset.Extension())
}

// trackingParams are removed from submitted URLs
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid", "ref", "source", "campaign",
}

// CleanURL strips tracking parameters. Non-URL input is returned as is.
func CleanURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	query := u.Query()
	changed := false
	for _, param := range trackingParams {
		if query.Has(param) {
			query.Del(param)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// FormatDuration renders seconds as m:ss or h:mm:ss
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// FormatBytes renders a byte count using 1024 based units
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	formatted := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", value), "0"), ".")
	return formatted + " " + units[i]
}

// ParseDuration accepts plain seconds ("15") or clock notation ("1:05", "1:02:03")
func ParseDuration(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
