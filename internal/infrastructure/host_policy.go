package infrastructure

import (
	"fmt"
	"strings"

	"github.com/yourusername/nicedowns-go/internal/domain"
)

// HostPolicy knows which asset hosts refuse cross-origin reads and which are
// signed-URL proxies that must be opened directly
type HostPolicy struct {
	restricted []string
	signed     []string
}

// NewHostPolicy creates a policy from domain suffix lists
func NewHostPolicy(restricted, signed []string) *HostPolicy {
	return &HostPolicy{
		restricted: normalizeSuffixes(restricted),
		signed:     normalizeSuffixes(signed),
	}
}

func normalizeSuffixes(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func matchesSuffix(host string, suffixes []string) bool {
	host = strings.ToLower(host)
	for _, suffix := range suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// IsRestricted reports whether the host is known to reject cross-origin reads
func (p *HostPolicy) IsRestricted(host string) bool {
	return matchesSuffix(host, p.restricted)
}

// IsSigned reports whether the host serves tokenized URLs that only work when opened directly
func (p *HostPolicy) IsSigned(host string) bool {
	return matchesSuffix(host, p.signed)
}

// Instructions returns manual save steps tailored to the asset host
func (p *HostPolicy) Instructions(asset domain.Asset, filename string) string {
	host := strings.ToLower(asset.Host)
	var steps string
	switch {
	case asset.Manual:
		steps = "No direct file was found, so the post page opened instead. Play the media there and save it from your browser or the app."
	case strings.Contains(host, "tiktokcdn") || strings.Contains(host, "muscdn"):
		steps = "TikTok blocks automatic saving. In the tab that opened, right-click the video and choose \"Save video as...\"."
	case strings.Contains(host, "fbcdn") || strings.Contains(host, "cdninstagram"):
		steps = "In the tab that opened, right-click the media and choose \"Save as...\". If the link expired, submit the post again."
	case strings.Contains(host, "twimg"):
		steps = "In the tab that opened, right-click the media and choose \"Save as...\". For images, open the largest size first."
	case strings.Contains(host, "pinimg"):
		steps = "In the tab that opened, right-click the image and choose \"Save image as...\"."
	default:
		steps = "In the tab that opened, right-click the file and choose \"Save as...\" or press Ctrl+S (Cmd+S on macOS)."
	}
	return fmt.Sprintf("%s Suggested name: %s\nLink: %s", steps, filename, asset.URL)
}
