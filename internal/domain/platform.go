package domain

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Platform identifies the social platform an input belongs to
type Platform string

const (
	PlatformNone           Platform = ""
	PlatformTikTok         Platform = "tiktok"
	PlatformFacebook       Platform = "facebook"
	PlatformTwitter        Platform = "twitter"   // X/Twitter
	PlatformInstagram      Platform = "instagram" // Posts and reels
	PlatformInstagramStory Platform = "instagram_story"
	PlatformReddit         Platform = "reddit"
	PlatformYouTube        Platform = "youtube"
	PlatformPinterest      Platform = "pinterest"
)

// hostTable maps normalized hosts to platforms. Subdomains are matched by suffix.
var hostTable = map[string]Platform{
	"tiktok.com":    PlatformTikTok,
	"vm.tiktok.com": PlatformTikTok,
	"vt.tiktok.com": PlatformTikTok,
	"facebook.com":  PlatformFacebook,
	"fb.com":        PlatformFacebook,
	"fb.watch":      PlatformFacebook,
	"twitter.com":   PlatformTwitter,
	"x.com":         PlatformTwitter,
	"t.co":          PlatformTwitter,
	"instagram.com": PlatformInstagram,
	"instagr.am":    PlatformInstagram,
	"reddit.com":    PlatformReddit,
	"redd.it":       PlatformReddit,
	"youtube.com":   PlatformYouTube,
	"youtu.be":      PlatformYouTube,
	"pinterest.com": PlatformPinterest,
	"pin.it":        PlatformPinterest,
}

var displayNames = map[Platform]string{
	PlatformTikTok:         "TikTok",
	PlatformFacebook:       "Facebook",
	PlatformTwitter:        "X (Twitter)",
	PlatformInstagram:      "Instagram",
	PlatformInstagramStory: "Instagram Stories",
	PlatformReddit:         "Reddit",
	PlatformYouTube:        "YouTube",
	PlatformPinterest:      "Pinterest",
}

// hostPrefixes are stripped before the host table lookup
var hostPrefixes = []string{"www.", "m.", "mobile.", "web."}

var profileLookupPattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)

// String returns the platform identifier
func (p Platform) String() string {
	return string(p)
}

// DisplayName returns a human readable platform name
func (p Platform) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return string(p)
}

// IsKnown reports whether p is one of the platforms the classifier can produce
func (p Platform) IsKnown() bool {
	_, ok := displayNames[p]
	return ok
}

// Classify maps an arbitrary input string to a platform.
// It returns PlatformNone for anything it does not recognize and never panics.
func Classify(input string) Platform {
	s := strings.TrimSpace(input)
	if s == "" {
		return PlatformNone
	}

	if u, ok := ParseInputURL(s); ok {
		return ClassifyHost(u.Hostname())
	}

	if IsProfileLookup(s) {
		return PlatformInstagramStory
	}

	return PlatformNone
}

// ClassifyHost matches a host name against the host table, exact match first
// and then by suffix for arbitrary subdomains.
func ClassifyHost(host string) Platform {
	host = NormalizeHost(host)
	if host == "" {
		return PlatformNone
	}

	if platform, ok := hostTable[host]; ok {
		return platform
	}

	// Longest domain first so vt.tiktok.com wins over tiktok.com
	domains := make([]string, 0, len(hostTable))
	for domain := range hostTable {
		domains = append(domains, domain)
	}
	sort.Slice(domains, func(i, j int) bool {
		if len(domains[i]) != len(domains[j]) {
			return len(domains[i]) > len(domains[j])
		}
		return domains[i] < domains[j]
	})
	for _, domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return hostTable[domain]
		}
	}

	return PlatformNone
}

// NormalizeHost lowercases a host and strips www./mobile subdomain prefixes
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	for {
		stripped := false
		for _, prefix := range hostPrefixes {
			if strings.HasPrefix(host, prefix) && len(host) > len(prefix) {
				host = host[len(prefix):]
				stripped = true
			}
		}
		if !stripped {
			return host
		}
	}
}

// ParseInputURL parses s as an http(s) URL. Inputs without a scheme are
// accepted when they start with a host from the host table (e.g. "x.com/user/status/1").
func ParseInputURL(s string) (*url.URL, bool) {
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return nil, false
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, false
		}
		if u.Hostname() == "" {
			return nil, false
		}
		return u, true
	}

	if strings.ContainsAny(s, " \t\n") {
		return nil, false
	}

	host := s
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if ClassifyHost(host) == PlatformNone {
		return nil, false
	}

	u, err := url.Parse("https://" + s)
	if err != nil || u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

// LooksLikeURL reports whether the input is shaped like a web address, regardless
// of whether its host is supported.
func LooksLikeURL(input string) bool {
	s := strings.TrimSpace(input)
	if _, ok := ParseInputURL(s); ok {
		return true
	}
	if strings.Contains(s, "://") {
		return false
	}
	if strings.ContainsAny(s, " \t\n") {
		return false
	}
	host := s
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	// A slash after a dotted host, e.g. "example.com/video"
	return strings.Contains(host, ".") && strings.Contains(s, "/")
}

// IsProfileLookup reports whether the input is a bare username for the story lookup.
// Inputs carrying scheme markers or naming a known host are never usernames.
func IsProfileLookup(input string) bool {
	s := strings.TrimSpace(input)
	if !profileLookupPattern.MatchString(s) {
		return false
	}
	// The pattern already excludes ':' and '/', so no scheme marker can get here
	if strings.Contains(s, "..") {
		return false
	}
	return ClassifyHost(s) == PlatformNone
}

// SupportedPlatforms returns every platform the classifier knows, sorted by id
func SupportedPlatforms() []Platform {
	platforms := make([]Platform, 0, len(displayNames))
	for p := range displayNames {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

// ValidatePlatform checks if a platform is valid
func ValidatePlatform(platform Platform) bool {
	return platform.IsKnown()
}
