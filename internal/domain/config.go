package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Providers    ProvidersConfig    `mapstructure:"providers"`
	Delivery     DeliveryConfig     `mapstructure:"delivery"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ProvidersConfig contains upstream provider configuration
type ProvidersConfig struct {
	Timeout        time.Duration       `mapstructure:"timeout"`
	DegradeOnEmpty bool                `mapstructure:"degrade_on_empty"`
	ProbeURL       string              `mapstructure:"probe_url"`
	Chains         map[string][]string `mapstructure:"chains"` // platform -> ordered provider names
	Sparky         SparkyConfig        `mapstructure:"sparky"`
	Nexoracle      NexoracleConfig     `mapstructure:"nexoracle"`
	YouTube        YouTubeConfig       `mapstructure:"youtube"`
}

// SparkyConfig contains the modern downloader API settings
type SparkyConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// NexoracleConfig contains the legacy keyed downloader API settings
type NexoracleConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// YouTubeConfig contains YouTube client settings
type YouTubeConfig struct {
	MaxFormats int `mapstructure:"max_formats"`
}

// DeliveryConfig contains delivery cascade and output configuration
type DeliveryConfig struct {
	BaseDir       string `mapstructure:"base_dir"`
	CompletedDir  string `mapstructure:"completed_dir"`
	IncomingDir   string `mapstructure:"incoming_dir"`
	LogsDir       string `mapstructure:"logs_dir"`
	ProxyEndpoint string `mapstructure:"proxy_endpoint"`
	// ProxyAllowPrivate lets the built-in proxy reach loopback and private networks
	ProxyAllowPrivate bool          `mapstructure:"proxy_allow_private"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxPayloadBytes   int64         `mapstructure:"max_payload_bytes"`
	EnforceCORS       bool          `mapstructure:"enforce_cors"`
	Origin            string        `mapstructure:"origin"`
	RestrictedHosts   []string      `mapstructure:"restricted_hosts"` // hosts refusing cross-origin reads
	SignedHosts       []string      `mapstructure:"signed_hosts"`     // tokenized proxy hosts
	OpenInBrowser     bool          `mapstructure:"open_in_browser"`
}

// CacheConfig contains descriptor cache configuration
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// StorageConfig contains history database configuration
type StorageConfig struct {
	DatabasePath          string `mapstructure:"database_path"`
	RestoreLastSubmission bool   `mapstructure:"restore_last_submission"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send, etc.
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultChains returns the provider order per platform
func DefaultChains() map[string][]string {
	return map[string][]string{
		string(PlatformTikTok):         {"sparky"},
		string(PlatformFacebook):       {"sparky", "nexoracle"},
		string(PlatformTwitter):        {"sparky", "nexoracle"},
		string(PlatformInstagram):      {"nexoracle"},
		string(PlatformReddit):         {"nexoracle"},
		string(PlatformYouTube):        {"youtube"},
		string(PlatformInstagramStory): {"sparky"},
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Providers: ProvidersConfig{
			Timeout:        30 * time.Second,
			DegradeOnEmpty: true,
			ProbeURL:       "https://vt.tiktok.com/ZSNvs6h6o",
			Chains:         DefaultChains(),
			Sparky: SparkyConfig{
				BaseURL: "https://api-aswin-sparky.koyeb.app/api/downloader",
			},
			Nexoracle: NexoracleConfig{
				BaseURL: "https://api.nexoracle.com/downloader",
				APIKey:  "",
			},
			YouTube: YouTubeConfig{
				MaxFormats: 4,
			},
		},
		Delivery: DeliveryConfig{
			BaseDir:         "$HOME/Downloads/nicedowns",
			CompletedDir:    "$HOME/Downloads/nicedowns/completed",
			IncomingDir:     "$HOME/Downloads/nicedowns/incoming",
			LogsDir:         "$HOME/Downloads/nicedowns/logs",
			ProxyEndpoint:   "https://api.allorigins.win/raw?url=",
			Timeout:         2 * time.Minute,
			MaxPayloadBytes: 500 * 1024 * 1024,
			EnforceCORS:     true,
			Origin:          "http://localhost:8080",
			RestrictedHosts: []string{
				"tiktokcdn.com",
				"muscdn.com",
				"cdninstagram.com",
				"fbcdn.net",
				"pbs.twimg.com",
				"video.twimg.com",
				"pinimg.com",
			},
			SignedHosts:   []string{"snapcdn.app"},
			OpenInBrowser: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "$HOME/Downloads/nicedowns/config/cache.db",
			TTL:     10 * time.Minute,
		},
		Storage: StorageConfig{
			DatabasePath:          "$HOME/Downloads/nicedowns/config/history.db",
			RestoreLastSubmission: true,
		},
		Notification: NotificationConfig{
			Enabled: true,
			Sound:   false,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
