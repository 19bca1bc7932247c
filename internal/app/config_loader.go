package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/yourusername/nicedowns-go/internal/domain"
)

// envKeys are bound explicitly so NICEDOWNS_* variables work without a config file
var envKeys = []string{
	"server.host",
	"server.port",
	"providers.timeout",
	"providers.degrade_on_empty",
	"providers.sparky.base_url",
	"providers.nexoracle.base_url",
	"providers.nexoracle.api_key",
	"delivery.base_dir",
	"delivery.proxy_endpoint",
	"delivery.proxy_allow_private",
	"delivery.timeout",
	"delivery.max_payload_bytes",
	"delivery.enforce_cors",
	"delivery.open_in_browser",
	"cache.enabled",
	"cache.ttl",
	"storage.database_path",
	"notification.enabled",
	"notification.method",
	"logging.level",
	"logging.format",
	"logging.output_path",
}

// LoadConfig loads configuration from file and environment. An empty
// configPath searches ./configs, $HOME/.nicedowns and /etc/nicedowns.
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.nicedowns")
		v.AddConfigPath("/etc/nicedowns")
	}

	v.SetEnvPrefix("NICEDOWNS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// expandPaths expands environment variables in paths and fills output
// directories that were left empty from the base directory
func expandPaths(config *domain.Config) *domain.Config {
	d := &config.Delivery
	d.BaseDir = expandPath(d.BaseDir)
	if d.CompletedDir == "" {
		d.CompletedDir = filepath.Join(d.BaseDir, "completed")
	}
	if d.IncomingDir == "" {
		d.IncomingDir = filepath.Join(d.BaseDir, "incoming")
	}
	if d.LogsDir == "" {
		d.LogsDir = filepath.Join(d.BaseDir, "logs")
	}
	d.CompletedDir = expandPath(d.CompletedDir)
	d.IncomingDir = expandPath(d.IncomingDir)
	d.LogsDir = expandPath(d.LogsDir)

	config.Cache.Path = expandPath(config.Cache.Path)
	config.Storage.DatabasePath = expandPath(config.Storage.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}
	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Providers.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	for platform, chain := range config.Providers.Chains {
		if !domain.Platform(platform).IsKnown() {
			return fmt.Errorf("provider chain for unknown platform %q", platform)
		}
		for _, name := range chain {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("empty provider name in %s chain", platform)
			}
		}
	}

	if config.Delivery.BaseDir == "" {
		return fmt.Errorf("delivery base directory not configured")
	}
	if config.Delivery.Timeout <= 0 {
		return fmt.Errorf("delivery timeout must be positive")
	}
	if config.Delivery.MaxPayloadBytes <= 0 {
		return fmt.Errorf("max payload size must be positive")
	}

	if config.Cache.Enabled && config.Cache.Path == "" {
		return fmt.Errorf("cache enabled but no cache path configured")
	}
	if config.Storage.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	switch config.Logging.Level {
	case "":
		config.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	// Keys follow the mapstructure tags so the file loads back unchanged
	settings := map[string]interface{}{}
	if err := mapstructure.Decode(config, &settings); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	for key, value := range settings {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
