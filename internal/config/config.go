package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// SourceConfig names a search-index payload the daemon may load on demand.
// In TOML it is either a bare location string or a table.
type SourceConfig struct {
	Location    string `mapstructure:"location"`
	SkipInvalid bool   `mapstructure:"skip_invalid"`
}

type DaemonConfig struct {
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

type SearchConfig struct {
	Limit       int    `mapstructure:"limit"`
	DefaultMode string `mapstructure:"default_mode"`
	CacheSize   int    `mapstructure:"cache_size"`
}

type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

type Config struct {
	Daemon  DaemonConfig            `mapstructure:"daemon"`
	Search  SearchConfig            `mapstructure:"search"`
	Fetch   FetchConfig             `mapstructure:"fetch"`
	Sources map[string]SourceConfig `mapstructure:"sources"`
}

// Timeout returns the fetch timeout as a duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{ExpirationSeconds: 600},
		Search: SearchConfig{Limit: 20, DefaultMode: "prefix", CacheSize: 256},
		Fetch:  FetchConfig{TimeoutSeconds: 60, UserAgent: "rsdocseek/0.1.0"},
	}
}

// cacheBase returns the base cache directory for rsdocseek.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/rsdocseek as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "rsdocseek")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "rsdocseek")
	}
	return filepath.Join(os.TempDir(), "rsdocseek")
}

// PayloadCacheDir returns the directory holding fetched search-index payloads.
func PayloadCacheDir() string {
	return filepath.Join(cacheBase(), "cache")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "rsdocseek", "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "rsdocseek", "daemon.sock")
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "rsdocseek"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "rsdocseek"))
	}

	d := Default()
	viper.SetDefault("daemon.expiration_seconds", d.Daemon.ExpirationSeconds)
	viper.SetDefault("search.limit", d.Search.Limit)
	viper.SetDefault("search.default_mode", d.Search.DefaultMode)
	viper.SetDefault("search.cache_size", d.Search.CacheSize)
	viper.SetDefault("fetch.timeout_seconds", d.Fetch.TimeoutSeconds)
	viper.SetDefault("fetch.user_agent", d.Fetch.UserAgent)

	viper.SetEnvPrefix("RSDOCSEEK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func stringToSourceConfigHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(SourceConfig{}) {
			return data, nil
		}
		if f.Kind() == reflect.String {
			return SourceConfig{Location: data.(string)}, nil
		}
		return data, nil
	}
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}
	return decode(viper.AllSettings())
}

func decode(settings map[string]any) (*Config, error) {
	config := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToSourceConfigHookFunc(),
		WeaklyTypedInput: true,
		Result:           config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Search.Limit <= 0 {
		return fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit)
	}
	if c.Search.CacheSize <= 0 {
		return fmt.Errorf("search.cache_size must be positive, got %d", c.Search.CacheSize)
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be positive, got %d", c.Fetch.TimeoutSeconds)
	}
	for name, src := range c.Sources {
		if src.Location == "" {
			return fmt.Errorf("source %q has no location", name)
		}
		if strings.HasPrefix(src.Location, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				src.Location = filepath.Join(home, src.Location[2:])
				c.Sources[name] = src
			}
		}
	}
	return nil
}
