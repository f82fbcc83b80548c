package config

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// ProviderConfig describes one configured search provider. The Type selects
// the constructor from the provider registry.
type ProviderConfig struct {
	Type   string `koanf:"type"`
	Name   string `koanf:"name"`
	URL    string `koanf:"url"`
	APIKey string `koanf:"api_key"`
}

// DownloadClientConfig describes the external download client.
type DownloadClientConfig struct {
	Type   string `koanf:"type"`
	Name   string `koanf:"name"`
	URL    string `koanf:"url"`
	APIKey string `koanf:"api_key"`
}

type Config struct {
	DatabaseFilePath string `koanf:"database_file_path"`
	DatabaseDebug    bool   `koanf:"database_debug"`
	DownloadDir      string `koanf:"download_dir"`
	OrganizeDir      string `koanf:"organize_dir"`
	CacheDir         string `koanf:"cache_dir"`

	ServerHost string `koanf:"server_host"`
	ServerPort int    `koanf:"server_port"`
	JWTSecret  string `koanf:"jwt_secret"`

	FuzzyThreshold             int    `koanf:"fuzzy_threshold"`
	DuplicateDateThresholdDays int    `koanf:"duplicate_date_threshold_days"`
	OrganizationPattern        string `koanf:"organization_pattern"`
	AutoTrackImports           bool   `koanf:"auto_track_imports"`
	CategoryPrefix             string `koanf:"category_prefix"`

	DownloadMaxRetries  int `koanf:"download_max_retries"`
	DownloadMaxPerBatch int `koanf:"download_max_per_batch"`

	AutoDownloadIntervalSeconds    int `koanf:"auto_download_interval_seconds"`
	DownloadMonitorIntervalSeconds int `koanf:"download_monitor_interval_seconds"`
	CleanupCoversIntervalSeconds   int `koanf:"cleanup_covers_interval_seconds"`

	CoverDPILow      int `koanf:"cover_dpi_low"`
	CoverDPIHigh     int `koanf:"cover_dpi_high"`
	CoverQualityLow  int `koanf:"cover_quality_low"`
	CoverQualityHigh int `koanf:"cover_quality_high"`

	HTTPTimeoutSeconds int `koanf:"http_timeout_seconds"`

	Providers      []ProviderConfig     `koanf:"providers"`
	DownloadClient DownloadClientConfig `koanf:"download_client"`

	// Not exposed through the config file.
	DatabaseConnectRetryCount int           `koanf:"-"`
	DatabaseConnectRetryDelay time.Duration `koanf:"-"`
	DatabaseMaxRetries        int           `koanf:"-"`
	DatabaseBusyTimeout       time.Duration `koanf:"-"`
}

const configFileENV = "CONFIG_FILE"

// New loads configuration in three layers: built-in defaults, then the YAML
// config file (CONFIG_FILE, default /config/config.yaml), then environment
// variables. Environment variables use the SCREAMING_SNAKE form of the
// config key and always win, which is how container deployments override
// the storage paths.
func New() (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	configFilePath := os.Getenv(configFileENV)
	if configFilePath == "" {
		configFilePath = "/config/config.yaml"
	}
	err := k.Load(file.Provider(configFilePath), yaml.Parser())
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !strings.Contains(err.Error(), "no such file") {
		return nil, errors.Wrap(err, "load config file")
	}

	err = k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := cfg.validateRequired(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config suitable for unit tests: in-memory database,
// loopback server, temp-friendly paths.
func NewForTest() *Config {
	cfg := defaultConfig()
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	cfg.JWTSecret = "test-secret"
	cfg.DownloadDir = os.TempDir()
	cfg.OrganizeDir = os.TempDir()
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		DownloadDir: "/downloads",
		OrganizeDir: "/library",
		CacheDir:    "/config/cache",

		ServerHost: "0.0.0.0",
		ServerPort: 6488,

		FuzzyThreshold:             80,
		DuplicateDateThresholdDays: 5,
		AutoTrackImports:           true,
		CategoryPrefix:             "_",

		DownloadMaxRetries:  3,
		DownloadMaxPerBatch: 10,

		AutoDownloadIntervalSeconds:    1800,
		DownloadMonitorIntervalSeconds: 30,
		CleanupCoversIntervalSeconds:   86400,

		CoverDPILow:      72,
		CoverDPIHigh:     150,
		CoverQualityLow:  60,
		CoverQualityHigh: 85,

		HTTPTimeoutSeconds: 10,

		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        5,
		DatabaseBusyTimeout:       5 * time.Second,
	}
}

func (cfg *Config) validateRequired() error {
	missing := []string{}
	if cfg.DatabaseFilePath == "" {
		missing = append(missing, "database_file_path")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "jwt_secret")
	}
	if len(missing) == 0 {
		return nil
	}

	details := make([]string, len(missing))
	for i, key := range missing {
		details[i] = fmt.Sprintf("%s (env %s)", key, strings.ToUpper(key))
	}
	return errors.Errorf("missing required config: %s", strings.Join(details, ", "))
}

// HTTPTimeout is the per-call timeout for outbound requests to search
// providers and the download client.
func (cfg *Config) HTTPTimeout() time.Duration {
	return time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
}

func (cfg *Config) AutoDownloadInterval() time.Duration {
	return time.Duration(cfg.AutoDownloadIntervalSeconds) * time.Second
}

func (cfg *Config) DownloadMonitorInterval() time.Duration {
	return time.Duration(cfg.DownloadMonitorIntervalSeconds) * time.Second
}

func (cfg *Config) CleanupCoversInterval() time.Duration {
	return time.Duration(cfg.CleanupCoversIntervalSeconds) * time.Second
}
