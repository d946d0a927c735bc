// package config loads tgdown configuration from a config file, .env and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// validation errors
var (
	ErrMissingCredentials = errors.New("TG_API_ID and TG_API_HASH are required")
	ErrMissingChannel     = errors.New("target channel is required")
	ErrMissingPath        = errors.New("download path is required")
	ErrInvalidPolicy      = errors.New("download filter must be one of: all, photo, video")
	ErrInvalidQueueSize   = errors.New("max queue size must be at least 1")
)

// Policies accepted for DownloadFilter.
var Policies = []string{"all", "photo", "video"}

// Config holds all application configuration.
type Config struct {
	// telegram
	TGApiID            int
	TGApiHash          string
	TGPhone            string
	TGSessionStr       string
	TGSessionFile      string
	SessionDatabaseURL string
	RateLimitRPS       float64

	// device info reported to telegram
	DeviceModel   string
	SystemVersion string
	AppVersion    string

	// target
	Channel      string
	DownloadPath string

	// pipeline
	DownloadFilter    string
	DownloadHistory   bool
	MaxQueueSize      int
	SizeDedup         bool
	DownloadThreads   int
	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration

	// integrations, zero values disable them
	NatsURL  string
	HTTPPort int

	// logging
	LogLevel string
	LogFile  string
}

// fileConfig mirrors the on-disk layout. Sections follow the legacy
// config.json so an existing file can be reused unchanged.
type fileConfig struct {
	APICredentials struct {
		APIID       int    `yaml:"api_id"`
		APIHash     string `yaml:"api_hash"`
		SessionName string `yaml:"session_name"`
		Phone       string `yaml:"phone"`
	} `yaml:"api_credentials"`
	Target struct {
		ChannelID    string `yaml:"channel_id"`
		DownloadPath string `yaml:"download_path"`
	} `yaml:"target"`
	Settings struct {
		DownloadFilter  string `yaml:"download_filter"`
		DownloadHistory *bool  `yaml:"download_history"`
		MaxQueueSize    int    `yaml:"max_queue_size"`
		SkipSameSize    *bool  `yaml:"skip_same_size"`
		SizeDedup       *bool  `yaml:"size_dedup"` // takes precedence over skip_same_size
	} `yaml:"settings"`
	SystemSpoofing struct {
		DeviceModel   string `yaml:"device_model"`
		SystemVersion string `yaml:"system_version"`
		AppVersion    string `yaml:"app_version"`
	} `yaml:"system_spoofing"`
}

// Load builds the configuration. Precedence, lowest first: defaults, the
// file named by CONFIG_FILE (default config.yaml), then environment
// variables. A .env file in the working directory is loaded into the
// environment first if it exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		TGSessionFile:     "tgdown_session.db",
		RateLimitRPS:      2.0,
		DeviceModel:       "tgdown",
		SystemVersion:     "linux",
		AppVersion:        "1.0",
		DownloadPath:      "./downloads",
		DownloadFilter:    "all",
		DownloadHistory:   true,
		MaxQueueSize:      10,
		SizeDedup:         false,
		DownloadThreads:   1,
		HeartbeatInterval: time.Minute,
		ShutdownTimeout:   2 * time.Minute,
		LogLevel:          "info",
	}

	path := getEnv("CONFIG_FILE", "config.yaml")
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.Channel = strings.TrimSpace(cfg.Channel)
	cfg.DownloadFilter = strings.ToLower(strings.TrimSpace(cfg.DownloadFilter))

	return cfg, nil
}

// applyFile merges the config file into cfg. A missing file is not an error.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.APICredentials.APIID != 0 {
		c.TGApiID = fc.APICredentials.APIID
	}
	setString(&c.TGApiHash, fc.APICredentials.APIHash)
	setString(&c.TGPhone, fc.APICredentials.Phone)
	if name := fc.APICredentials.SessionName; name != "" {
		c.TGSessionFile = name
		if !strings.HasSuffix(name, ".db") {
			c.TGSessionFile = name + ".db"
		}
	}

	setString(&c.Channel, fc.Target.ChannelID)
	setString(&c.DownloadPath, fc.Target.DownloadPath)

	setString(&c.DownloadFilter, fc.Settings.DownloadFilter)
	if fc.Settings.DownloadHistory != nil {
		c.DownloadHistory = *fc.Settings.DownloadHistory
	}
	if fc.Settings.MaxQueueSize != 0 {
		c.MaxQueueSize = fc.Settings.MaxQueueSize
	}
	if fc.Settings.SkipSameSize != nil {
		c.SizeDedup = *fc.Settings.SkipSameSize
	}
	if fc.Settings.SizeDedup != nil {
		c.SizeDedup = *fc.Settings.SizeDedup
	}

	setString(&c.DeviceModel, fc.SystemSpoofing.DeviceModel)
	setString(&c.SystemVersion, fc.SystemSpoofing.SystemVersion)
	setString(&c.AppVersion, fc.SystemSpoofing.AppVersion)

	return nil
}

func (c *Config) applyEnv() {
	c.TGApiID = getEnvInt("TG_API_ID", c.TGApiID)
	c.TGApiHash = getEnv("TG_API_HASH", c.TGApiHash)
	c.TGPhone = getEnv("TG_PHONE", c.TGPhone)
	c.TGSessionStr = getEnv("TG_SESSION_STRING", c.TGSessionStr)
	c.TGSessionFile = getEnv("TG_SESSION_FILE", c.TGSessionFile)
	c.SessionDatabaseURL = getEnv("SESSION_DATABASE_URL", c.SessionDatabaseURL)
	c.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", c.RateLimitRPS)

	c.DeviceModel = getEnv("DEVICE_MODEL", c.DeviceModel)
	c.SystemVersion = getEnv("SYSTEM_VERSION", c.SystemVersion)
	c.AppVersion = getEnv("APP_VERSION", c.AppVersion)

	c.Channel = getEnv("CHANNEL", c.Channel)
	c.DownloadPath = getEnv("DOWNLOAD_PATH", c.DownloadPath)

	c.DownloadFilter = getEnv("DOWNLOAD_FILTER", c.DownloadFilter)
	c.DownloadHistory = getEnvBool("DOWNLOAD_HISTORY", c.DownloadHistory)
	c.MaxQueueSize = getEnvInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.SizeDedup = getEnvBool("SIZE_DEDUP", c.SizeDedup)
	c.DownloadThreads = getEnvInt("DOWNLOAD_THREADS", c.DownloadThreads)
	c.HeartbeatInterval = getEnvDuration("HEARTBEAT_INTERVAL", c.HeartbeatInterval)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.NatsURL = getEnv("NATS_URL", c.NatsURL)
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
}

// Validate checks the settings the downloader cannot run without.
func (c *Config) Validate() error {
	if c.TGApiID == 0 || c.TGApiHash == "" {
		return ErrMissingCredentials
	}
	if c.Channel == "" {
		return ErrMissingChannel
	}
	if strings.TrimSpace(c.DownloadPath) == "" {
		return ErrMissingPath
	}
	if !validPolicy(c.DownloadFilter) {
		return fmt.Errorf("%w: got %q", ErrInvalidPolicy, c.DownloadFilter)
	}
	if c.MaxQueueSize < 1 {
		return ErrInvalidQueueSize
	}
	return nil
}

func validPolicy(p string) bool {
	for _, known := range Policies {
		if p == known {
			return true
		}
	}
	return false
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
