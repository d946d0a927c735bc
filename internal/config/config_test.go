package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./downloads", cfg.DownloadPath)
	assert.Equal(t, "all", cfg.DownloadFilter)
	assert.True(t, cfg.DownloadHistory)
	assert.False(t, cfg.SizeDedup)
	assert.Equal(t, 10, cfg.MaxQueueSize)
	assert.Equal(t, time.Minute, cfg.HeartbeatInterval)
	assert.Equal(t, "tgdown_session.db", cfg.TGSessionFile)
}

func TestLoad_LegacyJSONFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"api_credentials": {"api_id": 12345, "api_hash": "abc", "session_name": "my_session"},
		"target": {"channel_id": -1001234567890, "download_path": "/data/media"},
		"settings": {"download_filter": "photo", "download_history": false, "max_queue_size": 5, "skip_same_size": false},
		"system_spoofing": {"device_model": "PC", "system_version": "Windows 11", "app_version": "4.0"}
	}`)
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.TGApiID)
	assert.Equal(t, "abc", cfg.TGApiHash)
	assert.Equal(t, "my_session.db", cfg.TGSessionFile)
	assert.Equal(t, "-1001234567890", cfg.Channel)
	assert.Equal(t, "/data/media", cfg.DownloadPath)
	assert.Equal(t, "photo", cfg.DownloadFilter)
	assert.False(t, cfg.DownloadHistory)
	assert.Equal(t, 5, cfg.MaxQueueSize)
	assert.False(t, cfg.SizeDedup)
	assert.Equal(t, "PC", cfg.DeviceModel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_SizeDedupKeys(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		want     bool
	}{
		{name: "unset", settings: `{}`, want: false},
		{name: "legacy on", settings: `{"skip_same_size": true}`, want: true},
		{name: "legacy off", settings: `{"skip_same_size": false}`, want: false},
		{name: "new key wins", settings: `{"skip_same_size": true, "size_dedup": false}`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", writeConfigFile(t, `{"settings": `+tt.settings+`}`))

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.SizeDedup)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `{"settings": {"download_filter": "photo", "max_queue_size": 5}}`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DOWNLOAD_FILTER", "VIDEO")
	t.Setenv("MAX_QUEUE_SIZE", "20")
	t.Setenv("SIZE_DEDUP", "true")
	t.Setenv("HEARTBEAT_INTERVAL", "15")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "video", cfg.DownloadFilter)
	assert.Equal(t, 20, cfg.MaxQueueSize)
	assert.True(t, cfg.SizeDedup)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, `{"settings": [`)
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			TGApiID:        1,
			TGApiHash:      "hash",
			Channel:        "@media",
			DownloadPath:   "./downloads",
			DownloadFilter: "all",
			MaxQueueSize:   1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api id", mutate: func(c *Config) { c.TGApiID = 0 }, wantErr: ErrMissingCredentials},
		{name: "missing api hash", mutate: func(c *Config) { c.TGApiHash = "" }, wantErr: ErrMissingCredentials},
		{name: "missing channel", mutate: func(c *Config) { c.Channel = "" }, wantErr: ErrMissingChannel},
		{name: "missing path", mutate: func(c *Config) { c.DownloadPath = " " }, wantErr: ErrMissingPath},
		{name: "unknown policy", mutate: func(c *Config) { c.DownloadFilter = "audio" }, wantErr: ErrInvalidPolicy},
		{name: "zero queue", mutate: func(c *Config) { c.MaxQueueSize = 0 }, wantErr: ErrInvalidQueueSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
