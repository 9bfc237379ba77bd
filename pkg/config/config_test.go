package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "telegramcache", cfg.Paths.CacheRoot)
	assert.Equal(t, "311210", cfg.Tools.AppID)
	assert.Equal(t, "49m", cfg.Tools.VolumeSize)
	assert.Equal(t, "[T7]", cfg.Tools.ArchivePrefix)
	assert.Equal(t, 3, cfg.Tools.ResetThreshold)
	assert.Equal(t, 0, cfg.Tools.MaxAttempts)
	assert.Contains(t, cfg.Tools.ResetAllowList, "telegramcache")
	assert.Equal(t, 250*time.Millisecond, cfg.Steam.ImagePause)
	assert.Equal(t, "user", cfg.Telegram.SessionName)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WORKSHOPCAST_CACHE_ROOT", "/tmp/cache")
	t.Setenv("WORKSHOPCAST_ARCHIVER", "/opt/rar/rar")
	t.Setenv("WORKSHOPCAST_CHANNEL_ID", "-1001234567890")
	t.Setenv("WORKSHOPCAST_MAX_ATTEMPTS", "7")
	t.Setenv("WORKSHOPCAST_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/cache", cfg.Paths.CacheRoot)
	assert.Equal(t, "/opt/rar/rar", cfg.Tools.Archiver)
	assert.Equal(t, int64(-1001234567890), cfg.Telegram.ChannelID)
	assert.Equal(t, 7, cfg.Tools.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsBadChannel(t *testing.T) {
	t.Setenv("WORKSHOPCAST_CHANNEL_ID", "not-a-number")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
paths:
  cache_root: /data/cache
tools:
  volume_size: 500m
  reset_allow_list: [steamcmd, keep.txt]
steam:
  image_pause: 1s
telegram:
  channel_id: -100987
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "/data/cache", cfg.Paths.CacheRoot)
	assert.Equal(t, "500m", cfg.Tools.VolumeSize)
	assert.Equal(t, []string{"steamcmd", "keep.txt"}, cfg.Tools.ResetAllowList)
	assert.Equal(t, time.Second, cfg.Steam.ImagePause)
	assert.Equal(t, int64(-100987), cfg.Telegram.ChannelID)
	// untouched sections keep their defaults
	assert.Equal(t, "311210", cfg.Tools.AppID)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: [unterminated"), 0644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing cache root", func(c *Config) { c.Paths.CacheRoot = "" }, "cache root is required"},
		{"missing archiver", func(c *Config) { c.Tools.Archiver = "" }, "archiver path is required"},
		{"empty marker", func(c *Config) { c.Tools.TimeoutMarker = "" }, "download markers must not be empty"},
		{"zero threshold", func(c *Config) { c.Tools.ResetThreshold = 0 }, "reset threshold must be positive"},
		{"negative attempts", func(c *Config) { c.Tools.MaxAttempts = -1 }, "max attempts cannot be negative"},
		{"negative pause", func(c *Config) { c.Steam.ImagePause = -time.Second }, "image pause cannot be negative"},
		{"missing session", func(c *Config) { c.Telegram.SessionName = "" }, "session name is required"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad volume size", func(c *Config) { c.Tools.VolumeSize = "lots" }, "invalid volume size"},
		{"volume over public limit", func(c *Config) { c.Tools.VolumeSize = "2000m" }, "upload limit"},
		{"large volume on self-hosted server", func(c *Config) {
			c.Tools.VolumeSize = "2000m"
			c.Telegram.APIEndpoint = "http://localhost:8081/bot%s/%s"
		}, ""},
		{"empty endpoint is the public one", func(c *Config) {
			c.Tools.VolumeSize = "51m"
			c.Telegram.APIEndpoint = ""
		}, "upload limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseVolumeSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"49m", 49 << 20, false},
		{"50M", 50 * 1000 * 1000, false},
		{"2g", 2 << 30, false},
		{"700k", 700 << 10, false},
		{"4096b", 4096, false},
		{"100", 100 * 1000, false},
		{"", 0, true},
		{"m", 0, true},
		{"0m", 0, true},
		{"12x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVolumeSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultVolumeFitsPublicAPI(t *testing.T) {
	cfg := DefaultConfig()
	require.False(t, cfg.Telegram.SelfHosted())

	size, err := ParseVolumeSize(cfg.Tools.VolumeSize)
	require.NoError(t, err)
	assert.LessOrEqual(t, size, PublicUploadLimit)
}

func TestSelfHosted(t *testing.T) {
	assert.False(t, TelegramConfig{APIEndpoint: "https://api.telegram.org/bot%s/%s"}.SelfHosted())
	assert.False(t, TelegramConfig{APIEndpoint: "https://API.Telegram.org/bot%s/%s"}.SelfHosted())
	assert.False(t, TelegramConfig{}.SelfHosted())
	assert.True(t, TelegramConfig{APIEndpoint: "http://127.0.0.1:8081/bot%s/%s"}.SelfHosted())
	assert.True(t, TelegramConfig{APIEndpoint: "https://botapi.example.net/bot%s/%s"}.SelfHosted())
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.CacheRoot = ""
	cfg.Tools.AppID = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache root is required")
	assert.Contains(t, err.Error(), "app id is required")
}

func TestResolve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.CacheRoot = "/abs/cache"
	cfg.Resolve("/work")

	assert.Equal(t, "/abs/cache", cfg.Paths.CacheRoot)
	assert.Equal(t, "/work", cfg.Paths.ToolDir)
	assert.Equal(t, filepath.Join("/work", "steamapps", "workshop", "content", "311210"), cfg.Paths.ContentRoot)
	assert.Equal(t, filepath.Join("/work", "steamcmd"), cfg.Tools.SteamCmd)
	// archiver stays a PATH lookup
	assert.Equal(t, "rar", cfg.Tools.Archiver)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"cache-root":   "/flags/cache",
		"channel":      int64(-100555),
		"max-attempts": 2,
		"log-level":    "warn",
	})

	assert.Equal(t, "/flags/cache", cfg.Paths.CacheRoot)
	assert.Equal(t, int64(-100555), cfg.Telegram.ChannelID)
	assert.Equal(t, 2, cfg.Tools.MaxAttempts)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Telegram.ChannelID = -10042
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, cfg.Telegram, loaded.Telegram)
	assert.Equal(t, cfg.Tools.ResetAllowList, loaded.Tools.ResetAllowList)
}
