package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for workshopcast
type Config struct {
	// Filesystem locations
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// External command line tools
	Tools ToolsConfig `yaml:"tools" json:"tools"`

	// Steam community pages
	Steam SteamConfig `yaml:"steam" json:"steam"`

	// Messaging platform
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PathsConfig holds the directories every component works in. All of them
// are made absolute by Load so no component depends on the process working
// directory.
type PathsConfig struct {
	// CacheRoot holds one directory per cached workshop item
	CacheRoot string `yaml:"cache_root" json:"cache_root"`
	// ToolDir is where steamcmd lives and keeps its own state
	ToolDir string `yaml:"tool_dir" json:"tool_dir"`
	// ContentRoot is where steamcmd leaves downloaded workshop content
	ContentRoot string `yaml:"content_root" json:"content_root"`
}

// ToolsConfig holds the download tool and archiver settings
type ToolsConfig struct {
	SteamCmd       string   `yaml:"steamcmd" json:"steamcmd"`
	Archiver       string   `yaml:"archiver" json:"archiver"`
	AppID          string   `yaml:"app_id" json:"app_id"`
	VolumeSize     string   `yaml:"volume_size" json:"volume_size"`
	ArchivePrefix  string   `yaml:"archive_prefix" json:"archive_prefix"`
	SuccessMarker  string   `yaml:"success_marker" json:"success_marker"`
	TimeoutMarker  string   `yaml:"timeout_marker" json:"timeout_marker"`
	FailureMarker  string   `yaml:"failure_marker" json:"failure_marker"`
	ResetThreshold int      `yaml:"reset_threshold" json:"reset_threshold"`
	ResetAllowList []string `yaml:"reset_allow_list" json:"reset_allow_list"`
	// MaxAttempts bounds the download loop; 0 keeps it unbounded
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// SteamConfig holds settings for the page client
type SteamConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	ImagePause        time.Duration `yaml:"image_pause" json:"image_pause"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
}

// TelegramConfig holds messaging settings
type TelegramConfig struct {
	SessionName       string        `yaml:"session_name" json:"session_name"`
	APIEndpoint       string        `yaml:"api_endpoint" json:"api_endpoint"`
	ChannelID         int64         `yaml:"channel_id" json:"channel_id"`
	DiscussionTimeout time.Duration `yaml:"discussion_timeout" json:"discussion_timeout"`
}

// PublicUploadLimit is the largest document api.telegram.org accepts from a bot.
const PublicUploadLimit int64 = 50 << 20

const publicAPIHost = "api.telegram.org"

// SelfHosted reports whether the endpoint points at a Bot API server other
// than the public one. Self-hosted servers accept uploads up to 2000 MB.
func (t TelegramConfig) SelfHosted() bool {
	if t.APIEndpoint == "" {
		return false
	}
	u, err := url.Parse(strings.ReplaceAll(t.APIEndpoint, "%s", "x"))
	if err != nil || u.Hostname() == "" {
		return false
	}
	return !strings.EqualFold(u.Hostname(), publicAPIHost)
}

// ParseVolumeSize converts an archiver volume size such as "49m" into bytes.
// Lower case suffixes are 1024 based, upper case ones 1000 based and a bare
// number counts thousands of bytes, as the archiver reads them.
func ParseVolumeSize(v string) (int64, error) {
	if v == "" {
		return 0, errors.New("volume size is required")
	}
	units := map[byte]int64{
		'b': 1,
		'k': 1 << 10, 'K': 1000,
		'm': 1 << 20, 'M': 1000 * 1000,
		'g': 1 << 30, 'G': 1000 * 1000 * 1000,
	}
	unit, digits := int64(1000), v
	if u, ok := units[v[len(v)-1]]; ok {
		unit, digits = u, v[:len(v)-1]
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid volume size %q", v)
	}
	return n * unit, nil
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			CacheRoot:   "telegramcache",
			ToolDir:     ".",
			ContentRoot: filepath.Join("steamapps", "workshop", "content", "311210"),
		},
		Tools: ToolsConfig{
			SteamCmd:       "steamcmd",
			Archiver:       "rar",
			AppID:          "311210",
			VolumeSize:     "49m",
			ArchivePrefix:  "[T7]",
			SuccessMarker:  "Success. Downloaded item",
			TimeoutMarker:  "ERROR! Timeout downloading",
			FailureMarker:  "failed (Failure).",
			ResetThreshold: 3,
			ResetAllowList: []string{
				"steamcmd", "steamcmd.exe", "steamcmd.sh", "linux32", "linux64",
				"telegramcache", ".workshopcast.yaml", ".workshopcast.yml", ".env",
			},
			MaxAttempts: 0,
		},
		Steam: SteamConfig{
			BaseURL:           "https://steamcommunity.com/sharedfiles/filedetails",
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Timeout:           30 * time.Second,
			ImagePause:        250 * time.Millisecond,
			RequestsPerMinute: 60,
			MaxRetries:        3,
		},
		Telegram: TelegramConfig{
			SessionName:       "user",
			APIEndpoint:       "https://api.telegram.org/bot%s/%s",
			ChannelID:         0,
			DiscussionTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("WORKSHOPCAST_CACHE_ROOT"); v != "" {
		c.Paths.CacheRoot = v
	}
	if v := os.Getenv("WORKSHOPCAST_TOOL_DIR"); v != "" {
		c.Paths.ToolDir = v
	}
	if v := os.Getenv("WORKSHOPCAST_CONTENT_ROOT"); v != "" {
		c.Paths.ContentRoot = v
	}
	if v := os.Getenv("WORKSHOPCAST_STEAMCMD"); v != "" {
		c.Tools.SteamCmd = v
	}
	if v := os.Getenv("WORKSHOPCAST_ARCHIVER"); v != "" {
		c.Tools.Archiver = v
	}
	if v := os.Getenv("WORKSHOPCAST_SESSION_NAME"); v != "" {
		c.Telegram.SessionName = v
	}
	if v := os.Getenv("WORKSHOPCAST_CHANNEL_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid WORKSHOPCAST_CHANNEL_ID: %w", err)
		}
		c.Telegram.ChannelID = id
	}
	if v := os.Getenv("WORKSHOPCAST_MAX_ATTEMPTS"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val >= 0 {
			c.Tools.MaxAttempts = val
		}
	}
	if v := os.Getenv("WORKSHOPCAST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".workshopcast.yaml",
		".workshopcast.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "workshopcast", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "workshopcast", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.CacheRoot == "" {
		errs = append(errs, errors.New("cache root is required"))
	}
	if c.Paths.ToolDir == "" {
		errs = append(errs, errors.New("tool directory is required"))
	}
	if c.Paths.ContentRoot == "" {
		errs = append(errs, errors.New("content root is required"))
	}

	if c.Tools.SteamCmd == "" {
		errs = append(errs, errors.New("steamcmd path is required"))
	}
	if c.Tools.Archiver == "" {
		errs = append(errs, errors.New("archiver path is required"))
	}
	if c.Tools.AppID == "" {
		errs = append(errs, errors.New("app id is required"))
	}
	if c.Tools.SuccessMarker == "" || c.Tools.TimeoutMarker == "" || c.Tools.FailureMarker == "" {
		errs = append(errs, errors.New("download markers must not be empty"))
	}
	if c.Tools.ResetThreshold <= 0 {
		errs = append(errs, errors.New("reset threshold must be positive"))
	}
	if c.Tools.MaxAttempts < 0 {
		errs = append(errs, errors.New("max attempts cannot be negative"))
	}
	if size, err := ParseVolumeSize(c.Tools.VolumeSize); err != nil {
		errs = append(errs, err)
	} else if size > PublicUploadLimit && !c.Telegram.SelfHosted() {
		errs = append(errs, fmt.Errorf("volume size %s exceeds the 50 MB upload limit of the public Bot API, use a self-hosted api_endpoint for larger parts", c.Tools.VolumeSize))
	}

	if c.Steam.BaseURL == "" {
		errs = append(errs, errors.New("steam base url is required"))
	}
	if c.Steam.Timeout <= 0 {
		errs = append(errs, errors.New("steam timeout must be positive"))
	}
	if c.Steam.ImagePause < 0 {
		errs = append(errs, errors.New("image pause cannot be negative"))
	}
	if c.Steam.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Steam.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Telegram.SessionName == "" {
		errs = append(errs, errors.New("session name is required"))
	}
	if c.Telegram.DiscussionTimeout <= 0 {
		errs = append(errs, errors.New("discussion timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Resolve turns every configured path into an absolute one, relative to base.
func (c *Config) Resolve(base string) {
	for _, p := range []*string{&c.Paths.CacheRoot, &c.Paths.ToolDir, &c.Paths.ContentRoot} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		*p = filepath.Join(base, *p)
	}
	// A bare tool name is looked up in the tool directory, the way the
	// download tool was always shipped next to its state.
	if c.Tools.SteamCmd != "" && !filepath.IsAbs(c.Tools.SteamCmd) && !strings.ContainsRune(c.Tools.SteamCmd, filepath.Separator) {
		c.Tools.SteamCmd = filepath.Join(c.Paths.ToolDir, c.Tools.SteamCmd)
	}
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["cache-root"].(string); ok && v != "" {
		c.Paths.CacheRoot = v
	}
	if v, ok := flags["tool-dir"].(string); ok && v != "" {
		c.Paths.ToolDir = v
	}
	if v, ok := flags["content-root"].(string); ok && v != "" {
		c.Paths.ContentRoot = v
	}
	if v, ok := flags["channel"].(int64); ok && v != 0 {
		c.Telegram.ChannelID = v
	}
	if v, ok := flags["max-attempts"].(int); ok && v >= 0 {
		c.Tools.MaxAttempts = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".workshopcast.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.Resolve(wd)

	return config, nil
}
