package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Network      NetworkConfig      `mapstructure:"network"`
	Extractor    ExtractorConfig    `mapstructure:"extractor"`
	Portable     PortableConfig     `mapstructure:"portable"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration.
// Empty directories are resolved from the portable manager at load time.
type DownloadConfig struct {
	BaseDir               string        `mapstructure:"base_dir"`
	MaxRetries            int           `mapstructure:"max_retries"`
	RetryDelay            time.Duration `mapstructure:"retry_delay"`
	ConcurrentLimit       int           `mapstructure:"concurrent_limit"`
	ConcurrentPerPlatform int           `mapstructure:"concurrent_per_platform"`
	AutoStartWorkers      bool          `mapstructure:"auto_start_workers"`
	DefaultQuality        string        `mapstructure:"default_quality"` // best, worst, 720p, format id
	FilenameTemplate      string        `mapstructure:"filename_template"`
	SpeedLimit            int64         `mapstructure:"speed_limit"` // bytes per second, 0 = unlimited
	SegmentThreshold      int64         `mapstructure:"segment_threshold"`
	MaxSegments           int           `mapstructure:"max_segments"`
	EnableResume          bool          `mapstructure:"enable_resume"`
}

// CompletedDir is where finished files are moved to
func (c DownloadConfig) CompletedDir() string { return joinDir(c.BaseDir, "completed") }

// IncomingDir holds partial downloads
func (c DownloadConfig) IncomingDir() string { return joinDir(c.BaseDir, "incoming") }

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	DatabasePath    string        `mapstructure:"database_path"`
	CheckInterval   time.Duration `mapstructure:"check_interval"`
	AutoExitOnEmpty bool          `mapstructure:"auto_exit_on_empty"`
	EmptyWaitTime   time.Duration `mapstructure:"empty_wait_time"`
}

// NetworkConfig configures the per-host HTTP connection pool
type NetworkConfig struct {
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxConnectionsPerHost int           `mapstructure:"max_connections_per_host"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	KeepAliveTimeout      time.Duration `mapstructure:"keepalive_timeout"`
	CleanupInterval       time.Duration `mapstructure:"cleanup_interval"`
	UserAgent             string        `mapstructure:"user_agent"`
	RotateUserAgent       bool          `mapstructure:"rotate_user_agent"`
	ProxyURL              string        `mapstructure:"proxy_url"` // http://, https:// or socks5://
	EnableCookies         bool          `mapstructure:"enable_cookies"`
}

// ExtractorConfig selects where extractors get their metadata from
type ExtractorConfig struct {
	Backend     string        `mapstructure:"backend"` // template, ytdlp
	YTDLPBinary string        `mapstructure:"ytdlp_binary"`
	CookieFile  string        `mapstructure:"cookie_file"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	CacheSize   int64         `mapstructure:"cache_size"`
	Disabled    []string      `mapstructure:"disabled"`
}

// PortableConfig overrides portable mode detection
type PortableConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	AppDir  string `mapstructure:"app_dir"`
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
	LogsDir    string `mapstructure:"logs_dir"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Download: DownloadConfig{
			MaxRetries:            3,
			RetryDelay:            5 * time.Second,
			ConcurrentLimit:       3,
			ConcurrentPerPlatform: 1,
			AutoStartWorkers:      true,
			DefaultQuality:        "best",
			FilenameTemplate:      "%(title)s.%(ext)s",
			SegmentThreshold:      8 * 1024 * 1024,
			MaxSegments:           4,
			EnableResume:          true,
		},
		Queue: QueueConfig{
			CheckInterval:   5 * time.Second,
			AutoExitOnEmpty: false,
			EmptyWaitTime:   5 * time.Minute,
		},
		Network: NetworkConfig{
			MaxConnections:        100,
			MaxConnectionsPerHost: 30,
			ConnectionTimeout:     30 * time.Second,
			ReadTimeout:           300 * time.Second,
			KeepAliveTimeout:      30 * time.Second,
			CleanupInterval:       60 * time.Second,
			UserAgent:             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			EnableCookies:         true,
		},
		Extractor: ExtractorConfig{
			Backend:     "template",
			YTDLPBinary: "yt-dlp",
			CacheTTL:    10 * time.Minute,
			CacheSize:   1000,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}

func joinDir(base, sub string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, sub)
}
