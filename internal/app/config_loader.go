package app

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/internal/naming"
	"github.com/yourusername/vidgrab-go/internal/portable"
)

// EnvPrefix prefixes every configuration environment variable,
// e.g. VIDGRAB_SERVER_PORT
const EnvPrefix = "VIDGRAB"

// LoadConfig loads configuration from defaults, the config file and the
// environment, in that order. The file is configPath when set, otherwise
// config.yaml in the portable config directory or ./configs. Empty paths
// are filled from the resolved directory layout, which is returned as well.
func LoadConfig(configPath string, opts portable.Options) (*domain.Config, *portable.Manager, error) {
	paths, err := portable.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve application paths: %w", err)
	}

	config := domain.DefaultConfig()

	v := viper.New()
	if opts.Fs != nil {
		v.SetFs(opts.Fs)
	}
	v.SetConfigType("yaml")
	setDefaults(v, config)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(strings.TrimSuffix(portable.ConfigName, filepath.Ext(portable.ConfigName)))
		v.AddConfigPath(paths.ConfigDir())
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The config can switch portable mode on or move the app directory
	if (config.Portable.Enabled && !paths.IsPortable()) ||
		(config.Portable.AppDir != "" && config.Portable.AppDir != paths.AppDir()) {
		opts.ForcePortable = opts.ForcePortable || config.Portable.Enabled
		if config.Portable.AppDir != "" {
			opts.AppDir = expandPath(config.Portable.AppDir)
		}
		if paths, err = portable.New(opts); err != nil {
			return nil, nil, fmt.Errorf("failed to resolve application paths: %w", err)
		}
	}

	config = expandPaths(config)
	applyPaths(config, paths)

	if err := validateConfig(config); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, paths, nil
}

// setDefaults registers every leaf of config with viper so that environment
// variables can override keys that are absent from the file
func setDefaults(v *viper.Viper, config *domain.Config) {
	for key, value := range flatten(config) {
		v.SetDefault(key, value)
	}
}

// applyPaths fills empty locations from the directory layout
func applyPaths(config *domain.Config, paths *portable.Manager) {
	if config.Download.BaseDir == "" {
		config.Download.BaseDir = paths.DownloadsDir()
	}
	if config.Queue.DatabasePath == "" {
		config.Queue.DatabasePath = paths.DatabasePath()
	}
	if config.Logging.LogsDir == "" {
		config.Logging.LogsDir = paths.LogsDir()
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Queue.DatabasePath = expandPath(config.Queue.DatabasePath)
	config.Extractor.CookieFile = expandPath(config.Extractor.CookieFile)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)

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
	path = os.ExpandEnv(path)

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	return path
}

var (
	validBackends = map[string]bool{"template": true, "ytdlp": true}
	validLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats  = map[string]bool{"json": true, "console": true}
	validProxies  = map[string]bool{"http": true, "https": true, "socks5": true}
)

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Download.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if config.Download.ConcurrentLimit < 1 {
		return fmt.Errorf("concurrent limit must be at least 1")
	}

	if config.Download.ConcurrentPerPlatform < 1 {
		return fmt.Errorf("concurrent per platform must be at least 1")
	}

	if config.Download.SpeedLimit < 0 {
		return fmt.Errorf("speed limit cannot be negative")
	}

	if err := naming.Validate(naming.Resolve(config.Download.FilenameTemplate)); err != nil {
		return fmt.Errorf("invalid filename template: %w", err)
	}

	if config.Queue.DatabasePath == "" {
		return fmt.Errorf("queue database path not configured")
	}

	if config.Network.MaxConnections < 1 || config.Network.MaxConnectionsPerHost < 1 {
		return fmt.Errorf("connection limits must be at least 1")
	}

	if config.Network.ProxyURL != "" {
		u, err := url.Parse(config.Network.ProxyURL)
		if err != nil || !validProxies[u.Scheme] || u.Host == "" {
			return fmt.Errorf("invalid proxy url: %s", config.Network.ProxyURL)
		}
	}

	if !validBackends[config.Extractor.Backend] {
		return fmt.Errorf("unknown extractor backend: %s", config.Extractor.Backend)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if !validLevels[config.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "console"
	}
	if !validFormats[config.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	return SaveConfigFs(afero.NewOsFs(), config, path)
}

// SaveConfigFs saves configuration to path on fs
func SaveConfigFs(fs afero.Fs, config *domain.Config, path string) error {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("yaml")

	for key, value := range flatten(config) {
		v.Set(key, value)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// flatten maps dotted mapstructure keys to leaf values. Durations are
// rendered as strings so the written file reads back unchanged.
func flatten(config *domain.Config) map[string]interface{} {
	out := make(map[string]interface{})
	flattenValue("", reflect.ValueOf(config).Elem(), out)
	return out
}

func flattenValue(prefix string, rv reflect.Value, out map[string]interface{}) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := rv.Field(i)
		switch {
		case fv.Type() == durationType:
			out[key] = time.Duration(fv.Int()).String()
		case fv.Kind() == reflect.Struct:
			flattenValue(key, fv, out)
		default:
			out[key] = fv.Interface()
		}
	}
}
