// Package portable resolves where VidGrab keeps its configuration, data,
// cache, logs and downloads, either next to the executable (portable mode)
// or in the per-user locations of the host OS.
package portable

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"go.uber.org/zap"
)

const (
	// AppName is the directory name used in per-user locations
	AppName = "VidGrab"

	// EnvPortable forces portable mode when set to 1, true or yes
	EnvPortable = "VIDGRAB_PORTABLE"

	// DatabaseName is the file name of the download database
	DatabaseName = "vidgrab.db"

	// ConfigName is the file name of the main configuration
	ConfigName = "config.yaml"

	markerFile   = "portable.txt"
	markerFlag   = ".portable"
	portableData = "Data"
)

// Options controls how the manager detects its environment.
// Zero values fall back to the real process environment.
type Options struct {
	Fs            afero.Fs
	AppDir        string
	HomeDir       string
	GOOS          string
	Getenv        func(string) string
	ForcePortable bool
	Logger        *zap.Logger
}

// Manager holds the resolved directory layout
type Manager struct {
	fs     afero.Fs
	goos   string
	home   string
	getenv func(string) string
	logger *zap.Logger

	portable  bool
	appDir    string
	dataDir   string
	configDir string
	cacheDir  string
	logsDir   string
}

// Info describes the resolved layout
type Info struct {
	IsPortable         bool   `json:"is_portable"`
	AppDirectory       string `json:"app_directory"`
	DataDirectory      string `json:"data_directory"`
	ConfigDirectory    string `json:"config_directory"`
	CacheDirectory     string `json:"cache_directory"`
	LogsDirectory      string `json:"logs_directory"`
	DatabasePath       string `json:"database_path"`
	DownloadsDirectory string `json:"downloads_directory"`
}

// New detects portable mode and resolves every directory
func New(opts Options) (*Manager, error) {
	m := &Manager{
		fs:     opts.Fs,
		goos:   opts.GOOS,
		home:   opts.HomeDir,
		getenv: opts.Getenv,
		logger: opts.Logger,
		appDir: opts.AppDir,
	}

	if m.fs == nil {
		m.fs = afero.NewOsFs()
	}
	if m.goos == "" {
		m.goos = runtime.GOOS
	}
	if m.getenv == nil {
		m.getenv = os.Getenv
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		m.home = home
	}
	if m.appDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable path: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		m.appDir = filepath.Dir(exe)
	}

	m.portable = m.detect(opts.ForcePortable)
	m.resolve()

	m.logger.Debug("Resolved application paths",
		zap.Bool("portable", m.portable),
		zap.String("app_dir", m.appDir),
		zap.String("data_dir", m.dataDir))

	return m, nil
}

func (m *Manager) detect(force bool) bool {
	for _, name := range []string{markerFile, markerFlag} {
		if ok, _ := afero.Exists(m.fs, filepath.Join(m.appDir, name)); ok {
			return true
		}
	}

	if ok, _ := afero.DirExists(m.fs, filepath.Join(m.appDir, portableData)); ok {
		return true
	}

	switch strings.ToLower(m.getenv(EnvPortable)) {
	case "1", "true", "yes":
		return true
	}

	return force
}

func (m *Manager) resolve() {
	if m.portable {
		m.dataDir = filepath.Join(m.appDir, portableData)
		m.configDir = filepath.Join(m.dataDir, "Config")
		m.cacheDir = filepath.Join(m.dataDir, "Cache")
		m.logsDir = filepath.Join(m.dataDir, "Logs")
		return
	}

	m.dataDir = m.installedDataDir()
	m.configDir = m.installedConfigDir()
	m.cacheDir = m.installedCacheDir()
	m.logsDir = filepath.Join(m.dataDir, "Logs")
}

func (m *Manager) envOr(key string, fallback ...string) string {
	if v := m.getenv(key); v != "" {
		return v
	}
	return filepath.Join(append([]string{m.home}, fallback...)...)
}

func (m *Manager) installedDataDir() string {
	switch m.goos {
	case "windows":
		return filepath.Join(m.envOr("APPDATA", "AppData", "Roaming"), AppName)
	case "darwin":
		return filepath.Join(m.home, "Library", "Application Support", AppName)
	default:
		return filepath.Join(m.envOr("XDG_DATA_HOME", ".local", "share"), AppName)
	}
}

func (m *Manager) installedConfigDir() string {
	switch m.goos {
	case "windows":
		return filepath.Join(m.installedDataDir(), "Config")
	case "darwin":
		return filepath.Join(m.home, "Library", "Preferences", AppName)
	default:
		return filepath.Join(m.envOr("XDG_CONFIG_HOME", ".config"), AppName)
	}
}

func (m *Manager) installedCacheDir() string {
	switch m.goos {
	case "windows":
		return filepath.Join(m.envOr("LOCALAPPDATA", "AppData", "Local"), AppName)
	case "darwin":
		return filepath.Join(m.home, "Library", "Caches", AppName)
	default:
		return filepath.Join(m.envOr("XDG_CACHE_HOME", ".cache"), AppName)
	}
}

// IsPortable reports whether data lives next to the executable
func (m *Manager) IsPortable() bool { return m.portable }

// AppDir returns the directory containing the executable
func (m *Manager) AppDir() string { return m.appDir }

// DataDir returns the data directory
func (m *Manager) DataDir() string { return m.dataDir }

// ConfigDir returns the configuration directory
func (m *Manager) ConfigDir() string { return m.configDir }

// CacheDir returns the cache directory
func (m *Manager) CacheDir() string { return m.cacheDir }

// LogsDir returns the logs directory
func (m *Manager) LogsDir() string { return m.logsDir }

// ConfigFile returns the path of a file in the configuration directory
func (m *Manager) ConfigFile(name string) string { return filepath.Join(m.configDir, name) }

// DataFile returns the path of a file in the data directory
func (m *Manager) DataFile(name string) string { return filepath.Join(m.dataDir, name) }

// CacheFile returns the path of a file in the cache directory
func (m *Manager) CacheFile(name string) string { return filepath.Join(m.cacheDir, name) }

// LogFile returns the path of a file in the logs directory
func (m *Manager) LogFile(name string) string { return filepath.Join(m.logsDir, name) }

// DatabasePath returns the path of the download database
func (m *Manager) DatabasePath() string { return m.DataFile(DatabaseName) }

// DownloadsDir returns the default download directory
func (m *Manager) DownloadsDir() string {
	if m.portable {
		return filepath.Join(m.dataDir, "Downloads")
	}
	return filepath.Join(m.home, "Downloads", AppName)
}

// EnsureDirectories creates the data, config, cache, logs and downloads directories
func (m *Manager) EnsureDirectories() error {
	for _, dir := range []string{m.dataDir, m.configDir, m.cacheDir, m.logsDir, m.DownloadsDir()} {
		if err := m.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CreatePortableStructure writes the portable marker and the Data tree
func (m *Manager) CreatePortableStructure() error {
	if !m.portable {
		return domain.ErrNotPortable
	}

	marker := filepath.Join(m.appDir, markerFile)
	if ok, _ := afero.Exists(m.fs, marker); !ok {
		content := "This file indicates that VidGrab is running in portable mode.\n" +
			"All user data and configuration are stored in the Data folder.\n"
		if err := afero.WriteFile(m.fs, marker, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write portable marker: %w", err)
		}
	}

	for _, sub := range []string{"Config", "Cache", "Logs", "Downloads", "Plugins", "Backups"} {
		dir := filepath.Join(m.dataDir, sub)
		if err := m.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	readme := filepath.Join(m.dataDir, "README.txt")
	if ok, _ := afero.Exists(m.fs, readme); !ok {
		content := "VidGrab Portable Data Directory\n\n" +
			"- Config/: configuration files\n" +
			"- Cache/: temporary cache files\n" +
			"- Logs/: log files\n" +
			"- Downloads/: default download location\n" +
			"- Plugins/: user plugins\n" +
			"- Backups/: configuration and data backups\n"
		if err := afero.WriteFile(m.fs, readme, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write readme: %w", err)
		}
	}

	m.logger.Info("Portable directory structure created", zap.String("data_dir", m.dataDir))
	return nil
}

// InstalledDataDir returns the data directory an installed copy would use
func (m *Manager) InstalledDataDir() string { return m.installedDataDir() }

// MigrateFromInstalled copies the configuration and database of an installed
// copy into the portable tree when they are not already present.
// An empty installedDir uses the OS default location.
func (m *Manager) MigrateFromInstalled(installedDir string) (bool, error) {
	if !m.portable {
		return false, nil
	}
	if installedDir == "" {
		installedDir = m.installedDataDir()
	}

	if ok, _ := afero.DirExists(m.fs, installedDir); !ok {
		m.logger.Info("No installed data found to migrate", zap.String("dir", installedDir))
		return false, nil
	}

	pairs := [][2]string{
		{filepath.Join(installedDir, ConfigName), m.ConfigFile(ConfigName)},
		{filepath.Join(installedDir, "Config", ConfigName), m.ConfigFile(ConfigName)},
		{filepath.Join(installedDir, DatabaseName), m.DatabasePath()},
	}

	migrated := false
	for _, p := range pairs {
		copied, err := m.copyIfAbsent(p[0], p[1])
		if err != nil {
			return migrated, err
		}
		if copied {
			migrated = true
			m.logger.Info("Migrated file", zap.String("from", p[0]), zap.String("to", p[1]))
		}
	}

	return migrated, nil
}

func (m *Manager) copyIfAbsent(src, dst string) (bool, error) {
	if ok, _ := afero.Exists(m.fs, src); !ok {
		return false, nil
	}
	if ok, _ := afero.Exists(m.fs, dst); ok {
		return false, nil
	}

	data, err := afero.ReadFile(m.fs, src)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := m.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	if err := afero.WriteFile(m.fs, dst, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return true, nil
}

// Info returns the resolved layout
func (m *Manager) Info() Info {
	return Info{
		IsPortable:         m.portable,
		AppDirectory:       m.appDir,
		DataDirectory:      m.dataDir,
		ConfigDirectory:    m.configDir,
		CacheDirectory:     m.cacheDir,
		LogsDirectory:      m.logsDir,
		DatabasePath:       m.DatabasePath(),
		DownloadsDirectory: m.DownloadsDir(),
	}
}
