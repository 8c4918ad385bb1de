package portable

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidgrab-go/internal/domain"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func newTestManager(t *testing.T, fs afero.Fs, goos string, vars map[string]string, force bool) *Manager {
	t.Helper()
	m, err := New(Options{
		Fs:            fs,
		AppDir:        "/opt/vidgrab",
		HomeDir:       "/home/user",
		GOOS:          goos,
		Getenv:        env(vars),
		ForcePortable: force,
	})
	require.NoError(t, err)
	return m
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(fs afero.Fs)
		vars     map[string]string
		force    bool
		portable bool
	}{
		{"default installed", nil, nil, false, false},
		{"marker file", func(fs afero.Fs) { afero.WriteFile(fs, "/opt/vidgrab/portable.txt", nil, 0644) }, nil, false, true},
		{"flag file", func(fs afero.Fs) { afero.WriteFile(fs, "/opt/vidgrab/.portable", nil, 0644) }, nil, false, true},
		{"data dir", func(fs afero.Fs) { fs.MkdirAll("/opt/vidgrab/Data", 0755) }, nil, false, true},
		{"env yes", nil, map[string]string{EnvPortable: "YES"}, false, true},
		{"env other", nil, map[string]string{EnvPortable: "maybe"}, false, false},
		{"config override", nil, nil, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tt.setup != nil {
				tt.setup(fs)
			}
			m := newTestManager(t, fs, "linux", tt.vars, tt.force)
			assert.Equal(t, tt.portable, m.IsPortable())
		})
	}
}

func TestPortableLayout(t *testing.T) {
	m := newTestManager(t, afero.NewMemMapFs(), "linux", nil, true)

	assert.Equal(t, "/opt/vidgrab/Data", m.DataDir())
	assert.Equal(t, "/opt/vidgrab/Data/Config", m.ConfigDir())
	assert.Equal(t, "/opt/vidgrab/Data/Cache", m.CacheDir())
	assert.Equal(t, "/opt/vidgrab/Data/Logs", m.LogsDir())
	assert.Equal(t, "/opt/vidgrab/Data/Downloads", m.DownloadsDir())
	assert.Equal(t, "/opt/vidgrab/Data/vidgrab.db", m.DatabasePath())
	assert.Equal(t, "/opt/vidgrab/Data/Config/config.yaml", m.ConfigFile("config.yaml"))
	assert.Equal(t, "/opt/vidgrab/Data/Logs/app.log", m.LogFile("app.log"))
	assert.Equal(t, "/opt/vidgrab/Data/Cache/thumbs.db", m.CacheFile("thumbs.db"))
}

func TestInstalledLayout_Linux(t *testing.T) {
	m := newTestManager(t, afero.NewMemMapFs(), "linux", nil, false)

	assert.Equal(t, "/home/user/.local/share/VidGrab", m.DataDir())
	assert.Equal(t, "/home/user/.config/VidGrab", m.ConfigDir())
	assert.Equal(t, "/home/user/.cache/VidGrab", m.CacheDir())
	assert.Equal(t, "/home/user/.local/share/VidGrab/Logs", m.LogsDir())
	assert.Equal(t, "/home/user/Downloads/VidGrab", m.DownloadsDir())

	xdg := newTestManager(t, afero.NewMemMapFs(), "linux", map[string]string{
		"XDG_DATA_HOME":   "/xdg/data",
		"XDG_CONFIG_HOME": "/xdg/config",
		"XDG_CACHE_HOME":  "/xdg/cache",
	}, false)
	assert.Equal(t, "/xdg/data/VidGrab", xdg.DataDir())
	assert.Equal(t, "/xdg/config/VidGrab", xdg.ConfigDir())
	assert.Equal(t, "/xdg/cache/VidGrab", xdg.CacheDir())
}

func TestInstalledLayout_Darwin(t *testing.T) {
	m := newTestManager(t, afero.NewMemMapFs(), "darwin", nil, false)

	assert.Equal(t, "/home/user/Library/Application Support/VidGrab", m.DataDir())
	assert.Equal(t, "/home/user/Library/Preferences/VidGrab", m.ConfigDir())
	assert.Equal(t, "/home/user/Library/Caches/VidGrab", m.CacheDir())
}

func TestEnsureDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := newTestManager(t, fs, "linux", nil, false)

	require.NoError(t, m.EnsureDirectories())

	for _, dir := range []string{m.DataDir(), m.ConfigDir(), m.CacheDir(), m.LogsDir(), m.DownloadsDir()} {
		ok, err := afero.DirExists(fs, dir)
		require.NoError(t, err)
		assert.True(t, ok, dir)
	}
}

func TestCreatePortableStructure(t *testing.T) {
	installed := newTestManager(t, afero.NewMemMapFs(), "linux", nil, false)
	assert.ErrorIs(t, installed.CreatePortableStructure(), domain.ErrNotPortable)

	fs := afero.NewMemMapFs()
	m := newTestManager(t, fs, "linux", nil, true)
	require.NoError(t, m.CreatePortableStructure())

	ok, _ := afero.Exists(fs, "/opt/vidgrab/portable.txt")
	assert.True(t, ok)
	for _, sub := range []string{"Config", "Cache", "Logs", "Downloads", "Plugins", "Backups"} {
		ok, _ := afero.DirExists(fs, "/opt/vidgrab/Data/"+sub)
		assert.True(t, ok, sub)
	}

	// Detected from the marker on the next start
	again := newTestManager(t, fs, "linux", nil, false)
	assert.True(t, again.IsPortable())
}

func TestMigrateFromInstalled(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/home/user/.local/share/VidGrab/config.yaml", []byte("server:\n  port: 9000\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/home/user/.local/share/VidGrab/vidgrab.db", []byte("db"), 0644))

	m := newTestManager(t, fs, "linux", nil, true)

	migrated, err := m.MigrateFromInstalled("")
	require.NoError(t, err)
	assert.True(t, migrated)

	data, err := afero.ReadFile(fs, m.ConfigFile("config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "port: 9000")

	data, err = afero.ReadFile(fs, m.DatabasePath())
	require.NoError(t, err)
	assert.Equal(t, "db", string(data))

	// Existing files are never overwritten
	migrated, err = m.MigrateFromInstalled("")
	require.NoError(t, err)
	assert.False(t, migrated)
}

func TestMigrateFromInstalled_NothingToDo(t *testing.T) {
	installed := newTestManager(t, afero.NewMemMapFs(), "linux", nil, false)
	migrated, err := installed.MigrateFromInstalled("")
	require.NoError(t, err)
	assert.False(t, migrated)

	m := newTestManager(t, afero.NewMemMapFs(), "linux", nil, true)
	migrated, err = m.MigrateFromInstalled("/does/not/exist")
	require.NoError(t, err)
	assert.False(t, migrated)
}

func TestInfo(t *testing.T) {
	m := newTestManager(t, afero.NewMemMapFs(), "linux", nil, true)
	info := m.Info()

	assert.True(t, info.IsPortable)
	assert.Equal(t, "/opt/vidgrab", info.AppDirectory)
	assert.Equal(t, m.DatabasePath(), info.DatabasePath)
	assert.Equal(t, m.DownloadsDir(), info.DownloadsDirectory)
}
