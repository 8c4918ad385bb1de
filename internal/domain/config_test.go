package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8090, config.Server.Port)
	assert.Equal(t, 3, config.Download.MaxRetries)
	assert.Equal(t, 5*time.Second, config.Download.RetryDelay)
	assert.Equal(t, 3, config.Download.ConcurrentLimit)
	assert.Equal(t, 1, config.Download.ConcurrentPerPlatform)
	assert.True(t, config.Download.AutoStartWorkers)
	assert.Equal(t, "best", config.Download.DefaultQuality)
	assert.Equal(t, 100, config.Network.MaxConnections)
	assert.Equal(t, 30, config.Network.MaxConnectionsPerHost)
	assert.Equal(t, 30*time.Second, config.Network.ConnectionTimeout)
	assert.Equal(t, 300*time.Second, config.Network.ReadTimeout)
	assert.Equal(t, 60*time.Second, config.Network.CleanupInterval)
	assert.Equal(t, "template", config.Extractor.Backend)
	assert.False(t, config.Portable.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestDownloadConfig_Dirs(t *testing.T) {
	cfg := DownloadConfig{BaseDir: "/data/downloads"}
	assert.Equal(t, "/data/downloads/completed", cfg.CompletedDir())
	assert.Equal(t, "/data/downloads/incoming", cfg.IncomingDir())

	cfg.BaseDir = "/data/downloads/"
	assert.Equal(t, "/data/downloads/completed", cfg.CompletedDir())

	cfg.BaseDir = ""
	assert.Empty(t, cfg.IncomingDir())
}
