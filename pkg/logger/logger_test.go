package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")

	log, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)
	log.Debug("hello", zap.String("k", "v"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestMultiLogger_CategoriesAndReader(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogQueueEvent("download_queued", zap.String("download_id", "abc"))
	ml.LogPoolEvent("stats_reset", zap.String("host", "https://example.com"))
	ml.LogAppError("boom", zap.String("component", "test"))
	ml.Error().Info("ignored below error level")
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)
	today := time.Now()

	queue, err := reader.ReadLogs(CategoryQueue, today, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "download_queued", queue[0].Message)
	assert.Equal(t, "info", queue[0].Level)
	assert.Equal(t, "abc", queue[0].Fields["download_id"])
	assert.NotEmpty(t, queue[0].Timestamp)

	errs, err := reader.ReadLogs(CategoryError, today, 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "boom", errs[0].Message)

	found, err := reader.SearchLogs(CategoryPool, today, "EXAMPLE.com", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	dates, err := reader.Dates(CategoryQueue)
	require.NoError(t, err)
	assert.Equal(t, []string{today.Format("20060102")}, dates)

	var buf bytes.Buffer
	n, err := reader.Export(CategoryQueue, today, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	missing, err := reader.ReadLogs(CategoryQueue, today.AddDate(0, 0, -3), 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMultiLogger_RotatesDaily(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	defer ml.Close()

	day := time.Date(2024, 5, 1, 23, 59, 0, 0, time.Local)
	ml.now = func() time.Time { return day }
	ml.LogQueueEvent("first")

	day = day.Add(2 * time.Minute)
	ml.LogQueueEvent("second")
	require.NoError(t, ml.Sync())

	assert.FileExists(t, filepath.Join(dir, "queue-20240501.log"))
	assert.FileExists(t, filepath.Join(dir, "queue-20240502.log"))

	reader := NewLogReader(dir)
	entries, err := reader.ReadLogs(CategoryQueue, day, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Message)
}

func TestReadLogs_LimitAndRawLines(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	today := time.Now()

	content := "=== [2024-01-01 10:00:00] Download: abc ===\n$ yt-dlp url\n\n[download] 100%\n"
	require.NoError(t, os.WriteFile(reader.GetLogPath(CategoryDownload, today), []byte(content), 0644))

	entries, err := reader.ReadLogs(CategoryDownload, today, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "$ yt-dlp url", entries[0].Message)
	assert.Equal(t, "[download] 100%", entries[1].Message)
	assert.Equal(t, "download", entries[1].Category)
}

func TestTee(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	log := Tee(zap.NewNop(), ml, CategoryPool).With(zap.String("component", "pool"))
	log.Info("cleanup", zap.Int("hosts", 2))
	log.Debug("not written")
	require.NoError(t, ml.Close())

	entries, err := NewLogReader(dir).ReadLogs(CategoryPool, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cleanup", entries[0].Message)
	assert.Equal(t, "pool", entries[0].Fields["component"])
	assert.Equal(t, float64(2), entries[0].Fields["hosts"])

	assert.NotNil(t, Tee(nil, nil, CategoryPool))
}

func TestTailLogs(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	defer ml.Close()

	reader := NewLogReader(dir)
	reader.pollInterval = 10 * time.Millisecond

	entries := make(chan LogEntry, 1)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- reader.TailLogs(CategoryQueue, entries, stop) }()

	require.Eventually(t, func() bool {
		ml.LogQueueEvent("tailed")
		select {
		case e := <-entries:
			return e.Message == "tailed"
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	close(stop)
	assert.NoError(t, <-done)
}
