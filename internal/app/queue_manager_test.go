package app

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidgrab-go/internal/domain"
)

// mockRepo implements domain.DownloadRepository for testing. It stores
// copies so that callers cannot mutate stored records, like a database.
type mockRepo struct {
	mu        sync.Mutex
	downloads []*domain.Download
	updates   map[string]int
}

func newMockRepo() *mockRepo {
	return &mockRepo{updates: make(map[string]int)}
}

func clone(d *domain.Download) *domain.Download {
	c := *d
	return &c
}

func (m *mockRepo) Create(download *domain.Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, clone(download))
	return nil
}

func (m *mockRepo) Update(download *domain.Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[download.ID]++
	for i, d := range m.downloads {
		if d.ID == download.ID {
			m.downloads[i] = clone(download)
			return nil
		}
	}
	return nil
}

func (m *mockRepo) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.downloads {
		if d.ID == id {
			m.downloads = append(m.downloads[:i], m.downloads[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockRepo) FindByID(id string) (*domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.downloads {
		if d.ID == id {
			return clone(d), nil
		}
	}
	return nil, domain.ErrDownloadNotFound
}

func (m *mockRepo) FindByURL(url string, statuses []domain.DownloadStatus) (*domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.downloads) - 1; i >= 0; i-- {
		d := m.downloads[i]
		if d.URL != url {
			continue
		}
		for _, s := range statuses {
			if d.Status == s {
				return clone(d), nil
			}
		}
	}
	return nil, nil
}

func (m *mockRepo) FindByStatus(status domain.DownloadStatus) ([]*domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Download
	for _, d := range m.downloads {
		if d.Status == status {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

func (m *mockRepo) FindPending() ([]*domain.Download, error) {
	pending, _ := m.FindByStatus(domain.StatusQueued)
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Priority > pending[j].Priority })
	return pending, nil
}

func (m *mockRepo) FindAll(filters map[string]interface{}) ([]*domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Download
	for _, d := range m.downloads {
		if s, ok := filters["status"]; ok && string(d.Status) != s {
			continue
		}
		out = append(out, clone(d))
	}
	return out, nil
}

func (m *mockRepo) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.downloads)), nil
}

func (m *mockRepo) CountByStatus(status domain.DownloadStatus) (int64, error) {
	ds, _ := m.FindByStatus(status)
	return int64(len(ds)), nil
}

func (m *mockRepo) CountActive() (int64, error) {
	q, _ := m.CountByStatus(domain.StatusQueued)
	p, _ := m.CountByStatus(domain.StatusProcessing)
	return q + p, nil
}

func (m *mockRepo) ResetOrphanedProcessing() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.downloads {
		if d.Status == domain.StatusProcessing {
			d.Status = domain.StatusQueued
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) GetStats() (*domain.DownloadStats, error) {
	stats := &domain.DownloadStats{}
	stats.Total, _ = m.Count()
	stats.Queued, _ = m.CountByStatus(domain.StatusQueued)
	stats.Processing, _ = m.CountByStatus(domain.StatusProcessing)
	stats.Completed, _ = m.CountByStatus(domain.StatusCompleted)
	stats.Failed, _ = m.CountByStatus(domain.StatusFailed)
	stats.Cancelled, _ = m.CountByStatus(domain.StatusCancelled)
	return stats, nil
}

func (m *mockRepo) updateCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates[id]
}

func (m *mockRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.downloads)
}

// setStatus changes a stored record in place
func (m *mockRepo) setStatus(id string, status domain.DownloadStatus, filePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.downloads {
		if d.ID == id {
			d.Status = status
			d.FilePath = filePath
		}
	}
}

// fakeClassifier accepts every URL except those containing "unsupported"
type fakeClassifier struct{}

func (fakeClassifier) Classify(rawURL string) (domain.Platform, string, error) {
	if strings.Contains(rawURL, "unsupported") {
		return "", "", domain.ErrUnsupportedURL
	}
	return domain.PlatformYouTube, strings.TrimSpace(rawURL), nil
}

func testQueueConfig() domain.QueueConfig {
	return domain.QueueConfig{
		CheckInterval:   10 * time.Millisecond,
		AutoExitOnEmpty: false,
		EmptyWaitTime:   30 * time.Second,
	}
}

func newTestQueueManager(repo domain.DownloadRepository) *QueueManager {
	return NewQueueManager(repo, nil, fakeClassifier{}, nil, testQueueConfig(), nil)
}

func TestAddDownload_NewURL(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	dl, err := qm.AddDownload(" https://youtu.be/dQw4w9WgXcQ ", "720p", true)
	require.NoError(t, err)
	require.NotNil(t, dl)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", dl.URL)
	assert.Equal(t, domain.PlatformYouTube, dl.Platform)
	assert.Equal(t, domain.StatusQueued, dl.Status)
	assert.Equal(t, "720p", dl.Quality)
	assert.True(t, dl.AudioOnly)
	assert.Equal(t, 1, repo.len())
}

func TestAddDownload_Unsupported(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	_, err := qm.AddDownload("https://unsupported.example.com/1", "", false)
	assert.ErrorIs(t, err, domain.ErrUnsupportedURL)
	assert.Zero(t, repo.len())
}

func TestAddDownload_DuplicateQueued(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	first, err := qm.AddDownload("https://youtu.be/dQw4w9WgXcQ", "", false)
	require.NoError(t, err)

	second, err := qm.AddDownload("https://youtu.be/dQw4w9WgXcQ", "", false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "should return existing download, not create new one")
	assert.Equal(t, 1, repo.len(), "should not create a second entry")
}

func TestAddDownload_DuplicateCompleted_FileExists(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	tmpFile, err := os.CreateTemp(t.TempDir(), "test_download_*.mp4")
	require.NoError(t, err)
	tmpFile.Close()

	first, err := qm.AddDownload("https://youtu.be/exists", "", false)
	require.NoError(t, err)
	repo.setStatus(first.ID, domain.StatusCompleted, tmpFile.Name())

	second, err := qm.AddDownload("https://youtu.be/exists", "", false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "should return existing completed download")
	assert.Equal(t, domain.StatusCompleted, second.Status)
	assert.Equal(t, 1, repo.len())
}

func TestAddDownload_DuplicateCompleted_FileMissing(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	first, err := qm.AddDownload("https://youtu.be/missing", "", false)
	require.NoError(t, err)
	repo.setStatus(first.ID, domain.StatusCompleted, "/path/to/nonexistent/file.mp4")

	second, err := qm.AddDownload("https://youtu.be/missing", "", false)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "should create new download when file is missing")
	assert.Equal(t, domain.StatusQueued, second.Status)
	assert.Equal(t, 2, repo.len())
}

func TestAddDownload_AllowsRetryAfterFailureOrCancellation(t *testing.T) {
	for _, status := range []domain.DownloadStatus{domain.StatusFailed, domain.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMockRepo()
			qm := newTestQueueManager(repo)

			first, err := qm.AddDownload("https://youtu.be/789", "", false)
			require.NoError(t, err)
			repo.setStatus(first.ID, status, "")

			second, err := qm.AddDownload("https://youtu.be/789", "", false)
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, second.ID)
			assert.Equal(t, domain.StatusQueued, second.Status)
			assert.Equal(t, 2, repo.len())
		})
	}
}

func TestQueueManager_StartStop(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	assert.Error(t, qm.Stop())
	require.NoError(t, qm.Start(context.Background()))
	assert.True(t, qm.IsRunning())
	assert.Error(t, qm.Start(context.Background()))

	require.NoError(t, qm.Stop())
	assert.False(t, qm.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, qm.WaitForExit(ctx))
}

func newProcessingQueue(t *testing.T, repo *mockRepo, dl *fakeDownloader, config domain.QueueConfig) (*QueueManager, *DownloadManager) {
	t.Helper()
	dm := newTestDownloadManager(t, repo, newFakeResolver(), dl, testDownloadConfig(t), nil)
	qm := NewQueueManager(repo, dm, fakeClassifier{}, nil, config, nil)
	return qm, dm
}

func TestQueueManager_ProcessesPendingDownloads(t *testing.T) {
	repo := newMockRepo()
	dl := &fakeDownloader{}
	qm, _ := newProcessingQueue(t, repo, dl, testQueueConfig())

	first, err := qm.AddDownload("https://youtu.be/one", "", false)
	require.NoError(t, err)
	second, err := qm.AddDownload("https://youtu.be/two", "", false)
	require.NoError(t, err)

	require.NoError(t, qm.Start(context.Background()))
	defer qm.Stop()

	assert.Eventually(t, func() bool {
		stats, _ := qm.GetStats()
		return stats.Completed == 2
	}, 3*time.Second, 10*time.Millisecond)

	for _, id := range []string{first.ID, second.ID} {
		d, err := qm.GetDownload(id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, d.Status)
	}
	assert.Equal(t, int32(2), dl.calls.Load())
}

func TestQueueManager_DoesNotDispatchTwice(t *testing.T) {
	repo := newMockRepo()
	dl := &fakeDownloader{block: true}
	qm, dm := newProcessingQueue(t, repo, dl, testQueueConfig())

	d, err := qm.AddDownload("https://youtu.be/slow", "", false)
	require.NoError(t, err)

	require.NoError(t, qm.Start(context.Background()))

	assert.Eventually(t, func() bool { return dm.IsRunning(d.ID) }, 2*time.Second, 10*time.Millisecond)
	// several ticks pass while the download is running
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), dl.calls.Load())
	assert.Equal(t, 1, qm.InFlight())

	require.NoError(t, qm.Stop())
	assert.Zero(t, qm.InFlight())

	// interrupted downloads go back to the queue
	stored, _ := repo.FindByID(d.ID)
	assert.Equal(t, domain.StatusQueued, stored.Status)
}

func TestQueueManager_RequeuesOrphanedOnStart(t *testing.T) {
	repo := newMockRepo()
	dl := &fakeDownloader{}
	qm, _ := newProcessingQueue(t, repo, dl, testQueueConfig())

	orphan := domain.NewDownload("https://youtu.be/orphan", domain.PlatformYouTube)
	orphan.Status = domain.StatusProcessing
	require.NoError(t, repo.Create(orphan))

	require.NoError(t, qm.Start(context.Background()))
	defer qm.Stop()

	assert.Eventually(t, func() bool {
		d, _ := repo.FindByID(orphan.ID)
		return d.Status == domain.StatusCompleted
	}, 3*time.Second, 10*time.Millisecond)
}

func TestQueueManager_AutoExitOnEmpty(t *testing.T) {
	repo := newMockRepo()
	config := testQueueConfig()
	config.AutoExitOnEmpty = true
	config.EmptyWaitTime = 30 * time.Millisecond
	qm, _ := newProcessingQueue(t, repo, &fakeDownloader{}, config)

	require.NoError(t, qm.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, qm.WaitForExit(ctx))
	assert.False(t, qm.IsRunning())
}

func TestQueueManager_DeleteDownload(t *testing.T) {
	repo := newMockRepo()
	dl := &fakeDownloader{block: true}
	qm, dm := newProcessingQueue(t, repo, dl, testQueueConfig())

	idle, err := qm.AddDownload("https://youtu.be/idle", "", false)
	require.NoError(t, err)
	require.NoError(t, dm.CancelDownload(idle.ID))
	require.NoError(t, qm.DeleteDownload(idle.ID))
	_, err = qm.GetDownload(idle.ID)
	assert.ErrorIs(t, err, domain.ErrDownloadNotFound)

	running, err := qm.AddDownload("https://youtu.be/running", "", false)
	require.NoError(t, err)
	require.NoError(t, qm.Start(context.Background()))
	defer qm.Stop()

	assert.Eventually(t, func() bool { return dm.IsRunning(running.ID) }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, qm.DeleteDownload(running.ID))
	assert.False(t, dm.IsRunning(running.ID))

	_, err = qm.GetDownload(running.ID)
	assert.ErrorIs(t, err, domain.ErrDownloadNotFound)
	assert.ErrorIs(t, qm.DeleteDownload("missing"), domain.ErrDownloadNotFound)
}

func TestQueueManager_ListDownloads(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	a, _ := qm.AddDownload("https://youtu.be/a", "", false)
	_, _ = qm.AddDownload("https://youtu.be/b", "", false)
	repo.setStatus(a.ID, domain.StatusFailed, "")

	all, err := qm.ListDownloads(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := qm.ListDownloads(map[string]interface{}{"status": "failed"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, a.ID, failed[0].ID)

	stats, err := qm.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Queued)
	assert.Equal(t, int64(1), stats.Failed)
}
