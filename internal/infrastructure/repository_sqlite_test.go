package infrastructure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidgrab-go/internal/domain"
)

func setupTestRepo(t *testing.T) (*SQLiteDownloadRepository, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "repo-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewSQLiteDownloadRepository(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

func TestFindByID_NotFound(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	found, err := repo.FindByID("missing")
	assert.ErrorIs(t, err, domain.ErrDownloadNotFound)
	assert.Nil(t, found)
}

func TestCreateUpdate_PersistsProgress(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	dl := domain.NewDownload("https://www.youtube.com/watch?v=abc", domain.PlatformYouTube)
	dl.Quality = "720p"
	require.NoError(t, repo.Create(dl))

	dl.MarkProcessing()
	dl.UpdateProgress(256, 1024, 128)
	require.NoError(t, repo.Update(dl))

	found, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, found.Status)
	assert.Equal(t, "720p", found.Quality)
	assert.Equal(t, int64(256), found.DownloadedBytes)
	assert.InDelta(t, 25.0, found.Progress, 0.001)
	assert.Equal(t, int64(6), found.ETA)
}

func TestFindByURL_ReturnsMatchingDownload(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	dl := domain.NewDownload("https://www.bilibili.com/video/BV1xx411c7mD", domain.PlatformBilibili)
	dl.MarkCompleted("/path/to/file.mp4")
	require.NoError(t, repo.Create(dl))

	found, err := repo.FindByURL("https://www.bilibili.com/video/BV1xx411c7mD", []domain.DownloadStatus{domain.StatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, dl.ID, found.ID)
	assert.Equal(t, domain.StatusCompleted, found.Status)
}

func TestFindByURL_ReturnsNilWhenNoMatch(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	found, err := repo.FindByURL("https://www.twitch.tv/videos/999", []domain.DownloadStatus{domain.StatusQueued, domain.StatusCompleted})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindByURL_FiltersOnStatus(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	dl := domain.NewDownload("https://www.twitch.tv/videos/456", domain.PlatformTwitch)
	dl.MarkFailed(assert.AnError)
	require.NoError(t, repo.Create(dl))

	found, err := repo.FindByURL("https://www.twitch.tv/videos/456", []domain.DownloadStatus{
		domain.StatusQueued,
		domain.StatusProcessing,
		domain.StatusCompleted,
	})
	require.NoError(t, err)
	assert.Nil(t, found, "failed download should not match active statuses")

	found, err = repo.FindByURL("https://www.twitch.tv/videos/456", []domain.DownloadStatus{domain.StatusFailed})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, dl.ID, found.ID)
}

func TestFindByURL_ReturnsMostRecent(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	url := "https://vimeo.com/789"

	old := domain.NewDownload(url, domain.PlatformYouTube)
	old.MarkFailed(assert.AnError)
	old.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(old))

	newer := domain.NewDownload(url, domain.PlatformYouTube)
	require.NoError(t, repo.Create(newer))

	found, err := repo.FindByURL(url, []domain.DownloadStatus{domain.StatusQueued, domain.StatusFailed})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, newer.ID, found.ID)
}

func TestFindPending_OrdersByPriority(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	low := domain.NewDownload("https://www.youtube.com/watch?v=low", domain.PlatformYouTube)
	low.CreatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Create(low))

	high := domain.NewDownload("https://www.youtube.com/watch?v=high", domain.PlatformYouTube)
	high.Priority = 5
	require.NoError(t, repo.Create(high))

	done := domain.NewDownload("https://www.youtube.com/watch?v=done", domain.PlatformYouTube)
	done.MarkCompleted("/tmp/done.mp4")
	require.NoError(t, repo.Create(done))

	pending, err := repo.FindPending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, high.ID, pending[0].ID)
	assert.Equal(t, low.ID, pending[1].ID)
}

func TestFindAll_Filters(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	require.NoError(t, repo.Create(domain.NewDownload("https://www.youtube.com/watch?v=a", domain.PlatformYouTube)))
	require.NoError(t, repo.Create(domain.NewDownload("https://www.tiktok.com/@u/video/1", domain.PlatformTikTok)))

	all, err := repo.FindAll(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tiktok, err := repo.FindAll(map[string]interface{}{"platform": domain.PlatformTikTok})
	require.NoError(t, err)
	require.Len(t, tiktok, 1)
	assert.Equal(t, domain.PlatformTikTok, tiktok[0].Platform)

	limited, err := repo.FindAll(map[string]interface{}{"limit": 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = repo.FindAll(map[string]interface{}{"1=1; drop table downloads; --": 1})
	assert.Error(t, err)
}

func TestResetOrphanedProcessing(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	stuck := domain.NewDownload("https://www.youtube.com/watch?v=stuck", domain.PlatformYouTube)
	stuck.MarkProcessing()
	require.NoError(t, repo.Create(stuck))

	queued := domain.NewDownload("https://www.youtube.com/watch?v=queued", domain.PlatformYouTube)
	require.NoError(t, repo.Create(queued))

	n, err := repo.ResetOrphanedProcessing()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	found, err := repo.FindByID(stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, found.Status)

	active, err := repo.CountActive()
	require.NoError(t, err)
	assert.Equal(t, int64(2), active)
}

func TestGetStats(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	completed := domain.NewDownload("https://www.youtube.com/watch?v=1", domain.PlatformYouTube)
	completed.MarkCompleted("/tmp/1.mp4")
	failed := domain.NewDownload("https://www.youtube.com/watch?v=2", domain.PlatformYouTube)
	failed.MarkFailed(assert.AnError)
	queued := domain.NewDownload("https://www.youtube.com/watch?v=3", domain.PlatformYouTube)

	for _, d := range []*domain.Download{completed, failed, queued} {
		require.NoError(t, repo.Create(d))
	}

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Queued)

	require.NoError(t, repo.Delete(failed.ID))
	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
