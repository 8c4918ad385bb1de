package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/internal/infrastructure"
	"github.com/yourusername/vidgrab-go/pkg/logger"
)

const deleteWaitTimeout = 5 * time.Second

// URLClassifier maps a URL to the platform that serves it
type URLClassifier interface {
	Classify(rawURL string) (domain.Platform, string, error)
}

// QueueManager manages the download queue
type QueueManager struct {
	repo        domain.DownloadRepository
	downloadMgr *DownloadManager
	classifier  URLClassifier
	notifier    *infrastructure.NotificationService
	config      domain.QueueConfig
	multiLogger *logger.MultiLogger

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
	workerWg sync.WaitGroup

	addMu    sync.Mutex
	flightMu sync.Mutex
	inFlight map[string]struct{}
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	repo domain.DownloadRepository,
	downloadMgr *DownloadManager,
	classifier URLClassifier,
	notifier *infrastructure.NotificationService,
	config domain.QueueConfig,
	multiLogger *logger.MultiLogger,
) *QueueManager {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 5 * time.Second
	}
	done := make(chan struct{})
	close(done)
	return &QueueManager{
		repo:        repo,
		downloadMgr: downloadMgr,
		classifier:  classifier,
		notifier:    notifier,
		config:      config,
		multiLogger: multiLogger,
		done:        done,
		inFlight:    make(map[string]struct{}),
	}
}

// Start starts the queue processor. Downloads left processing by a previous
// run are put back in the queue first.
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	if qm.running {
		return fmt.Errorf("queue manager already running")
	}

	if n, err := qm.repo.ResetOrphanedProcessing(); err != nil {
		qm.multiLogger.LogAppError("Failed to reset orphaned downloads", zap.Error(err))
	} else if n > 0 {
		qm.multiLogger.LogQueueEvent("orphaned_downloads_requeued", zap.Int64("count", n))
	}

	workerCtx, cancel := context.WithCancel(ctx)
	qm.running = true
	qm.cancel = cancel
	qm.stopChan = make(chan struct{})
	qm.done = make(chan struct{})

	qm.multiLogger.LogQueueEvent("queue_started")

	qm.workerWg.Add(1)
	go qm.processQueue(workerCtx, qm.stopChan, qm.done)

	return nil
}

// Stop stops the queue processor and interrupts running downloads. They are
// re-queued and resume on the next start.
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	close(qm.stopChan)
	qm.cancel()
	qm.mu.Unlock()

	qm.multiLogger.LogQueueEvent("queue_stopped")
	qm.workerWg.Wait()

	return nil
}

// IsRunning returns whether the queue manager is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// Done is closed when the queue processor exits, either on Stop or after
// the queue stayed empty for EmptyWaitTime with AutoExitOnEmpty set
func (qm *QueueManager) Done() <-chan struct{} {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.done
}

// WaitForExit blocks until the queue processor exits or ctx is done
func (qm *QueueManager) WaitForExit(ctx context.Context) error {
	select {
	case <-qm.Done():
		qm.workerWg.Wait()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddDownload routes url to its platform and queues it. An active download
// for the same URL, or a completed one whose file still exists, is returned
// instead of creating a new task.
func (qm *QueueManager) AddDownload(url, quality string, audioOnly bool) (*domain.Download, error) {
	if qm.classifier == nil {
		return nil, domain.ErrUnsupportedURL
	}
	platform, normalized, err := qm.classifier.Classify(url)
	if err != nil {
		return nil, err
	}

	qm.addMu.Lock()
	defer qm.addMu.Unlock()

	existing, err := qm.repo.FindByURL(normalized, []domain.DownloadStatus{
		domain.StatusQueued,
		domain.StatusProcessing,
		domain.StatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check existing downloads: %w", err)
	}
	if existing != nil && qm.reusable(existing) {
		qm.multiLogger.LogQueueEvent("download_duplicate",
			zap.String("id", existing.ID),
			zap.String("url", normalized),
			zap.String("status", string(existing.Status)))
		return existing, nil
	}

	download := domain.NewDownload(normalized, platform)
	download.Quality = quality
	download.AudioOnly = audioOnly

	if err := qm.repo.Create(download); err != nil {
		return nil, fmt.Errorf("failed to create download: %w", err)
	}

	qm.multiLogger.LogQueueEvent("download_added",
		zap.String("id", download.ID),
		zap.String("url", normalized),
		zap.String("platform", string(platform)),
		zap.String("quality", quality),
		zap.Bool("audio_only", audioOnly))
	qm.notifier.NotifyDownloadQueued(download)

	return download, nil
}

func (qm *QueueManager) reusable(d *domain.Download) bool {
	if d.Status != domain.StatusCompleted {
		return true
	}
	if d.FilePath == "" {
		return false
	}
	_, err := os.Stat(d.FilePath)
	return err == nil
}

// GetDownload retrieves a download by ID
func (qm *QueueManager) GetDownload(id string) (*domain.Download, error) {
	return qm.repo.FindByID(id)
}

// ListDownloads lists all downloads with optional filters
func (qm *QueueManager) ListDownloads(filters map[string]interface{}) ([]*domain.Download, error) {
	return qm.repo.FindAll(filters)
}

// DeleteDownload removes a download, cancelling it first when it is running.
// The downloaded file is left on disk.
func (qm *QueueManager) DeleteDownload(id string) error {
	download, err := qm.repo.FindByID(id)
	if err != nil {
		return err
	}

	if qm.downloadMgr != nil && qm.downloadMgr.IsRunning(id) {
		if err := qm.downloadMgr.CancelDownload(id); err != nil {
			return err
		}
		deadline := time.Now().Add(deleteWaitTimeout)
		for qm.downloadMgr.IsRunning(id) {
			if time.Now().After(deadline) {
				return fmt.Errorf("download %s did not stop in time", id)
			}
			time.Sleep(50 * time.Millisecond)
		}
	}

	if err := qm.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}

	qm.multiLogger.LogQueueEvent("download_deleted",
		zap.String("id", id),
		zap.String("status", string(download.Status)))
	return nil
}

// GetStats returns queue statistics
func (qm *QueueManager) GetStats() (*domain.DownloadStats, error) {
	return qm.repo.GetStats()
}

// InFlight returns the number of downloads handed to workers
func (qm *QueueManager) InFlight() int {
	qm.flightMu.Lock()
	defer qm.flightMu.Unlock()
	return len(qm.inFlight)
}

// claim marks id as dispatched, false when it already is
func (qm *QueueManager) claim(id string) bool {
	qm.flightMu.Lock()
	defer qm.flightMu.Unlock()
	if _, ok := qm.inFlight[id]; ok {
		return false
	}
	qm.inFlight[id] = struct{}{}
	return true
}

func (qm *QueueManager) release(id string) {
	qm.flightMu.Lock()
	defer qm.flightMu.Unlock()
	delete(qm.inFlight, id)
}

// processQueue polls for pending downloads and hands each one to a worker
func (qm *QueueManager) processQueue(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer qm.workerWg.Done()
	defer close(done)

	ticker := time.NewTicker(qm.config.CheckInterval)
	defer ticker.Stop()

	var (
		emptyStartTime time.Time
		hadWork        bool
	)

	for {
		pending, err := qm.repo.FindPending()
		if err != nil {
			qm.multiLogger.LogAppError("Failed to fetch pending downloads", zap.Error(err))
		} else if len(pending) == 0 && qm.InFlight() == 0 {
			if emptyStartTime.IsZero() {
				emptyStartTime = time.Now()
				qm.multiLogger.LogQueueEvent("queue_empty")
				if hadWork {
					qm.notifier.NotifyQueueEmpty()
					hadWork = false
				}
			} else if qm.config.AutoExitOnEmpty && time.Since(emptyStartTime) >= qm.config.EmptyWaitTime {
				qm.multiLogger.LogQueueEvent("queue_auto_exit",
					zap.String("reason", "empty_timeout"),
					zap.Duration("idle", time.Since(emptyStartTime)))
				qm.mu.Lock()
				if qm.running {
					qm.running = false
					qm.cancel()
				}
				qm.mu.Unlock()
				return
			}
		} else {
			emptyStartTime = time.Time{}
			for _, download := range pending {
				if qm.dispatch(ctx, download) {
					hadWork = true
				}
			}
		}

		select {
		case <-ctx.Done():
			qm.multiLogger.LogQueueEvent("queue_processor_stopped",
				zap.String("reason", "context_cancelled"))
			return
		case <-stop:
			qm.multiLogger.LogQueueEvent("queue_processor_stopped",
				zap.String("reason", "stop_signal"))
			return
		case <-ticker.C:
		}
	}
}

// dispatch starts a worker for download unless one is already running.
// The semaphores in DownloadManager control actual concurrency.
func (qm *QueueManager) dispatch(ctx context.Context, download *domain.Download) bool {
	if qm.downloadMgr == nil || !qm.claim(download.ID) {
		return false
	}

	qm.multiLogger.LogQueueEvent("download_started",
		zap.String("id", download.ID),
		zap.String("url", download.URL),
		zap.String("platform", string(download.Platform)))

	qm.workerWg.Add(1)
	go func() {
		defer qm.workerWg.Done()
		defer qm.release(download.ID)

		err := qm.downloadMgr.ProcessDownload(ctx, download)
		switch {
		case err == nil:
			qm.multiLogger.LogQueueEvent("download_finished",
				zap.String("id", download.ID))
		case errors.Is(err, context.Canceled):
			qm.multiLogger.LogQueueEvent("download_interrupted",
				zap.String("id", download.ID))
		default:
			qm.multiLogger.LogQueueEvent("download_failed",
				zap.String("id", download.ID),
				zap.Error(err))
		}
	}()
	return true
}
