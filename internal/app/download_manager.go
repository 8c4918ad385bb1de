package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/internal/infrastructure"
	"github.com/yourusername/vidgrab-go/internal/naming"
	"github.com/yourusername/vidgrab-go/internal/plugin"
	"github.com/yourusername/vidgrab-go/pkg/logger"
	"go.uber.org/zap"
)

// progressPersistInterval bounds how often progress is written to the repository
const progressPersistInterval = time.Second

var errCancelledByUser = errors.New("download cancelled")

// MediaResolver turns a page URL into media information
type MediaResolver interface {
	Extract(ctx context.Context, rawURL string) (*plugin.Extraction, error)
}

// DownloadManager manages download operations
type DownloadManager struct {
	repo        domain.DownloadRepository
	resolver    MediaResolver
	downloaders []domain.Downloader
	notifier    *infrastructure.NotificationService
	config      domain.DownloadConfig
	hub         *ProgressHub
	logger      *zap.Logger
	multiLogger *logger.MultiLogger

	global             chan struct{}
	platformSemaphores map[domain.Platform]chan struct{}
	running            map[string]context.CancelCauseFunc
	mu                 sync.Mutex
}

// NewDownloadManager creates a new download manager. Downloaders are tried
// in order and the first one that supports the selected format is used.
func NewDownloadManager(
	repo domain.DownloadRepository,
	resolver MediaResolver,
	downloaders []domain.Downloader,
	notifier *infrastructure.NotificationService,
	config domain.DownloadConfig,
	hub *ProgressHub,
	log *zap.Logger,
	multiLogger *logger.MultiLogger,
) *DownloadManager {
	if log == nil {
		log = zap.NewNop()
	}
	limit := config.ConcurrentLimit
	if limit < 1 {
		limit = 1
	}
	return &DownloadManager{
		repo:               repo,
		resolver:           resolver,
		downloaders:        downloaders,
		notifier:           notifier,
		config:             config,
		hub:                hub,
		logger:             log,
		multiLogger:        multiLogger,
		global:             make(chan struct{}, limit),
		platformSemaphores: make(map[domain.Platform]chan struct{}),
		running:            make(map[string]context.CancelCauseFunc),
	}
}

// platformSemaphore returns the semaphore for platform, creating it on first use
func (dm *DownloadManager) platformSemaphore(platform domain.Platform) chan struct{} {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	sem, ok := dm.platformSemaphores[platform]
	if !ok {
		perPlatform := dm.config.ConcurrentPerPlatform
		if perPlatform < 1 {
			perPlatform = 1
		}
		sem = make(chan struct{}, perPlatform)
		dm.platformSemaphores[platform] = sem
	}
	return sem
}

func acquire(ctx context.Context, sem chan struct{}) error {
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether id is being processed
func (dm *DownloadManager) IsRunning(id string) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	_, ok := dm.running[id]
	return ok
}

// ActiveCount returns the number of downloads being processed
func (dm *DownloadManager) ActiveCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.running)
}

// ProcessDownload processes a single download. It blocks until the download
// reaches a terminal state, is cancelled, or ctx is done.
func (dm *DownloadManager) ProcessDownload(ctx context.Context, download *domain.Download) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	dm.mu.Lock()
	if _, busy := dm.running[download.ID]; busy {
		dm.mu.Unlock()
		cancel(nil)
		return fmt.Errorf("download %s is already running", download.ID)
	}
	dm.running[download.ID] = cancel
	dm.mu.Unlock()

	defer func() {
		dm.mu.Lock()
		delete(dm.running, download.ID)
		dm.mu.Unlock()
		cancel(nil)
	}()

	// Global limit first, then the per-platform one
	if err := acquire(runCtx, dm.global); err != nil {
		return dm.interrupted(runCtx, download)
	}
	defer func() { <-dm.global }()

	platformSem := dm.platformSemaphore(download.Platform)
	if err := acquire(runCtx, platformSem); err != nil {
		return dm.interrupted(runCtx, download)
	}
	defer func() { <-platformSem }()

	// The task may have been cancelled or deleted while waiting
	current, err := dm.repo.FindByID(download.ID)
	if err != nil {
		return fmt.Errorf("failed to reload download: %w", err)
	}
	if !current.IsPending() {
		dm.logger.Debug("Skipping download no longer queued",
			zap.String("id", download.ID),
			zap.String("status", string(current.Status)))
		return nil
	}
	download = current

	dm.logger.Info("Processing download",
		zap.String("id", download.ID),
		zap.String("url", download.URL),
		zap.String("platform", string(download.Platform)))

	download.MarkProcessing()
	if err := dm.repo.Update(download); err != nil {
		return fmt.Errorf("failed to update download status: %w", err)
	}
	dm.hub.Publish(NewProgressEvent(download))
	dm.notifier.NotifyDownloadStarted(download)

	var lastErr error
	for attempt := 0; attempt <= dm.config.MaxRetries; attempt++ {
		if attempt > 0 {
			dm.logger.Info("Retrying download",
				zap.String("id", download.ID),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", dm.config.MaxRetries))

			select {
			case <-time.After(dm.config.RetryDelay):
			case <-runCtx.Done():
				return dm.interrupted(runCtx, download)
			}

			download.IncrementRetry()
			if err := dm.repo.Update(download); err != nil {
				dm.logger.Error("Failed to update retry count", zap.Error(err))
			}
		}

		result, err := dm.attempt(runCtx, download)
		if err == nil {
			download.MarkCompleted(result.FilePath)
			if result.Size > 0 {
				download.TotalBytes = result.Size
				download.DownloadedBytes = result.Size
			}
			if err := dm.repo.Update(download); err != nil {
				dm.logger.Error("Failed to update download status", zap.Error(err))
			}
			dm.hub.Publish(NewProgressEvent(download))

			dm.logger.Info("Download completed",
				zap.String("id", download.ID),
				zap.String("url", download.URL),
				zap.String("file", download.FilePath))

			dm.notifier.NotifyDownloadCompleted(download)
			return nil
		}

		if runCtx.Err() != nil {
			return dm.interrupted(runCtx, download)
		}

		lastErr = err
		dm.logger.Warn("Download attempt failed",
			zap.String("id", download.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if !retryable(err) {
			break
		}
	}

	download.MarkFailed(lastErr)
	if err := dm.repo.Update(download); err != nil {
		dm.logger.Error("Failed to update download status", zap.Error(err))
	}
	dm.hub.Publish(NewProgressEvent(download))

	dm.logger.Error("Download failed after retries",
		zap.String("id", download.ID),
		zap.String("url", download.URL),
		zap.Error(lastErr))
	dm.multiLogger.LogAppError("Download failed",
		zap.String("download_id", download.ID),
		zap.String("url", download.URL),
		zap.Int("retries", download.RetryCount),
		zap.Error(lastErr))

	dm.notifier.NotifyDownloadFailed(download, lastErr)
	return lastErr
}

// attempt resolves, names and fetches the download once
func (dm *DownloadManager) attempt(ctx context.Context, download *domain.Download) (*domain.DownloadResult, error) {
	extraction, err := dm.resolver.Extract(ctx, download.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract media info: %w", err)
	}
	info := extraction.Info

	meta := domain.BuildMetadata(info, extraction.Platform)
	if err := download.SetMetadata(meta); err != nil {
		dm.logger.Warn("Failed to store metadata", zap.String("id", download.ID), zap.Error(err))
	}

	quality := download.Quality
	if quality == "" {
		quality = dm.config.DefaultQuality
	}
	format, err := infrastructure.SelectFormat(info.Formats, quality, download.AudioOnly)
	if err != nil {
		return nil, fmt.Errorf("quality %q: %w", quality, err)
	}

	downloader := dm.downloaderFor(&format)
	if downloader == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoDownloader, format.FormatID)
	}

	req := &domain.DownloadRequest{
		Download: download,
		Info:     info,
		Format:   format,
		Filename: naming.Format(dm.config.FilenameTemplate, naming.Input{
			Metadata: meta,
			Quality:  format.Label(),
			Ext:      format.Ext,
			Index:    1,
			Now:      time.Now(),
		}),
		IncomingDir:  dm.config.IncomingDir(),
		CompletedDir: dm.config.CompletedDir(),
	}

	dm.logger.Debug("Starting transfer",
		zap.String("id", download.ID),
		zap.String("downloader", downloader.Name()),
		zap.String("format", format.FormatID),
		zap.String("filename", req.Filename))

	reporter := &progressReporter{dm: dm, download: download}
	return downloader.Download(ctx, req, reporter.update)
}

// downloaderFor returns the first downloader that supports format
func (dm *DownloadManager) downloaderFor(format *domain.Format) domain.Downloader {
	for _, d := range dm.downloaders {
		if d.Supports(format) {
			return d
		}
	}
	return nil
}

// interrupted records why a running download stopped early
func (dm *DownloadManager) interrupted(runCtx context.Context, download *domain.Download) error {
	if !errors.Is(context.Cause(runCtx), errCancelledByUser) {
		// Shutdown: leave the task for the next run
		if download.IsProcessing() {
			download.Status = domain.StatusQueued
			download.UpdatedAt = time.Now()
			if err := dm.repo.Update(download); err != nil {
				dm.logger.Error("Failed to requeue interrupted download", zap.Error(err))
			}
		}
		return runCtx.Err()
	}

	download.MarkCancelled()
	if err := dm.repo.Update(download); err != nil {
		dm.logger.Error("Failed to update download status", zap.Error(err))
	}
	dm.hub.Publish(NewProgressEvent(download))
	dm.logger.Info("Download cancelled", zap.String("id", download.ID))
	return nil
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrUnsupportedURL),
		errors.Is(err, domain.ErrPluginNotFound),
		errors.Is(err, domain.ErrNoFormat),
		errors.Is(err, domain.ErrNoDownloader),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// CancelDownload cancels a queued or running download
func (dm *DownloadManager) CancelDownload(id string) error {
	download, err := dm.repo.FindByID(id)
	if err != nil {
		return err
	}

	if download.IsTerminal() {
		return fmt.Errorf("%w: download already in terminal state: %s", domain.ErrInvalidState, download.Status)
	}

	dm.mu.Lock()
	cancel, running := dm.running[id]
	dm.mu.Unlock()

	if running {
		// ProcessDownload records the cancellation
		cancel(errCancelledByUser)
		dm.logger.Info("Cancelling running download", zap.String("id", id))
		return nil
	}

	download.MarkCancelled()
	if err := dm.repo.Update(download); err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}
	dm.hub.Publish(NewProgressEvent(download))

	dm.logger.Info("Download cancelled", zap.String("id", id))
	return nil
}

// RetryDownload puts a failed or cancelled download back in the queue
func (dm *DownloadManager) RetryDownload(ctx context.Context, id string) error {
	download, err := dm.repo.FindByID(id)
	if err != nil {
		return err
	}

	switch download.Status {
	case domain.StatusQueued:
		return fmt.Errorf("%w: download is already queued", domain.ErrInvalidState)
	case domain.StatusProcessing:
		return fmt.Errorf("%w: download is currently processing", domain.ErrInvalidState)
	case domain.StatusCompleted:
		return fmt.Errorf("%w: download is already completed", domain.ErrInvalidState)
	}

	download.ResetForRetry()
	if err := dm.repo.Update(download); err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}
	dm.hub.Publish(NewProgressEvent(download))

	dm.logger.Info("Download queued for retry", zap.String("id", id))
	return nil
}

// progressReporter applies downloader progress to the task, publishing every
// update and persisting at most once per progressPersistInterval
type progressReporter struct {
	dm       *DownloadManager
	download *domain.Download

	mu          sync.Mutex
	lastPersist time.Time
}

func (p *progressReporter) update(downloaded, total int64, speed float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.download.UpdateProgress(downloaded, total, speed)
	p.dm.hub.Publish(NewProgressEvent(p.download))

	if time.Since(p.lastPersist) < progressPersistInterval {
		return
	}
	p.lastPersist = time.Now()
	if err := p.dm.repo.Update(p.download); err != nil {
		p.dm.logger.Warn("Failed to persist progress",
			zap.String("id", p.download.ID),
			zap.Error(err))
	}
}
