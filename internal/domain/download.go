package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DownloadStatus represents the current status of a download
type DownloadStatus string

const (
	StatusQueued     DownloadStatus = "queued"
	StatusProcessing DownloadStatus = "processing"
	StatusCompleted  DownloadStatus = "completed"
	StatusFailed     DownloadStatus = "failed"
	StatusCancelled  DownloadStatus = "cancelled"
)

// ValidateStatus checks if a status is valid
func ValidateStatus(status DownloadStatus) bool {
	switch status {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Download represents a download task
type Download struct {
	ID              string         `json:"id" gorm:"primaryKey"`
	URL             string         `json:"url" gorm:"not null;index"`
	Platform        Platform       `json:"platform" gorm:"not null;index"`
	Status          DownloadStatus `json:"status" gorm:"not null;index"`
	Priority        int            `json:"priority" gorm:"default:0;index"`
	RetryCount      int            `json:"retry_count" gorm:"default:0"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	FilePath        string         `json:"file_path,omitempty"`
	Title           string         `json:"title,omitempty"`
	Quality         string         `json:"quality,omitempty"`
	AudioOnly       bool           `json:"audio_only"`
	Metadata        string         `json:"metadata,omitempty" gorm:"type:text"` // JSON VideoMetadata
	Progress        float64        `json:"progress"`
	DownloadedBytes int64          `json:"downloaded_bytes"`
	TotalBytes      int64          `json:"total_bytes"`
	Speed           float64        `json:"speed"` // bytes per second
	ETA             int64          `json:"eta"`   // seconds
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// NewDownload creates a new download task
func NewDownload(url string, platform Platform) *Download {
	now := time.Now()
	return &Download{
		ID:         uuid.New().String(),
		URL:        url,
		Platform:   platform,
		Status:     StatusQueued,
		Priority:   0,
		RetryCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MarkProcessing marks the download as processing
func (d *Download) MarkProcessing() {
	d.Status = StatusProcessing
	d.ErrorMessage = ""
	now := time.Now()
	d.StartedAt = &now
	d.UpdatedAt = now
}

// MarkCompleted marks the download as completed
func (d *Download) MarkCompleted(filePath string) {
	d.Status = StatusCompleted
	d.FilePath = filePath
	d.Progress = 100
	d.ETA = 0
	if d.TotalBytes > 0 {
		d.DownloadedBytes = d.TotalBytes
	}
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkFailed marks the download as failed
func (d *Download) MarkFailed(err error) {
	d.Status = StatusFailed
	d.ErrorMessage = err.Error()
	d.Speed = 0
	d.ETA = 0
	d.UpdatedAt = time.Now()
}

// MarkCancelled marks the download as cancelled
func (d *Download) MarkCancelled() {
	d.Status = StatusCancelled
	d.Speed = 0
	d.ETA = 0
	d.UpdatedAt = time.Now()
}

// ResetForRetry puts a failed or cancelled download back in the queue
func (d *Download) ResetForRetry() {
	d.Status = StatusQueued
	d.RetryCount = 0
	d.ErrorMessage = ""
	d.Progress = 0
	d.DownloadedBytes = 0
	d.Speed = 0
	d.ETA = 0
	d.StartedAt = nil
	d.CompletedAt = nil
	d.UpdatedAt = time.Now()
}

// IncrementRetry increments the retry count
func (d *Download) IncrementRetry() {
	d.RetryCount++
	d.UpdatedAt = time.Now()
}

// CanRetry checks if the download can be retried
func (d *Download) CanRetry(maxRetries int) bool {
	return d.RetryCount < maxRetries && d.Status == StatusFailed
}

// IsTerminal checks if the download is in a terminal state
func (d *Download) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusCancelled
}

// IsPending checks if the download is pending
func (d *Download) IsPending() bool {
	return d.Status == StatusQueued
}

// IsProcessing checks if the download is currently processing
func (d *Download) IsProcessing() bool {
	return d.Status == StatusProcessing
}

// IsActive reports whether the download is queued or running
func (d *Download) IsActive() bool {
	return d.IsPending() || d.IsProcessing()
}

// UpdateProgress records transfer counters and derives progress and ETA
func (d *Download) UpdateProgress(downloaded, total int64, speed float64) {
	d.DownloadedBytes = downloaded
	d.TotalBytes = total
	d.Speed = speed

	if total > 0 {
		d.Progress = float64(downloaded) / float64(total) * 100
		if d.Progress > 100 {
			d.Progress = 100
		}
		if speed > 0 && downloaded < total {
			d.ETA = int64(float64(total-downloaded) / speed)
		} else {
			d.ETA = 0
		}
	} else {
		d.Progress = 0
		d.ETA = 0
	}
	d.UpdatedAt = time.Now()
}

// SetMetadata stores the video metadata as JSON and copies the title
func (d *Download) SetMetadata(meta *VideoMetadata) error {
	if meta == nil {
		return nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	d.Metadata = string(data)
	if d.Title == "" {
		d.Title = meta.Title
	}
	return nil
}

// GetMetadata decodes the stored video metadata, nil when absent
func (d *Download) GetMetadata() (*VideoMetadata, error) {
	if d.Metadata == "" {
		return nil, nil
	}
	var meta VideoMetadata
	if err := json.Unmarshal([]byte(d.Metadata), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
