package app

import (
	"sync"
	"time"

	"github.com/yourusername/vidgrab-go/internal/domain"
)

const subscriberBuffer = 64

// ProgressEvent is a point-in-time view of a download pushed to subscribers
type ProgressEvent struct {
	DownloadID      string                `json:"download_id"`
	URL             string                `json:"url"`
	Title           string                `json:"title,omitempty"`
	Platform        domain.Platform       `json:"platform"`
	Status          domain.DownloadStatus `json:"status"`
	Progress        float64               `json:"progress"`
	DownloadedBytes int64                 `json:"downloaded_bytes"`
	TotalBytes      int64                 `json:"total_bytes"`
	Speed           float64               `json:"speed"`
	ETA             int64                 `json:"eta"`
	FilePath        string                `json:"file_path,omitempty"`
	Error           string                `json:"error,omitempty"`
	Timestamp       time.Time             `json:"timestamp"`
}

// NewProgressEvent snapshots a download
func NewProgressEvent(d *domain.Download) ProgressEvent {
	return ProgressEvent{
		DownloadID:      d.ID,
		URL:             d.URL,
		Title:           d.Title,
		Platform:        d.Platform,
		Status:          d.Status,
		Progress:        d.Progress,
		DownloadedBytes: d.DownloadedBytes,
		TotalBytes:      d.TotalBytes,
		Speed:           d.Speed,
		ETA:             d.ETA,
		FilePath:        d.FilePath,
		Error:           d.ErrorMessage,
		Timestamp:       time.Now(),
	}
}

// ProgressHub fans progress events out to subscribers. Slow subscribers
// lose events instead of blocking the download.
type ProgressHub struct {
	mu     sync.RWMutex
	subs   map[int]chan ProgressEvent
	nextID int
	closed bool
}

// NewProgressHub creates an empty hub
func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[int]chan ProgressEvent)}
}

// Subscribe registers a subscriber. The returned func unsubscribes and
// closes the channel.
func (h *ProgressHub) Subscribe() (<-chan ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ProgressEvent, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers event to every subscriber without blocking
func (h *ProgressHub) Publish(event ProgressEvent) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers
func (h *ProgressHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel
func (h *ProgressHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
