package main

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/schollz/progressbar/v3"
	"github.com/yourusername/vidgrab-go/internal/domain"
)

// progressEvent mirrors the events pushed on /api/v1/ws/progress
type progressEvent struct {
	DownloadID      string                `json:"download_id"`
	Title           string                `json:"title"`
	Status          domain.DownloadStatus `json:"status"`
	Progress        float64               `json:"progress"`
	DownloadedBytes int64                 `json:"downloaded_bytes"`
	TotalBytes      int64                 `json:"total_bytes"`
	FilePath        string                `json:"file_path"`
	Error           string                `json:"error"`
}

func newProgressBar(total int64, description string) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// waitForDownload renders progress events for id until it reaches a final state
func waitForDownload(api *apiClient, id string) error {
	var current domain.Download
	if err := api.get("/api/v1/downloads/"+id, nil, &current); err != nil {
		return err
	}
	if current.IsTerminal() {
		return reportFinal(progressEvent{
			DownloadID: current.ID,
			Status:     current.Status,
			FilePath:   current.FilePath,
			Error:      current.ErrorMessage,
		})
	}

	target, err := api.wsURL("/api/v1/ws/progress", url.Values{"id": {id}})
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to progress stream: %w", err)
	}
	defer conn.Close()

	description := current.Title
	if description == "" {
		description = truncate(current.URL, 40)
	}
	bar := newProgressBar(current.TotalBytes, description)
	total := current.TotalBytes

	for {
		var event progressEvent
		if err := conn.ReadJSON(&event); err != nil {
			return fmt.Errorf("progress stream closed: %w", err)
		}

		if event.Title != "" && event.Title != description {
			description = event.Title
			bar.Describe(truncate(description, 40))
		}
		if event.TotalBytes > 0 && event.TotalBytes != total {
			total = event.TotalBytes
			bar.ChangeMax64(total)
		}
		_ = bar.Set64(event.DownloadedBytes)

		switch event.Status {
		case domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled:
			if event.Status == domain.StatusCompleted {
				_ = bar.Finish()
			}
			fmt.Fprintln(os.Stderr)
			return reportFinal(event)
		}
	}
}

func reportFinal(event progressEvent) error {
	switch event.Status {
	case domain.StatusCompleted:
		fmt.Printf("Download completed: %s\n", event.FilePath)
		return nil
	case domain.StatusCancelled:
		fmt.Println("Download cancelled")
		return nil
	default:
		return fmt.Errorf("download failed: %s", event.Error)
	}
}
