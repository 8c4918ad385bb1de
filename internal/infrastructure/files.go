package infrastructure

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yourusername/vidgrab-go/internal/domain"
)

// progressInterval limits how often downloaders invoke their ProgressFunc
const progressInterval = 250 * time.Millisecond

// moveFile renames src to dst, copying across filesystems when needed
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create completed directory: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to move file %s: %w", src, err)
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// uniquePath returns path, or "name (n).ext" when path already exists
func uniquePath(path string) string {
	if !fileExists(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if !fileExists(candidate) {
			return candidate
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func prepareDirs(req *domain.DownloadRequest) error {
	if req.IncomingDir == "" || req.CompletedDir == "" {
		return fmt.Errorf("download directories are not configured")
	}
	if err := os.MkdirAll(req.IncomingDir, 0755); err != nil {
		return fmt.Errorf("failed to create incoming directory: %w", err)
	}
	if err := os.MkdirAll(req.CompletedDir, 0755); err != nil {
		return fmt.Errorf("failed to create completed directory: %w", err)
	}
	return nil
}

// progressTracker aggregates bytes from concurrent writers and reports them
// through a ProgressFunc at most once per progressInterval
type progressTracker struct {
	fn      domain.ProgressFunc
	total   atomic.Int64
	done    atomic.Int64
	resumed int64
	started time.Time
	last    atomic.Int64 // unix nanos of the last report
}

func newProgressTracker(fn domain.ProgressFunc, total, resumed int64) *progressTracker {
	t := &progressTracker{fn: fn, resumed: resumed, started: time.Now()}
	t.total.Store(total)
	t.done.Store(resumed)
	return t
}

func (t *progressTracker) add(n int) {
	t.done.Add(int64(n))
	now := time.Now().UnixNano()
	last := t.last.Load()
	if now-last < int64(progressInterval) || !t.last.CompareAndSwap(last, now) {
		return
	}
	t.report()
}

func (t *progressTracker) report() {
	if t.fn == nil {
		return
	}
	done := t.done.Load()
	var speed float64
	if elapsed := time.Since(t.started).Seconds(); elapsed > 0 {
		speed = float64(done-t.resumed) / elapsed
	}
	t.fn(done, t.total.Load(), speed)
}

// Write lets the tracker sit behind an io.TeeReader
func (t *progressTracker) Write(p []byte) (int, error) {
	t.add(len(p))
	return len(p), nil
}
