package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/internal/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	copyBufferSize = 32 * 1024
	partSuffix     = ".part"
)

// HTTPDownloader fetches direct media URLs through the connection pool
type HTTPDownloader struct {
	pool   *pool.Manager
	config domain.DownloadConfig
	logger *zap.Logger
}

// NewHTTPDownloader creates a new direct HTTP downloader
func NewHTTPDownloader(p *pool.Manager, config domain.DownloadConfig, logger *zap.Logger) *HTTPDownloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPDownloader{pool: p, config: config, logger: logger}
}

// Name returns the engine name
func (d *HTTPDownloader) Name() string { return "http" }

// Supports reports whether the format has a direct http(s) URL
func (d *HTTPDownloader) Supports(format *domain.Format) bool {
	u := strings.ToLower(format.URL)
	return (strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")) && !format.IsHLS()
}

// Download streams the format into incoming/<name>.part and moves it to the
// completed directory once the transfer finishes
func (d *HTTPDownloader) Download(ctx context.Context, req *domain.DownloadRequest, progress domain.ProgressFunc) (*domain.DownloadResult, error) {
	if err := prepareDirs(req); err != nil {
		return nil, err
	}

	partPath := filepath.Join(req.IncomingDir, req.Filename+partSuffix)
	limiter := newLimiter(d.config.SpeedLimit)

	size, ranges := d.probe(ctx, req.Format.URL)
	if size <= 0 && req.Format.FileSize > 0 {
		size = req.Format.FileSize
	}

	var err error
	if d.useSegments(partPath, size, ranges) {
		err = d.downloadSegmented(ctx, req.Format.URL, partPath, size, limiter, progress)
		if err != nil {
			os.Remove(partPath)
		}
	} else {
		err = d.downloadStream(ctx, req.Format.URL, partPath, size, limiter, progress)
	}
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(partPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat download: %w", err)
	}

	dest := uniquePath(filepath.Join(req.CompletedDir, req.Filename))
	if err := moveFile(partPath, dest); err != nil {
		return nil, err
	}

	if progress != nil {
		progress(info.Size(), info.Size(), 0)
	}
	return &domain.DownloadResult{FilePath: dest, Size: info.Size()}, nil
}

// newLimiter returns a token bucket of bytesPerSec, or nil when unlimited
func newLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := int(bytesPerSec)
	if burst < copyBufferSize {
		burst = copyBufferSize
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// probe issues a HEAD request for the content length and range support.
// Servers that reject HEAD are treated as unknown size.
func (d *HTTPDownloader) probe(ctx context.Context, url string) (int64, bool) {
	resp, err := d.pool.Head(ctx, url, nil)
	if err != nil {
		d.logger.Debug("HEAD request failed", zap.String("url", url), zap.Error(err))
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}
	return resp.ContentLength, strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes")
}

func (d *HTTPDownloader) useSegments(partPath string, size int64, ranges bool) bool {
	if !ranges || size <= 0 || d.config.MaxSegments < 2 {
		return false
	}
	if d.config.SegmentThreshold > 0 && size < d.config.SegmentThreshold {
		return false
	}
	// an existing part file is resumed as a single stream
	return !(d.config.EnableResume && fileExists(partPath))
}

func (d *HTTPDownloader) downloadStream(ctx context.Context, url, partPath string, size int64, limiter *rate.Limiter, progress domain.ProgressFunc) error {
	var offset int64
	if d.config.EnableResume {
		if info, err := os.Stat(partPath); err == nil {
			offset = info.Size()
		}
	}

	var header http.Header
	if offset > 0 {
		header = http.Header{}
		header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.pool.Get(ctx, url, header)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusPartialContent:
		flags |= os.O_APPEND
		d.logger.Info("Resuming download", zap.String("url", url), zap.Int64("offset", offset))
	case http.StatusOK:
		flags |= os.O_TRUNC
		offset = 0
	case http.StatusRequestedRangeNotSatisfiable:
		if offset > 0 && (size <= 0 || offset >= size) {
			return nil
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	default:
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	total := size
	if resp.ContentLength > 0 {
		total = offset + resp.ContentLength
	}

	file, err := os.OpenFile(partPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open part file: %w", err)
	}
	defer file.Close()

	tracker := newProgressTracker(progress, total, offset)
	if err := copyLimited(ctx, file, resp.Body, limiter, tracker); err != nil {
		return err
	}
	if total > 0 && tracker.done.Load() < total {
		return fmt.Errorf("incomplete download: %d of %d bytes", tracker.done.Load(), total)
	}
	return nil
}

func (d *HTTPDownloader) downloadSegmented(ctx context.Context, url, partPath string, size int64, limiter *rate.Limiter, progress domain.ProgressFunc) error {
	file, err := os.OpenFile(partPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open part file: %w", err)
	}
	defer file.Close()

	if err := file.Truncate(size); err != nil {
		return fmt.Errorf("failed to allocate part file: %w", err)
	}

	segments := int64(d.config.MaxSegments)
	chunk := (size + segments - 1) / segments
	tracker := newProgressTracker(progress, size, 0)

	d.logger.Debug("Segmented download",
		zap.String("url", url),
		zap.Int64("size", size),
		zap.Int64("segments", segments))

	g, gctx := errgroup.WithContext(ctx)
	for start := int64(0); start < size; start += chunk {
		start, end := start, start+chunk-1
		if end >= size {
			end = size - 1
		}
		g.Go(func() error {
			return d.fetchRange(gctx, url, file, start, end, limiter, tracker)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if done := tracker.done.Load(); done < size {
		return fmt.Errorf("incomplete download: %d of %d bytes", done, size)
	}
	tracker.report()
	return nil
}

func (d *HTTPDownloader) fetchRange(ctx context.Context, url string, file *os.File, start, end int64, limiter *rate.Limiter, tracker *progressTracker) error {
	header := http.Header{}
	header.Set("Range", "bytes="+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10))

	resp, err := d.pool.Get(ctx, url, header)
	if err != nil {
		return fmt.Errorf("segment %d-%d failed: %w", start, end, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("segment %d-%d: unexpected status: %s", start, end, resp.Status)
	}

	if got, ok := parseContentRange(resp.Header.Get("Content-Range")); !ok || got[0] != start || got[1] != end {
		return fmt.Errorf("segment %d-%d: mismatched content range %q", start, end, resp.Header.Get("Content-Range"))
	}

	want := end - start + 1
	w := &countingWriter{w: io.NewOffsetWriter(file, start)}
	if err := copyLimited(ctx, w, io.LimitReader(resp.Body, want), limiter, tracker); err != nil {
		return err
	}
	if w.n != want {
		return fmt.Errorf("segment %d-%d: short body: %d of %d bytes", start, end, w.n, want)
	}
	return nil
}

// parseContentRange reads the first and last byte of a "bytes a-b/size" header
func parseContentRange(value string) ([2]int64, bool) {
	var r [2]int64
	spec, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return r, false
	}
	spec, _, _ = strings.Cut(spec, "/")
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return r, false
	}
	var err error
	if r[0], err = strconv.ParseInt(first, 10, 64); err != nil {
		return r, false
	}
	if r[1], err = strconv.ParseInt(last, 10, 64); err != nil {
		return r, false
	}
	return r, true
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// copyLimited copies src to dst, waiting on limiter before each write
func copyLimited(ctx context.Context, dst io.Writer, src io.Reader, limiter *rate.Limiter, tracker *progressTracker) error {
	buf := make([]byte, copyBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return err
				}
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write failed: %w", err)
			}
			tracker.add(n)
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read failed: %w", rerr)
		}
	}
}
