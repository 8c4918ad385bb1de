package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/grafov/m3u8"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/internal/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxPlaylistDepth bounds master → media playlist redirection
const maxPlaylistDepth = 3

// HLSDownloader fetches HLS streams and concatenates their segments into a
// single MPEG-TS file
type HLSDownloader struct {
	pool   *pool.Manager
	config domain.DownloadConfig
	logger *zap.Logger
}

// NewHLSDownloader creates a new HLS downloader
func NewHLSDownloader(p *pool.Manager, config domain.DownloadConfig, logger *zap.Logger) *HLSDownloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HLSDownloader{pool: p, config: config, logger: logger}
}

// Name returns the engine name
func (d *HLSDownloader) Name() string { return "hls" }

// Supports reports whether the format is an HLS playlist
func (d *HLSDownloader) Supports(format *domain.Format) bool {
	return format.URL != "" && format.IsHLS()
}

// Download resolves the playlist and writes every segment in order
func (d *HLSDownloader) Download(ctx context.Context, req *domain.DownloadRequest, progress domain.ProgressFunc) (*domain.DownloadResult, error) {
	if err := prepareDirs(req); err != nil {
		return nil, err
	}

	media, base, err := d.resolveMedia(ctx, req.Format.URL, 0)
	if err != nil {
		return nil, err
	}

	uris, err := segmentURIs(media, base)
	if err != nil {
		return nil, err
	}
	if len(uris) == 0 {
		return nil, fmt.Errorf("no segments found in playlist")
	}

	filename := strings.TrimSuffix(req.Filename, filepath.Ext(req.Filename)) + ".ts"
	partPath := filepath.Join(req.IncomingDir, filename+partSuffix)

	file, err := os.OpenFile(partPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open part file: %w", err)
	}

	limiter := newLimiter(d.config.SpeedLimit)
	var fetched atomic.Int64
	tracker := newProgressTracker(func(done, _ int64, speed float64) {
		if progress == nil {
			return
		}
		// total is extrapolated from the segments fetched so far
		var total int64
		if n := fetched.Load(); n > 0 {
			total = done * int64(len(uris)) / n
		}
		progress(done, total, speed)
	}, 0, 0)

	d.logger.Debug("Downloading HLS stream",
		zap.String("url", req.Format.URL),
		zap.Int("segments", len(uris)))

	for i, uri := range uris {
		if err := d.fetchSegment(ctx, uri, file, limiter, tracker); err != nil {
			file.Close()
			os.Remove(partPath)
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		fetched.Add(1)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close part file: %w", err)
	}

	size := tracker.done.Load()
	dest := uniquePath(filepath.Join(req.CompletedDir, filename))
	if err := moveFile(partPath, dest); err != nil {
		return nil, err
	}

	if progress != nil {
		progress(size, size, 0)
	}
	return &domain.DownloadResult{FilePath: dest, Size: size}, nil
}

// resolveMedia fetches a playlist and follows master playlists to the
// highest bandwidth variant
func (d *HLSDownloader) resolveMedia(ctx context.Context, playlistURL string, depth int) (*m3u8.MediaPlaylist, *url.URL, error) {
	if depth >= maxPlaylistDepth {
		return nil, nil, fmt.Errorf("playlist nesting too deep")
	}

	base, err := url.Parse(playlistURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid playlist url: %w", err)
	}

	resp, err := d.pool.Get(ctx, playlistURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("failed to fetch playlist: %s", resp.Status)
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse playlist: %w", err)
	}

	switch listType {
	case m3u8.MEDIA:
		return playlist.(*m3u8.MediaPlaylist), base, nil
	case m3u8.MASTER:
		variant := bestVariant(playlist.(*m3u8.MasterPlaylist))
		if variant == nil {
			return nil, nil, fmt.Errorf("master playlist has no variants")
		}
		next, err := base.Parse(variant.URI)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid variant uri: %w", err)
		}
		d.logger.Debug("Selected HLS variant",
			zap.String("uri", next.String()),
			zap.Uint32("bandwidth", variant.Bandwidth),
			zap.String("resolution", variant.Resolution))
		return d.resolveMedia(ctx, next.String(), depth+1)
	default:
		return nil, nil, fmt.Errorf("unknown playlist type")
	}
}

func bestVariant(master *m3u8.MasterPlaylist) *m3u8.Variant {
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil || v.Iframe || v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best
}

// segmentURIs lists absolute segment URIs, with the init section first
// when the playlist declares one
func segmentURIs(media *m3u8.MediaPlaylist, base *url.URL) ([]string, error) {
	if media.Key != nil && media.Key.Method != "" && media.Key.Method != "NONE" {
		return nil, fmt.Errorf("encrypted HLS streams are not supported (%s)", media.Key.Method)
	}

	var uris []string
	seen := make(map[string]bool)
	add := func(ref string) error {
		u, err := base.Parse(ref)
		if err != nil {
			return fmt.Errorf("invalid segment uri %q: %w", ref, err)
		}
		uris = append(uris, u.String())
		return nil
	}

	if media.Map != nil && media.Map.URI != "" {
		if err := add(media.Map.URI); err != nil {
			return nil, err
		}
		seen[media.Map.URI] = true
	}

	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		if seg.Key != nil && seg.Key.Method != "" && seg.Key.Method != "NONE" {
			return nil, fmt.Errorf("encrypted HLS streams are not supported (%s)", seg.Key.Method)
		}
		if seg.Map != nil && seg.Map.URI != "" && !seen[seg.Map.URI] {
			if err := add(seg.Map.URI); err != nil {
				return nil, err
			}
			seen[seg.Map.URI] = true
		}
		if err := add(seg.URI); err != nil {
			return nil, err
		}
	}
	return uris, nil
}

func (d *HLSDownloader) fetchSegment(ctx context.Context, uri string, file *os.File, limiter *rate.Limiter, tracker *progressTracker) error {
	resp, err := d.pool.Get(ctx, uri, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return copyLimited(ctx, file, resp.Body, limiter, tracker)
}
