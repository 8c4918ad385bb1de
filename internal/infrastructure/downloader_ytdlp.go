package infrastructure

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/pkg/logger"
	"go.uber.org/zap"
)

const progressInterval = 250 * time.Millisecond

// skipped when looking for the file yt-dlp produced
var ytdlpSidecars = []string{".part", ".ytdl", ".info.json", ".temp", ".json"}

// YTDLPDownloader runs yt-dlp on the page URL. It supports every format
// and is meant to be registered last as the fallback engine.
type YTDLPDownloader struct {
	binary      string
	cookieFile  string
	speedLimit  int64
	logsDir     string
	eventLogger *logger.MultiLogger // For structured events only (LogAppError)
	logger      *zap.Logger
}

// NewYTDLPDownloader creates a new yt-dlp downloader
func NewYTDLPDownloader(extractor domain.ExtractorConfig, download domain.DownloadConfig, logsDir string, eventLogger *logger.MultiLogger, log *zap.Logger) *YTDLPDownloader {
	if log == nil {
		log = zap.NewNop()
	}
	binary := extractor.YTDLPBinary
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLPDownloader{
		binary:      binary,
		cookieFile:  extractor.CookieFile,
		speedLimit:  download.SpeedLimit,
		logsDir:     logsDir,
		eventLogger: eventLogger,
		logger:      log,
	}
}

// Name returns the engine name
func (d *YTDLPDownloader) Name() string { return "ytdlp" }

// Supports always returns true
func (d *YTDLPDownloader) Supports(*domain.Format) bool { return true }

// buildCommand returns the yt-dlp command for req
func (d *YTDLPDownloader) buildCommand(req *domain.DownloadRequest) *ytdlp.Command {
	stem := strings.TrimSuffix(req.Filename, filepath.Ext(req.Filename))
	cmd := ytdlp.New().
		SetExecutable(d.binary).
		NoPlaylist().
		Output(strings.ReplaceAll(stem, "%", "%%") + ".%(ext)s").
		Paths(req.IncomingDir)

	switch {
	case req.Format.FormatID != "":
		cmd.Format(req.Format.FormatID)
	case req.Download != nil && req.Download.AudioOnly:
		cmd.Format("bestaudio")
	}

	if d.cookieFile != "" && fileExists(d.cookieFile) {
		cmd.Cookies(d.cookieFile)
	}
	if d.speedLimit > 0 {
		cmd.LimitRate(strconv.FormatInt(d.speedLimit, 10))
	}
	return cmd
}

func pageURL(req *domain.DownloadRequest) string {
	if req.Info != nil && req.Info.WebpageURL != "" {
		return req.Info.WebpageURL
	}
	if req.Download != nil {
		return req.Download.URL
	}
	return req.Format.URL
}

// Download runs yt-dlp into the incoming directory, then moves the result to
// the completed directory. All yt-dlp output is appended to the daily
// download log between a header and a footer line.
func (d *YTDLPDownloader) Download(ctx context.Context, req *domain.DownloadRequest, progress domain.ProgressFunc) (*domain.DownloadResult, error) {
	if err := prepareDirs(req); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(int64, int64, float64) {}
	}

	out, err := d.openLogFile()
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer out.Close()

	var downloadID string
	if req.Download != nil {
		downloadID = req.Download.ID
	}

	target := pageURL(req)
	cmd := d.buildCommand(req)
	cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		progress(progressFromUpdate(update))
	})

	line := cmd.BuildCommand(ctx, target).Args
	d.writeLogHeader(out, downloadID, ShellEscapeCommand(line[0], line[1:]...))

	result, err := cmd.Run(ctx, target)
	if result != nil {
		writeOutput(out, result.Stdout)
		writeOutput(out, result.Stderr)
	}
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		d.writeLogFooter(out, false, fmt.Sprintf("yt-dlp failed: %v", err))
		return nil, fmt.Errorf("yt-dlp failed: %w", err)
	}

	stem := strings.TrimSuffix(req.Filename, filepath.Ext(req.Filename))
	src, err := findOutputFile(req.IncomingDir, stem)
	if err != nil {
		d.writeLogFooter(out, false, err.Error())
		return nil, err
	}

	dest := uniquePath(filepath.Join(req.CompletedDir, filepath.Base(src)))
	if err := moveFile(src, dest); err != nil {
		d.writeLogFooter(out, false, fmt.Sprintf("Failed to move file: %v", err))
		d.eventLogger.LogAppError("Failed to move download", zap.String("download_id", downloadID), zap.Error(err))
		return nil, fmt.Errorf("failed to move file to completed: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat download: %w", err)
	}

	d.writeLogFooter(out, true, fmt.Sprintf("Downloaded: %s", dest))
	progress(info.Size(), info.Size(), 0)
	return &domain.DownloadResult{FilePath: dest, Size: info.Size()}, nil
}

// progressFromUpdate converts a yt-dlp progress update into bytes done,
// total bytes and bytes per second
func progressFromUpdate(update ytdlp.ProgressUpdate) (int64, int64, float64) {
	done, total := int64(update.DownloadedBytes), int64(update.TotalBytes)
	var speed float64
	if elapsed := update.Duration().Seconds(); elapsed > 0 {
		speed = float64(done) / elapsed
	}
	return done, total, speed
}

func writeOutput(w io.Writer, output string) {
	output = strings.TrimRight(output, "\n")
	if output != "" {
		fmt.Fprintln(w, output)
	}
}

// openLogFile opens today's download log in append mode
func (d *YTDLPDownloader) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(d.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	path := filepath.Join(d.logsDir, "download-"+time.Now().Format("20060102")+".log")
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (d *YTDLPDownloader) writeLogHeader(w io.Writer, downloadID, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(w, "\n=== [%s] Download: %s ===\n$ %s\n", timestamp, downloadID, cmdLine)
}

func (d *YTDLPDownloader) writeLogFooter(w io.Writer, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(w, "[%s] %s: %s\n=== END ===\n\n", timestamp, status, message)
}

// findOutputFile returns the largest finished file in dir named stem.<ext>
func findOutputFile(dir, stem string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read incoming directory: %w", err)
	}

	var (
		best     string
		bestSize int64 = -1
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, stem+".") || isSidecar(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = filepath.Join(dir, name), info.Size()
		}
	}

	if best == "" {
		return "", fmt.Errorf("no files downloaded")
	}
	return best, nil
}

func isSidecar(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range ytdlpSidecars {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
