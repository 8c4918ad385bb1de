package domain

import "context"

// ExtractorInfo describes an extractor plugin
type ExtractorInfo struct {
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	SupportedDomains []string `json:"supported_domains"`
	Description      string   `json:"description"`
	Author           string   `json:"author"`
}

// Extractor turns a page URL into media information for one site
type Extractor interface {
	// Info returns the plugin descriptor
	Info() ExtractorInfo

	// SupportedDomains returns the host names this extractor serves
	SupportedDomains() []string

	// CanHandle reports whether the URL belongs to this extractor
	CanHandle(url string) bool

	// ExtractInfo fetches the raw media information for the URL
	ExtractInfo(ctx context.Context, url string) (*MediaInfo, error)

	// DownloadURLs lists the direct media URLs contained in info
	DownloadURLs(info *MediaInfo) []string

	// Metadata returns the descriptive metadata for the URL
	Metadata(ctx context.Context, url string) (*VideoMetadata, error)

	// QualityOptions returns the selectable qualities for the URL
	QualityOptions(ctx context.Context, url string) ([]QualityOption, error)
}

// ProbeTarget is what an extractor hands to its metadata source
type ProbeTarget struct {
	URL      string
	Site     string
	Platform Platform
	VideoID  string
}

// MediaProber fetches raw media information for a recognised URL
type MediaProber interface {
	Probe(ctx context.Context, target ProbeTarget) (*MediaInfo, error)
}

// ProgressFunc receives transfer progress from a downloader
type ProgressFunc func(downloaded, total int64, speed float64)

// DownloadRequest carries everything a downloader needs for one task
type DownloadRequest struct {
	Download     *Download
	Info         *MediaInfo
	Format       Format
	Filename     string // final file name including extension
	IncomingDir  string
	CompletedDir string
}

// DownloadResult represents the result of a download operation
type DownloadResult struct {
	FilePath string
	Size     int64
}

// Downloader fetches a selected format to disk
type Downloader interface {
	// Name identifies the download engine
	Name() string

	// Supports reports whether the engine can fetch the format
	Supports(format *Format) bool

	// Download fetches the media and returns the completed file path
	Download(ctx context.Context, req *DownloadRequest, progress ProgressFunc) (*DownloadResult, error)
}
