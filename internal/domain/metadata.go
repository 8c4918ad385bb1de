package domain

import (
	"fmt"
	"strings"
	"time"
)

// Platform represents the source platform for downloads
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformBilibili  Platform = "bilibili"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformPornhub   Platform = "pornhub"
	PlatformYouPorn   Platform = "youporn"
	PlatformXVideo    Platform = "xvideo"
	PlatformXHamster  Platform = "xhamster"
	PlatformKissJAV   Platform = "kissjav"
	PlatformWeibo     Platform = "weibo"
	PlatformTumblr    Platform = "tumblr"
	PlatformPixiv     Platform = "pixiv"
	PlatformFC2       Platform = "fc2"
	PlatformFlickr    Platform = "flickr"
	PlatformTwitch    Platform = "twitch"
	PlatformTwitter   Platform = "twitter"
	PlatformUnknown   Platform = "unknown"
)

// AllPlatforms lists every supported platform
var AllPlatforms = []Platform{
	PlatformYouTube, PlatformBilibili, PlatformTikTok, PlatformInstagram,
	PlatformPornhub, PlatformYouPorn, PlatformXVideo, PlatformXHamster,
	PlatformKissJAV, PlatformWeibo, PlatformTumblr, PlatformPixiv,
	PlatformFC2, PlatformFlickr, PlatformTwitch, PlatformTwitter,
}

// ValidatePlatform checks if a platform is valid
func ValidatePlatform(platform Platform) bool {
	for _, p := range AllPlatforms {
		if p == platform {
			return true
		}
	}
	return false
}

// QualityOption describes one selectable quality of a video
type QualityOption struct {
	QualityID   string `json:"quality_id"`
	Resolution  string `json:"resolution"`
	FormatName  string `json:"format_name"`
	FileSize    int64  `json:"file_size,omitempty"`
	Bitrate     int    `json:"bitrate,omitempty"` // kbps
	FPS         int    `json:"fps,omitempty"`
	Codec       string `json:"codec,omitempty"`
	IsAudioOnly bool   `json:"is_audio_only"`
}

// VideoMetadata is the descriptive record shown for a video
type VideoMetadata struct {
	VideoID        string          `json:"video_id,omitempty"`
	Title          string          `json:"title"`
	Author         string          `json:"author"`
	ThumbnailURL   string          `json:"thumbnail_url"`
	Duration       int             `json:"duration"` // seconds
	ViewCount      int64           `json:"view_count"`
	UploadDate     time.Time       `json:"upload_date"`
	QualityOptions []QualityOption `json:"quality_options"`
	Description    string          `json:"description,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	LikeCount      int64           `json:"like_count,omitempty"`
	CommentCount   int64           `json:"comment_count,omitempty"`
	ChannelID      string          `json:"channel_id,omitempty"`
	ChannelURL     string          `json:"channel_url,omitempty"`
	WebpageURL     string          `json:"webpage_url,omitempty"`
	Platform       Platform        `json:"platform"`
}

// Format is a single downloadable rendition as reported by an extractor.
// Field names follow the yt-dlp info document.
type Format struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Ext      string  `json:"ext,omitempty"`
	VCodec   string  `json:"vcodec,omitempty"`
	ACodec   string  `json:"acodec,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	TBR      float64 `json:"tbr,omitempty"` // kbps
	FileSize int64   `json:"filesize,omitempty"`
	Protocol string  `json:"protocol,omitempty"`
}

// IsAudioOnly reports whether the format carries no video stream
func (f *Format) IsAudioOnly() bool {
	return f.VCodec == "none"
}

// IsHLS reports whether the format is an HLS playlist
func (f *Format) IsHLS() bool {
	if strings.Contains(f.Protocol, "m3u8") {
		return true
	}
	u := f.URL
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return strings.HasSuffix(strings.ToLower(u), ".m3u8")
}

// Resolution returns the "WxH" resolution string
func (f *Format) Resolution() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Label returns a human-readable quality label such as "1080p"
func (f *Format) Label() string {
	if f.IsAudioOnly() {
		return "audio"
	}
	if f.Height > 0 {
		return fmt.Sprintf("%dp", f.Height)
	}
	if f.FormatID != "" {
		return f.FormatID
	}
	return "unknown"
}

// MediaInfo is the raw payload returned by an extractor
type MediaInfo struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Uploader     string   `json:"uploader,omitempty"`
	UploaderID   string   `json:"uploader_id,omitempty"`
	UploaderURL  string   `json:"uploader_url,omitempty"`
	Duration     float64  `json:"duration,omitempty"`
	ViewCount    int64    `json:"view_count,omitempty"`
	LikeCount    int64    `json:"like_count,omitempty"`
	CommentCount int64    `json:"comment_count,omitempty"`
	UploadDate   string   `json:"upload_date,omitempty"` // YYYYMMDD
	Thumbnail    string   `json:"thumbnail,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	WebpageURL   string   `json:"webpage_url,omitempty"`
	ExtractorKey string   `json:"extractor_key,omitempty"`
	Formats      []Format `json:"formats,omitempty"`
	// URL is set by yt-dlp when a single format was selected
	URL string `json:"url,omitempty"`
	Ext string `json:"ext,omitempty"`
}

// ParseUploadDate parses a YYYYMMDD date, falling back to now
func ParseUploadDate(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Now()
	}
	return t
}

// QualityOptionFromFormat converts an extractor format to a quality option
func QualityOptionFromFormat(f Format) QualityOption {
	id := f.FormatID
	if id == "" {
		id = "unknown"
	}
	ext := f.Ext
	if ext == "" {
		ext = "mp4"
	}
	return QualityOption{
		QualityID:   id,
		Resolution:  f.Resolution(),
		FormatName:  ext,
		FileSize:    f.FileSize,
		Bitrate:     int(f.TBR),
		FPS:         int(f.FPS),
		Codec:       f.VCodec,
		IsAudioOnly: f.IsAudioOnly(),
	}
}

// BuildMetadata derives the descriptive metadata record from an extraction payload
func BuildMetadata(info *MediaInfo, platform Platform) *VideoMetadata {
	title := info.Title
	if title == "" {
		title = "Unknown Title"
	}
	author := info.Uploader
	if author == "" {
		author = "Unknown"
	}

	options := make([]QualityOption, 0, len(info.Formats))
	for _, f := range info.Formats {
		options = append(options, QualityOptionFromFormat(f))
	}

	return &VideoMetadata{
		VideoID:        info.ID,
		Title:          title,
		Author:         author,
		ThumbnailURL:   info.Thumbnail,
		Duration:       int(info.Duration),
		ViewCount:      info.ViewCount,
		UploadDate:     ParseUploadDate(info.UploadDate),
		QualityOptions: options,
		Description:    info.Description,
		Tags:           info.Tags,
		LikeCount:      info.LikeCount,
		CommentCount:   info.CommentCount,
		ChannelID:      info.UploaderID,
		ChannelURL:     info.UploaderURL,
		WebpageURL:     info.WebpageURL,
		Platform:       platform,
	}
}
