package extractor

import (
	"context"
	"fmt"

	"github.com/yourusername/vidgrab-go/internal/domain"
)

// TemplateProber synthesises a deterministic payload from the site table.
// It needs no network access.
type TemplateProber struct{}

// NewTemplateProber creates a template prober
func NewTemplateProber() *TemplateProber {
	return &TemplateProber{}
}

// Probe builds the media information for target
func (p *TemplateProber) Probe(ctx context.Context, target domain.ProbeTarget) (*domain.MediaInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	site, ok := SiteByName(target.Site)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPluginNotFound, target.Site)
	}

	host := site.Domains[0]
	formats := make([]domain.Format, 0, len(site.Ladder))
	for _, r := range site.Ladder {
		ext := "mp4"
		if r.VCodec == "none" {
			ext = "m4a"
		}
		formats = append(formats, domain.Format{
			FormatID: r.FormatID,
			URL:      fmt.Sprintf("https://%s/media/%s_%s.%s", host, target.VideoID, r.FormatID, ext),
			Width:    r.Width,
			Height:   r.Height,
			Ext:      ext,
			VCodec:   r.VCodec,
			ACodec:   "mp4a.40.2",
			FPS:      r.FPS,
			TBR:      r.TBR,
			FileSize: r.SizeMB * 1024 * 1024,
			Protocol: "https",
		})
	}

	return &domain.MediaInfo{
		ID:           target.VideoID,
		Title:        fmt.Sprintf("%s Video %s", site.DisplayName, target.VideoID),
		Description:  fmt.Sprintf("A %s video", site.DisplayName),
		Uploader:     site.Uploader,
		Duration:     300,
		ViewCount:    10000,
		LikeCount:    500,
		CommentCount: 50,
		UploadDate:   "20240101",
		Thumbnail:    fmt.Sprintf("https://%s/thumb/%s.jpg", host, target.VideoID),
		Tags:         []string{site.Name, "video"},
		WebpageURL:   target.URL,
		ExtractorKey: site.Name,
		Formats:      formats,
	}, nil
}
