// Package extractor implements the built-in site extractors. Each extractor
// recognises the URLs of one platform and asks a MediaProber for the
// actual media information.
package extractor

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/yourusername/vidgrab-go/internal/domain"
)

const version = "1.0.0"

// SiteExtractor is a table-driven domain.Extractor
type SiteExtractor struct {
	site   Site
	prober domain.MediaProber
}

// New creates an extractor for site backed by prober
func New(site Site, prober domain.MediaProber) *SiteExtractor {
	return &SiteExtractor{site: site, prober: prober}
}

// Builtin returns an extractor for every built-in site
func Builtin(prober domain.MediaProber) []domain.Extractor {
	out := make([]domain.Extractor, 0, len(Sites))
	for _, s := range Sites {
		out = append(out, New(s, prober))
	}
	return out
}

// Info returns the extractor descriptor
func (e *SiteExtractor) Info() domain.ExtractorInfo {
	return domain.ExtractorInfo{
		Name:             e.site.Name,
		Version:          version,
		SupportedDomains: e.SupportedDomains(),
		Description:      e.site.Description,
		Author:           "VidGrab",
	}
}

// Platform returns the platform served by this extractor
func (e *SiteExtractor) Platform() domain.Platform {
	return e.site.Platform
}

// SupportedDomains returns the host names this extractor serves
func (e *SiteExtractor) SupportedDomains() []string {
	out := make([]string, len(e.site.Domains))
	copy(out, e.site.Domains)
	return out
}

// CanHandle reports whether the URL is on a supported domain and carries a video id
func (e *SiteExtractor) CanHandle(rawURL string) bool {
	return MatchesDomain(rawURL, e.site.Domains) && e.VideoID(rawURL) != ""
}

// VideoID returns the id captured by the first matching pattern, empty when none
func (e *SiteExtractor) VideoID(rawURL string) string {
	for _, re := range e.site.IDPatterns {
		m := re.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}
		for i := len(m) - 1; i > 0; i-- {
			if m[i] != "" {
				return m[i]
			}
		}
	}
	return ""
}

// ExtractInfo resolves the URL through the prober
func (e *SiteExtractor) ExtractInfo(ctx context.Context, rawURL string) (*domain.MediaInfo, error) {
	if !MatchesDomain(rawURL, e.site.Domains) {
		return nil, fmt.Errorf("%s: %w: %s", e.site.Name, domain.ErrUnsupportedURL, rawURL)
	}
	id := e.VideoID(rawURL)
	if id == "" {
		return nil, fmt.Errorf("%s: %w: no video id in %s", e.site.Name, domain.ErrUnsupportedURL, rawURL)
	}

	info, err := e.prober.Probe(ctx, domain.ProbeTarget{
		URL:      rawURL,
		Site:     e.site.Name,
		Platform: e.site.Platform,
		VideoID:  id,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: extraction failed: %w", e.site.Name, err)
	}

	if info.ID == "" {
		info.ID = id
	}
	if info.WebpageURL == "" {
		info.WebpageURL = rawURL
	}
	if info.ExtractorKey == "" {
		info.ExtractorKey = e.site.Name
	}
	return info, nil
}

// DownloadURLs lists the direct media URLs of every format
func (e *SiteExtractor) DownloadURLs(info *domain.MediaInfo) []string {
	if info == nil {
		return nil
	}
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	for _, f := range info.Formats {
		add(f.URL)
	}
	add(info.URL)
	return urls
}

// Metadata returns the descriptive metadata for the URL
func (e *SiteExtractor) Metadata(ctx context.Context, rawURL string) (*domain.VideoMetadata, error) {
	info, err := e.ExtractInfo(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return domain.BuildMetadata(info, e.site.Platform), nil
}

// QualityOptions returns the selectable qualities for the URL
func (e *SiteExtractor) QualityOptions(ctx context.Context, rawURL string) ([]domain.QualityOption, error) {
	info, err := e.ExtractInfo(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	options := make([]domain.QualityOption, 0, len(info.Formats))
	for _, f := range info.Formats {
		options = append(options, domain.QualityOptionFromFormat(f))
	}
	return options, nil
}

// Host returns the lower-cased host of a URL without port, empty when unparsable
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// MatchesDomain reports whether the URL host is one of domains or a subdomain of one
func MatchesDomain(rawURL string, domains []string) bool {
	host := Host(rawURL)
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
