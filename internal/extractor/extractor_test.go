package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidgrab-go/internal/domain"
)

type failingProber struct{ err error }

func (p failingProber) Probe(context.Context, domain.ProbeTarget) (*domain.MediaInfo, error) {
	return nil, p.err
}

func siteExtractor(t *testing.T, name string) *SiteExtractor {
	t.Helper()
	site, ok := SiteByName(name)
	require.True(t, ok, name)
	return New(site, NewTemplateProber())
}

func TestBuiltin_CoversAllPlatforms(t *testing.T) {
	extractors := Builtin(NewTemplateProber())
	require.Len(t, extractors, len(domain.AllPlatforms))

	seen := make(map[domain.Platform]bool)
	for _, e := range extractors {
		seen[e.(*SiteExtractor).Platform()] = true
		assert.NotEmpty(t, e.Info().SupportedDomains)
		assert.Equal(t, version, e.Info().Version)
	}
	for _, p := range domain.AllPlatforms {
		assert.True(t, seen[p], p)
	}
}

func TestCanHandle(t *testing.T) {
	tests := []struct {
		site string
		url  string
		want bool
		id   string
	}{
		{"youtube", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", true, "dQw4w9WgXcQ"},
		{"youtube", "https://youtu.be/dQw4w9WgXcQ", true, "dQw4w9WgXcQ"},
		{"youtube", "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", true, "dQw4w9WgXcQ"},
		{"youtube", "https://www.youtube.com/feed/trending", false, ""},
		{"youtube", "https://evil.example/youtu.be/dQw4w9WgXcQ", false, "dQw4w9WgXcQ"},
		{"bilibili", "https://www.bilibili.com/video/BV1xx411c7mD", true, "BV1xx411c7mD"},
		{"bilibili", "https://b23.tv/abc123", true, "abc123"},
		{"tiktok", "https://www.tiktok.com/@user/video/7234567890123456789", true, "7234567890123456789"},
		{"tiktok", "https://v.douyin.com/iRNBho6u", true, "iRNBho6u"},
		{"instagram", "https://www.instagram.com/reel/Cabc_123-x/", true, "Cabc_123-x"},
		{"twitter", "https://x.com/someone/status/1234567890", true, "1234567890"},
		{"twitter", "https://twitter.com/someone", false, ""},
		{"twitch", "https://www.twitch.tv/videos/987654321", true, "987654321"},
		{"twitch", "https://clips.twitch.tv/FunnyClip-abc_1", true, "FunnyClip-abc_1"},
		{"tumblr", "https://blog-name.tumblr.com/post/123456", true, "123456"},
		{"pixiv", "https://www.pixiv.net/en/artworks/98765", true, "98765"},
		{"xhamster", "https://xhamster.com/videos/some-title-12345", true, "12345"},
		{"flickr", "https://www.flickr.com/photos/someone/5432167890", true, "5432167890"},
		{"weibo", "https://weibo.com/1234567/Abc123", true, "Abc123"},
		{"fc2", "https://video.fc2.com/content/20240101AbCd", true, "20240101AbCd"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			e := siteExtractor(t, tt.site)
			assert.Equal(t, tt.want, e.CanHandle(tt.url))
			assert.Equal(t, tt.id, e.VideoID(tt.url))
		})
	}
}

func TestExtractInfo(t *testing.T) {
	e := siteExtractor(t, "youtube")
	url := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

	info, err := e.ExtractInfo(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", info.ID)
	assert.Equal(t, "YouTube Video dQw4w9WgXcQ", info.Title)
	assert.Equal(t, url, info.WebpageURL)
	assert.Equal(t, "youtube", info.ExtractorKey)
	require.Len(t, info.Formats, 4)
	assert.Equal(t, 1080, info.Formats[0].Height)
	assert.True(t, info.Formats[3].IsAudioOnly())

	urls := e.DownloadURLs(info)
	assert.Len(t, urls, 4)
	assert.Contains(t, urls[0], "dQw4w9WgXcQ_137.mp4")
}

func TestExtractInfo_Unsupported(t *testing.T) {
	e := siteExtractor(t, "youtube")

	_, err := e.ExtractInfo(context.Background(), "https://www.youtube.com/feed/trending")
	assert.ErrorIs(t, err, domain.ErrUnsupportedURL)

	_, err = e.ExtractInfo(context.Background(), "https://vimeo.com/12345")
	assert.ErrorIs(t, err, domain.ErrUnsupportedURL)
}

func TestExtractInfo_ProberError(t *testing.T) {
	site, _ := SiteByName("twitch")
	boom := errors.New("boom")
	e := New(site, failingProber{err: boom})

	_, err := e.ExtractInfo(context.Background(), "https://www.twitch.tv/videos/1")
	assert.ErrorIs(t, err, boom)

	_, err = e.Metadata(context.Background(), "https://www.twitch.tv/videos/1")
	assert.ErrorIs(t, err, boom)
}

func TestMetadataAndQualityOptions(t *testing.T) {
	e := siteExtractor(t, "bilibili")
	url := "https://www.bilibili.com/video/BV1xx411c7mD"

	meta, err := e.Metadata(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "Bilibili Video BV1xx411c7mD", meta.Title)
	assert.Equal(t, "Bilibili UP", meta.Author)
	assert.Equal(t, 300, meta.Duration)
	assert.Equal(t, domain.PlatformBilibili, meta.Platform)
	assert.Equal(t, 2024, meta.UploadDate.Year())

	options, err := e.QualityOptions(context.Background(), url)
	require.NoError(t, err)
	require.Len(t, options, 4)
	assert.Equal(t, "120", options[0].QualityID)
	assert.Equal(t, "3840x2160", options[0].Resolution)
	assert.Equal(t, int64(200*1024*1024), options[0].FileSize)
}

func TestTemplateProber_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTemplateProber().Probe(ctx, domain.ProbeTarget{Site: "youtube", VideoID: "x"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewTemplateProber().Probe(context.Background(), domain.ProbeTarget{Site: "nope"})
	assert.ErrorIs(t, err, domain.ErrPluginNotFound)
}

func TestMatchesDomain(t *testing.T) {
	domains := []string{"youtube.com", "youtu.be"}

	assert.True(t, MatchesDomain("https://youtube.com/x", domains))
	assert.True(t, MatchesDomain("https://m.YouTube.com:443/x", domains))
	assert.True(t, MatchesDomain("https://youtu.be/x", domains))
	assert.False(t, MatchesDomain("https://fakeyoutube.com/x", domains))
	assert.False(t, MatchesDomain("::not a url", domains))
}
