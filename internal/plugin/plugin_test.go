package plugin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/internal/extractor"
)

// countingExtractor wraps a site extractor and counts extractions
type countingExtractor struct {
	*extractor.SiteExtractor
	name  string
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (c *countingExtractor) Info() domain.ExtractorInfo {
	info := c.SiteExtractor.Info()
	if c.name != "" {
		info.Name = c.name
	}
	return info
}

func (c *countingExtractor) ExtractInfo(ctx context.Context, url string) (*domain.MediaInfo, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.SiteExtractor.ExtractInfo(ctx, url)
}

func newCounting(t *testing.T, site string) *countingExtractor {
	t.Helper()
	s, ok := extractor.SiteByName(site)
	require.True(t, ok)
	return &countingExtractor{SiteExtractor: extractor.New(s, extractor.NewTemplateProber())}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(domain.ExtractorConfig{CacheTTL: time.Minute, CacheSize: 100}, nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestRegistry_RegisterAndList(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.RegisterAll(extractor.Builtin(extractor.NewTemplateProber()), []string{"pornhub", "missing"}))

	err := m.Register(newCounting(t, "youtube"), 0)
	assert.ErrorIs(t, err, domain.ErrPluginExists)

	plugins := m.Plugins()
	require.Len(t, plugins, len(extractor.Sites))
	for i := 1; i < len(plugins); i++ {
		assert.LessOrEqual(t, plugins[i-1].Name, plugins[i].Name)
	}

	info, err := m.Registry().Info("pornhub")
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, info.Status)

	stats := m.Stats()
	assert.Equal(t, len(extractor.Sites), stats.TotalPlugins)
	assert.Equal(t, len(extractor.Sites)-1, stats.ActivePlugins)
	assert.Greater(t, stats.TotalDomains, len(extractor.Sites))

	require.NoError(t, m.Registry().Unregister("pornhub"))
	assert.ErrorIs(t, m.Registry().Unregister("pornhub"), domain.ErrPluginNotFound)
	assert.ErrorIs(t, m.Enable("pornhub"), domain.ErrPluginNotFound)
}

func TestRegistry_FindForURL_Priority(t *testing.T) {
	reg, err := NewRegistry(100, nil)
	require.NoError(t, err)
	defer reg.Close()

	low := newCounting(t, "youtube")
	high := newCounting(t, "youtube")
	high.name = "youtube-premium"

	require.NoError(t, reg.Register(low, 0))
	require.NoError(t, reg.Register(high, 10))

	name, _, ok := reg.FindForURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.True(t, ok)
	assert.Equal(t, "youtube-premium", name)

	require.NoError(t, reg.Disable("youtube-premium"))
	name, _, ok = reg.FindForURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.True(t, ok)
	assert.Equal(t, "youtube", name)

	_, _, ok = reg.FindForURL("https://vimeo.com/1")
	assert.False(t, ok)

	info, err := reg.Info("youtube")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.UsageCount)
	assert.NotNil(t, info.LastUsedAt)
}

func TestRegistry_RouteCache(t *testing.T) {
	reg, err := NewRegistry(100, nil)
	require.NoError(t, err)
	defer reg.Close()

	require.NoError(t, reg.Register(newCounting(t, "twitch"), 0))

	url := "https://www.twitch.tv/videos/123"
	_, _, ok := reg.FindForURL(url)
	require.True(t, ok)
	reg.routes.Wait()

	_, _, ok = reg.FindForURL(url)
	require.True(t, ok)

	stats := reg.Stats()
	assert.Equal(t, int64(1), stats.RouteCacheHits)
	assert.Equal(t, int64(1), stats.RouteCacheMiss)

	// A cached route is not served once the plugin is disabled
	require.NoError(t, reg.Disable("twitch"))
	_, _, ok = reg.FindForURL(url)
	assert.False(t, ok)
}

func TestRegistry_RecordError(t *testing.T) {
	reg, err := NewRegistry(100, nil)
	require.NoError(t, err)
	defer reg.Close()

	require.NoError(t, reg.Register(newCounting(t, "fc2"), 0))

	for i := 0; i < maxConsecutiveErrors; i++ {
		reg.RecordError("fc2", errors.New("site changed"))
	}

	info, err := reg.Info("fc2")
	require.NoError(t, err)
	assert.Equal(t, StatusError, info.Status)
	assert.Equal(t, int64(maxConsecutiveErrors), info.ErrorCount)
	assert.Equal(t, "site changed", info.LastError)
	assert.Equal(t, 1, reg.Stats().FailedPlugins)

	require.NoError(t, reg.Enable("fc2"))
	info, _ = reg.Info("fc2")
	assert.Equal(t, StatusActive, info.Status)
}

func TestRouter_Analyze(t *testing.T) {
	reg, err := NewRegistry(100, nil)
	require.NoError(t, err)
	defer reg.Close()
	router := NewRouter(reg)

	tests := []struct {
		url      string
		urlType  URLType
		platform string
		check    func(t *testing.T, info *URLInfo)
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", URLTypeVideo, "youtube", func(t *testing.T, info *URLInfo) {
			assert.Equal(t, "dQw4w9WgXcQ", info.VideoID)
			assert.Equal(t, "42", info.Parameters["t"])
		}},
		{"youtube.com/playlist?list=PL123abc", URLTypePlaylist, "youtube", func(t *testing.T, info *URLInfo) {
			assert.Equal(t, "PL123abc", info.PlaylistID)
			assert.Equal(t, "https://youtube.com/playlist?list=PL123abc", info.URL)
		}},
		{"https://www.youtube.com/channel/UCabc", URLTypeChannel, "youtube", func(t *testing.T, info *URLInfo) {
			assert.Equal(t, "UCabc", info.ChannelID)
		}},
		{"https://space.bilibili.com/123456", URLTypeUser, "bilibili", func(t *testing.T, info *URLInfo) {
			assert.Equal(t, "123456", info.UserID)
		}},
		{"https://www.twitch.tv/somestreamer", URLTypeLive, "twitch", func(t *testing.T, info *URLInfo) {
			assert.Equal(t, "somestreamer", info.ChannelID)
		}},
		{"https://example.com/video.mp4", URLTypeUnknown, "unknown", func(t *testing.T, info *URLInfo) {
			assert.Equal(t, "example.com", info.Domain)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			info, err := router.Analyze(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.urlType, info.Type)
			assert.Equal(t, tt.platform, info.Platform)
			tt.check(t, info)
		})
	}

	assert.Contains(t, router.Platforms(), "youtube")
	assert.Error(t, router.AddPattern(`(unclosed`, URLTypeVideo, "broken"))
}

func TestRouter_RouteConfidence(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.RegisterAll(extractor.Builtin(extractor.NewTemplateProber()), nil))

	result := m.Route("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.True(t, result.Success)
	assert.Equal(t, "youtube", result.Plugin)
	assert.Equal(t, 1.0, result.Confidence)

	// Handled by a plugin but not classified by a URL pattern
	result = m.Route("https://www.kissjav.com/video/abc-123")
	require.True(t, result.Success)
	assert.Equal(t, "kissjav", result.Plugin)
	assert.Equal(t, 0.6, result.Confidence)

	result = m.Route("https://example.com/watch?v=1")
	assert.False(t, result.Success)
	assert.NotNil(t, result.URLInfo)
	assert.Equal(t, "no suitable plugin found", result.Error)
	assert.Zero(t, result.Confidence)
}

func TestManager_ExtractCachesResults(t *testing.T) {
	m := newTestManager(t)
	ext := newCounting(t, "bilibili")
	require.NoError(t, m.Register(ext, 0))

	url := "https://www.bilibili.com/video/BV1xx411c7mD"
	first, err := m.Extract(context.Background(), url)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, domain.PlatformBilibili, first.Platform)
	m.cache.Wait()

	second, err := m.Extract(context.Background(), url)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Same(t, first.Info, second.Info)
	assert.Equal(t, int64(1), ext.calls.Load())

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.ExtractionCacheHits)
	assert.Equal(t, int64(1), stats.ExtractionCacheMisses)
}

func TestManager_ExtractCollapsesConcurrentCalls(t *testing.T) {
	m := newTestManager(t)
	ext := newCounting(t, "twitch")
	ext.delay = 100 * time.Millisecond
	require.NoError(t, m.Register(ext, 0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Extract(context.Background(), "https://www.twitch.tv/videos/42")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), ext.calls.Load())
}

func TestManager_ExtractErrors(t *testing.T) {
	m := newTestManager(t)
	ext := newCounting(t, "weibo")
	ext.err = errors.New("rate limited")
	require.NoError(t, m.Register(ext, 0))

	_, err := m.Extract(context.Background(), "https://weibo.com/123/AbC")
	assert.EqualError(t, err, "rate limited")
	assert.Equal(t, int64(1), m.Stats().ExtractionErrors)

	_, err = m.Extract(context.Background(), "https://vimeo.com/1")
	assert.ErrorIs(t, err, domain.ErrUnsupportedURL)
}

func TestManager_ExtractCancelledDoesNotDisablePlugin(t *testing.T) {
	m := newTestManager(t)
	ext := newCounting(t, "youtube")
	require.NoError(t, m.Register(ext, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < maxConsecutiveErrors+1; i++ {
		_, err := m.Extract(ctx, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
		assert.ErrorIs(t, err, context.Canceled)
	}

	info, err := m.Registry().Info("youtube")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, info.Status)
	assert.Zero(t, info.ErrorCount)

	ex, err := m.Extract(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformYouTube, ex.Platform)
}

func TestManager_ExtractCallerCancelDoesNotAffectOthers(t *testing.T) {
	m := newTestManager(t)
	ext := newCounting(t, "twitch")
	ext.delay = 200 * time.Millisecond
	require.NoError(t, m.Register(ext, 0))

	url := "https://www.twitch.tv/videos/42"
	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.Extract(ctx, url)
		firstErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	secondErr := make(chan error, 1)
	go func() {
		_, err := m.Extract(context.Background(), url)
		secondErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	assert.NoError(t, <-secondErr)
	assert.Equal(t, int64(1), ext.calls.Load())
}

func TestManager_ExtractSharedFailureCountsOnce(t *testing.T) {
	m := newTestManager(t)
	ext := newCounting(t, "weibo")
	ext.delay = 100 * time.Millisecond
	ext.err = errors.New("rate limited")
	require.NoError(t, m.Register(ext, 0))

	var wg sync.WaitGroup
	for i := 0; i < maxConsecutiveErrors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Extract(context.Background(), "https://weibo.com/123/AbC")
			assert.EqualError(t, err, "rate limited")
		}()
	}
	wg.Wait()

	info, err := m.Registry().Info("weibo")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, info.Status)
	assert.Equal(t, ext.calls.Load(), info.ErrorCount)
	assert.Equal(t, ext.calls.Load(), m.Stats().ExtractionErrors)
}

func TestManager_MetadataAndDownloadURLs(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.RegisterAll(extractor.Builtin(extractor.NewTemplateProber()), nil))

	url := "https://www.tiktok.com/@someone/video/7234567890123456789"
	meta, err := m.Metadata(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformTikTok, meta.Platform)
	assert.Equal(t, "TikTok User", meta.Author)

	urls, err := m.DownloadURLs(context.Background(), url)
	require.NoError(t, err)
	assert.Len(t, urls, 3)

	require.NoError(t, m.Disable("tiktok"))
	_, err = m.Metadata(context.Background(), url)
	assert.ErrorIs(t, err, domain.ErrUnsupportedURL)
}

func TestManager_Classify(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.RegisterAll(extractor.Builtin(extractor.NewTemplateProber()), nil))

	platform, normalized, err := m.Classify("  https://www.youtube.com/watch?v=dQw4w9WgXcQ ")
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformYouTube, platform)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", normalized)

	platform, _, err = m.Classify("https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformYouTube, platform)

	_, _, err = m.Classify("https://example.com/video/1")
	assert.ErrorIs(t, err, domain.ErrUnsupportedURL)

	info, err := m.Router().Analyze("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, URLTypeVideo, info.Type)
}
