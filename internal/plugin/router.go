package plugin

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// URLType classifies what a URL points at
type URLType string

const (
	URLTypeVideo    URLType = "video"
	URLTypePlaylist URLType = "playlist"
	URLTypeChannel  URLType = "channel"
	URLTypeUser     URLType = "user"
	URLTypeLive     URLType = "live"
	URLTypeUnknown  URLType = "unknown"
)

// URLInfo is what the router learned from a URL
type URLInfo struct {
	URL        string            `json:"url"`
	Domain     string            `json:"domain"`
	Type       URLType           `json:"url_type"`
	Platform   string            `json:"platform"`
	VideoID    string            `json:"video_id,omitempty"`
	PlaylistID string            `json:"playlist_id,omitempty"`
	ChannelID  string            `json:"channel_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// RoutingResult is the outcome of routing a URL
type RoutingResult struct {
	Success    bool     `json:"success"`
	Plugin     string   `json:"plugin,omitempty"`
	URLInfo    *URLInfo `json:"url_info,omitempty"`
	Error      string   `json:"error,omitempty"`
	Confidence float64  `json:"confidence"`
}

const (
	confidencePattern = 1.0
	confidencePlugin  = 0.6
)

type urlPattern struct {
	re       *regexp.Regexp
	urlType  URLType
	platform string
}

// Router classifies URLs and picks the plugin that serves them
type Router struct {
	registry *Registry

	mu       sync.RWMutex
	patterns []urlPattern
}

var builtinPatterns = []struct {
	expr     string
	urlType  URLType
	platform string
}{
	{`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|embed/)|youtu\.be/)(?P<video_id>[a-zA-Z0-9_-]{11})`, URLTypeVideo, "youtube"},
	{`youtube\.com/playlist\?list=(?P<playlist_id>[a-zA-Z0-9_-]+)`, URLTypePlaylist, "youtube"},
	{`youtube\.com/channel/(?P<channel_id>[a-zA-Z0-9_-]+)`, URLTypeChannel, "youtube"},
	{`youtube\.com/user/(?P<user_id>[a-zA-Z0-9_-]+)`, URLTypeUser, "youtube"},
	{`youtube\.com/(?:c/|@)(?P<channel_id>[a-zA-Z0-9_.-]+)`, URLTypeChannel, "youtube"},
	{`bilibili\.com/video/(?P<video_id>[a-zA-Z0-9]+)`, URLTypeVideo, "bilibili"},
	{`space\.bilibili\.com/(?P<user_id>\d+)`, URLTypeUser, "bilibili"},
	{`live\.bilibili\.com/(?P<channel_id>\d+)`, URLTypeLive, "bilibili"},
	{`tiktok\.com/@[^/]+/video/(?P<video_id>\d+)`, URLTypeVideo, "tiktok"},
	{`tiktok\.com/@(?P<user_id>[^/?#]+)/?$`, URLTypeUser, "tiktok"},
	{`douyin\.com/video/(?P<video_id>\d+)`, URLTypeVideo, "tiktok"},
	{`instagram\.com/(?:p|reel|tv)/(?P<video_id>[a-zA-Z0-9_-]+)`, URLTypeVideo, "instagram"},
	{`instagram\.com/(?P<user_id>[a-zA-Z0-9_.]+)/?$`, URLTypeUser, "instagram"},
	{`(?:twitter|x)\.com/[^/]+/status/(?P<video_id>\d+)`, URLTypeVideo, "twitter"},
	{`(?:twitter|x)\.com/(?P<user_id>[^/?#]+)/?$`, URLTypeUser, "twitter"},
	{`pornhub\.com/view_video\.php\?viewkey=(?P<video_id>[a-zA-Z0-9]+)`, URLTypeVideo, "pornhub"},
	{`youporn\.com/watch/(?P<video_id>\d+)`, URLTypeVideo, "youporn"},
	{`xvideos\.com/video\.?(?P<video_id>\d+)`, URLTypeVideo, "xvideo"},
	{`xhamster\.com/videos/[^/]+-(?P<video_id>\d+)`, URLTypeVideo, "xhamster"},
	{`weibo\.com/tv/show/(?P<video_id>\d+:\d+)`, URLTypeVideo, "weibo"},
	{`pixiv\.net/(?:en/)?artworks/(?P<video_id>\d+)`, URLTypeVideo, "pixiv"},
	{`twitch\.tv/videos/(?P<video_id>\d+)`, URLTypeVideo, "twitch"},
	{`clips\.twitch\.tv/(?P<video_id>[a-zA-Z0-9_-]+)`, URLTypeVideo, "twitch"},
	{`twitch\.tv/(?P<channel_id>[a-zA-Z0-9_]+)/?$`, URLTypeLive, "twitch"},
}

// NewRouter creates a router over registry with the built-in URL patterns
func NewRouter(registry *Registry) *Router {
	r := &Router{registry: registry}
	for _, p := range builtinPatterns {
		if err := r.AddPattern(p.expr, p.urlType, p.platform); err != nil {
			panic(err)
		}
	}
	return r
}

// AddPattern registers an extra URL pattern. Named groups video_id,
// playlist_id, channel_id and user_id are extracted when present.
func (r *Router) AddPattern(expr string, urlType URLType, platform string) error {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return fmt.Errorf("invalid url pattern %q: %w", expr, err)
	}

	r.mu.Lock()
	r.patterns = append(r.patterns, urlPattern{re: re, urlType: urlType, platform: platform})
	r.mu.Unlock()

	r.registry.ClearRoutes()
	return nil
}

// Platforms returns the platforms known to the URL patterns
func (r *Router) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]struct{})
	for _, p := range r.patterns {
		set[p.platform] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Normalize adds a scheme to bare URLs
func Normalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "https://" + rawURL
	}
	return rawURL
}

// Analyze classifies a URL without consulting the plugins
func (r *Router) Analyze(rawURL string) (*URLInfo, error) {
	normalized := Normalize(rawURL)
	u, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url: missing host")
	}

	params := make(map[string]string)
	for k, v := range u.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		} else {
			params[k] = ""
		}
	}

	info := &URLInfo{
		URL:        normalized,
		Domain:     strings.ToLower(u.Host),
		Type:       URLTypeUnknown,
		Platform:   "unknown",
		Parameters: params,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.patterns {
		m := p.re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		info.Type = p.urlType
		info.Platform = p.platform
		for i, name := range p.re.SubexpNames() {
			switch name {
			case "video_id":
				info.VideoID = m[i]
			case "playlist_id":
				info.PlaylistID = m[i]
			case "channel_id":
				info.ChannelID = m[i]
			case "user_id":
				info.UserID = m[i]
			}
		}
		break
	}

	if info.VideoID == "" {
		info.VideoID = params["v"]
	}
	if info.PlaylistID == "" {
		info.PlaylistID = params["list"]
	}
	return info, nil
}

// Route analyses a URL and selects the plugin that serves it
func (r *Router) Route(rawURL string) RoutingResult {
	info, err := r.Analyze(rawURL)
	if err != nil {
		return RoutingResult{Success: false, Error: err.Error()}
	}

	name, _, ok := r.registry.FindForURL(info.URL)
	if !ok {
		return RoutingResult{
			Success: false,
			URLInfo: info,
			Error:   "no suitable plugin found",
		}
	}

	confidence := confidencePlugin
	if info.Type != URLTypeUnknown {
		confidence = confidencePattern
	}

	return RoutingResult{
		Success:    true,
		Plugin:     name,
		URLInfo:    info,
		Confidence: confidence,
	}
}
