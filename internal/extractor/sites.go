package extractor

import (
	"regexp"

	"github.com/yourusername/vidgrab-go/internal/domain"
)

// Rendition is one entry of a site's quality ladder
type Rendition struct {
	FormatID string
	Width    int
	Height   int
	FPS      float64
	TBR      float64
	VCodec   string
	SizeMB   int64
}

// Site describes how one platform's URLs look
type Site struct {
	Name        string
	DisplayName string
	Platform    domain.Platform
	Domains     []string
	IDPatterns  []*regexp.Regexp
	Description string
	Uploader    string
	Ladder      []Rendition
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

var (
	ladderHD = []Rendition{
		{FormatID: "1080p", Width: 1920, Height: 1080, FPS: 30, TBR: 4000, VCodec: "avc1.640028", SizeMB: 100},
		{FormatID: "720p", Width: 1280, Height: 720, FPS: 30, TBR: 2500, VCodec: "avc1.4d401f", SizeMB: 60},
		{FormatID: "480p", Width: 854, Height: 480, FPS: 30, TBR: 1500, VCodec: "avc1.4d401e", SizeMB: 35},
	}
	ladderMobile = []Rendition{
		{FormatID: "720p", Width: 720, Height: 1280, FPS: 30, TBR: 3000, VCodec: "h264", SizeMB: 20},
		{FormatID: "540p", Width: 540, Height: 960, FPS: 30, TBR: 1500, VCodec: "h264", SizeMB: 10},
		{FormatID: "audio", TBR: 128, VCodec: "none", SizeMB: 2},
	}
	ladderStream = []Rendition{
		{FormatID: "1080p60", Width: 1920, Height: 1080, FPS: 60, TBR: 6000, VCodec: "avc1.64002A", SizeMB: 900},
		{FormatID: "720p60", Width: 1280, Height: 720, FPS: 60, TBR: 3500, VCodec: "avc1.4D401F", SizeMB: 500},
		{FormatID: "480p", Width: 852, Height: 480, FPS: 30, TBR: 1500, VCodec: "avc1.4D401E", SizeMB: 220},
		{FormatID: "audio_only", TBR: 128, VCodec: "none", SizeMB: 20},
	}
)

// Sites lists every built-in platform
var Sites = []Site{
	{
		Name: "youtube", DisplayName: "YouTube", Platform: domain.PlatformYouTube,
		Domains: []string{"youtube.com", "www.youtube.com", "youtu.be", "m.youtube.com"},
		IDPatterns: patterns(
			`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`,
			`youtube\.com/v/([a-zA-Z0-9_-]{11})`,
		),
		Description: "Extract videos from YouTube",
		Uploader:    "YouTube Channel",
		Ladder: []Rendition{
			{FormatID: "137", Width: 1920, Height: 1080, FPS: 30, TBR: 4000, VCodec: "avc1.640028", SizeMB: 100},
			{FormatID: "136", Width: 1280, Height: 720, FPS: 30, TBR: 2500, VCodec: "avc1.4d401f", SizeMB: 60},
			{FormatID: "135", Width: 854, Height: 480, FPS: 30, TBR: 1000, VCodec: "avc1.4d4015", SizeMB: 30},
			{FormatID: "140", TBR: 128, VCodec: "none", SizeMB: 5},
		},
	},
	{
		Name: "bilibili", DisplayName: "Bilibili", Platform: domain.PlatformBilibili,
		Domains: []string{"bilibili.com", "www.bilibili.com", "b23.tv", "m.bilibili.com"},
		IDPatterns: patterns(
			`bilibili\.com/video/(BV[a-zA-Z0-9]+)`,
			`bilibili\.com/video/(av\d+)`,
			`b23\.tv/([a-zA-Z0-9]+)`,
		),
		Description: "Extract videos from Bilibili",
		Uploader:    "Bilibili UP",
		Ladder: []Rendition{
			{FormatID: "120", Width: 3840, Height: 2160, FPS: 60, TBR: 8000, VCodec: "avc1.640033", SizeMB: 200},
			{FormatID: "116", Width: 1920, Height: 1080, FPS: 60, TBR: 6000, VCodec: "avc1.640028", SizeMB: 150},
			{FormatID: "80", Width: 1920, Height: 1080, FPS: 30, TBR: 4000, VCodec: "avc1.640028", SizeMB: 100},
			{FormatID: "64", Width: 1280, Height: 720, FPS: 30, TBR: 2500, VCodec: "avc1.4d401f", SizeMB: 60},
		},
	},
	{
		Name: "tiktok", DisplayName: "TikTok/Douyin", Platform: domain.PlatformTikTok,
		Domains: []string{"tiktok.com", "www.tiktok.com", "m.tiktok.com", "vm.tiktok.com", "douyin.com", "www.douyin.com", "v.douyin.com"},
		IDPatterns: patterns(
			`tiktok\.com/@[^/]+/video/(\d+)`,
			`tiktok\.com/t/([a-zA-Z0-9]+)`,
			`vm\.tiktok\.com/([a-zA-Z0-9]+)`,
			`douyin\.com/video/(\d+)`,
			`v\.douyin\.com/([a-zA-Z0-9]+)`,
		),
		Description: "Extract short videos from TikTok and Douyin",
		Uploader:    "TikTok User",
		Ladder:      ladderMobile,
	},
	{
		Name: "instagram", DisplayName: "Instagram", Platform: domain.PlatformInstagram,
		Domains: []string{"instagram.com", "www.instagram.com", "instagr.am"},
		IDPatterns: patterns(
			`instagram\.com/p/([a-zA-Z0-9_-]+)`,
			`instagram\.com/reel/([a-zA-Z0-9_-]+)`,
			`instagram\.com/tv/([a-zA-Z0-9_-]+)`,
			`instagr\.am/p/([a-zA-Z0-9_-]+)`,
		),
		Description: "Extract posts, reels and IGTV videos from Instagram",
		Uploader:    "Instagram User",
		Ladder:      ladderMobile[:2],
	},
	{
		Name: "pornhub", DisplayName: "Pornhub", Platform: domain.PlatformPornhub,
		Domains: []string{"pornhub.com", "www.pornhub.com", "rt.pornhub.com"},
		IDPatterns: patterns(
			`pornhub\.com/view_video\.php\?viewkey=([a-zA-Z0-9]+)`,
			`pornhub\.com/embed/([a-zA-Z0-9]+)`,
		),
		Description: "Extract videos from Pornhub",
		Uploader:    "Content Creator",
		Ladder:      ladderHD,
	},
	{
		Name: "youporn", DisplayName: "YouPorn", Platform: domain.PlatformYouPorn,
		Domains: []string{"youporn.com", "www.youporn.com"},
		IDPatterns: patterns(
			`youporn\.com/watch/(\d+)`,
			`youporn\.com/embed/(\d+)`,
		),
		Description: "Extract videos from YouPorn",
		Uploader:    "Content Creator",
		Ladder:      ladderHD,
	},
	{
		Name: "xvideo", DisplayName: "XVideos", Platform: domain.PlatformXVideo,
		Domains: []string{"xvideos.com", "www.xvideos.com", "xvideos.es", "xvideos.red"},
		IDPatterns: patterns(
			`xvideos\.com/video\.?(\d+)`,
			`xvideos\.com/embedframe/(\d+)`,
			`xvideos\.es/video(\d+)`,
			`xvideos\.red/video(\d+)`,
		),
		Description: "Extract videos from XVideos",
		Uploader:    "Content Creator",
		Ladder:      ladderHD,
	},
	{
		Name: "xhamster", DisplayName: "xHamster", Platform: domain.PlatformXHamster,
		Domains: []string{"xhamster.com", "www.xhamster.com", "xhamster.desi", "xhamster.one"},
		IDPatterns: patterns(
			`xhamster\.com/videos/[^/]+-(\d+)`,
			`xhamster\.com/movies/(\d+)`,
			`xhamster\.desi/videos/[^/]+-(\d+)`,
			`xhamster\.one/videos/[^/]+-(\d+)`,
		),
		Description: "Extract videos from xHamster",
		Uploader:    "Content Creator",
		Ladder:      ladderHD,
	},
	{
		Name: "kissjav", DisplayName: "KissJAV", Platform: domain.PlatformKissJAV,
		Domains: []string{"kissjav.com", "www.kissjav.com", "kissjav.li"},
		IDPatterns: patterns(
			`kissjav\.com/video/([a-zA-Z0-9\-]+)`,
			`kissjav\.com/watch/([a-zA-Z0-9\-]+)`,
			`kissjav\.li/video/([a-zA-Z0-9\-]+)`,
		),
		Description: "Extract videos from KissJAV",
		Uploader:    "JAV Studio",
		Ladder:      ladderHD,
	},
	{
		Name: "weibo", DisplayName: "Weibo", Platform: domain.PlatformWeibo,
		Domains: []string{"weibo.com", "www.weibo.com", "weibo.cn", "m.weibo.cn", "t.cn"},
		IDPatterns: patterns(
			`weibo\.com/\d+/([a-zA-Z0-9]+)`,
			`weibo\.com/detail/([a-zA-Z0-9]+)`,
			`weibo\.cn/detail/([a-zA-Z0-9]+)`,
			`t\.cn/([a-zA-Z0-9]+)`,
		),
		Description: "Extract videos from Weibo posts",
		Uploader:    "Weibo User",
		Ladder:      ladderHD[1:],
	},
	{
		Name: "tumblr", DisplayName: "Tumblr", Platform: domain.PlatformTumblr,
		Domains: []string{"tumblr.com", "www.tumblr.com"},
		IDPatterns: patterns(
			`[a-zA-Z0-9\-]+\.tumblr\.com/post/(\d+)`,
			`tumblr\.com/[a-zA-Z0-9\-]+/(\d+)`,
			`[a-zA-Z0-9\-]+\.tumblr\.com/image/(\d+)`,
		),
		Description: "Extract videos and images from Tumblr posts",
		Uploader:    "Tumblr Blog",
		Ladder:      ladderHD[1:],
	},
	{
		Name: "pixiv", DisplayName: "Pixiv", Platform: domain.PlatformPixiv,
		Domains: []string{"pixiv.net", "www.pixiv.net", "i.pximg.net"},
		IDPatterns: patterns(
			`pixiv\.net/(?:[a-z]{2}/)?artworks/(\d+)`,
			`pixiv\.net/member_illust\.php\?.*illust_id=(\d+)`,
			`i\.pximg\.net/.*?(\d+)_p\d+`,
		),
		Description: "Extract ugoira animations from Pixiv",
		Uploader:    "Pixiv Artist",
		Ladder: []Rendition{
			{FormatID: "original", Width: 1920, Height: 1080, FPS: 12, TBR: 1200, VCodec: "mjpeg", SizeMB: 8},
		},
	},
	{
		Name: "fc2", DisplayName: "FC2 Video", Platform: domain.PlatformFC2,
		Domains: []string{"video.fc2.com", "fc2.com"},
		IDPatterns: patterns(
			`video\.fc2\.com/content/(\w+)`,
			`video\.fc2\.com/a/content/(\w+)`,
			`fc2\.com/video/(\d+)`,
		),
		Description: "Extract videos from FC2 Video",
		Uploader:    "FC2 User",
		Ladder: []Rendition{
			{FormatID: "1080p", Width: 1920, Height: 1080, FPS: 30, TBR: 4000, VCodec: "avc1", SizeMB: 120},
			{FormatID: "720p", Width: 1280, Height: 720, FPS: 30, TBR: 2500, VCodec: "avc1", SizeMB: 70},
			{FormatID: "480p", Width: 854, Height: 480, FPS: 30, TBR: 1500, VCodec: "avc1", SizeMB: 40},
			{FormatID: "360p", Width: 640, Height: 360, FPS: 30, TBR: 800, VCodec: "avc1", SizeMB: 20},
		},
	},
	{
		Name: "flickr", DisplayName: "Flickr", Platform: domain.PlatformFlickr,
		Domains: []string{"flickr.com", "www.flickr.com", "flic.kr"},
		IDPatterns: patterns(
			`flickr\.com/photos/[^/]+/sets/(\d+)`,
			`flickr\.com/photos/[^/]+/(\d+)`,
			`flic\.kr/p/([a-zA-Z0-9]+)`,
			`flickr\.com/photos/([^/?#]+)/?$`,
		),
		Description: "Extract videos and photos from Flickr",
		Uploader:    "Flickr User",
		Ladder:      ladderHD[:2],
	},
	{
		Name: "twitch", DisplayName: "Twitch", Platform: domain.PlatformTwitch,
		Domains: []string{"twitch.tv", "www.twitch.tv", "clips.twitch.tv", "m.twitch.tv"},
		IDPatterns: patterns(
			`twitch\.tv/videos/(\d+)`,
			`twitch\.tv/[^/]+/clip/([a-zA-Z0-9\-_]+)`,
			`clips\.twitch\.tv/([a-zA-Z0-9\-_]+)`,
			`twitch\.tv/([^/?#]+)/?$`,
		),
		Description: "Extract VODs, clips and live streams from Twitch",
		Uploader:    "Twitch Streamer",
		Ladder:      ladderStream,
	},
	{
		Name: "twitter", DisplayName: "Twitter/X", Platform: domain.PlatformTwitter,
		Domains: []string{"twitter.com", "www.twitter.com", "x.com", "www.x.com", "t.co", "mobile.twitter.com"},
		IDPatterns: patterns(
			`(?:twitter|x)\.com/[^/]+/status/(\d+)`,
			`t\.co/([a-zA-Z0-9]+)`,
		),
		Description: "Extract videos from tweets",
		Uploader:    "Twitter User",
		Ladder:      ladderHD[1:],
	},
}

// SiteByName returns the built-in site with the given name
func SiteByName(name string) (Site, bool) {
	for _, s := range Sites {
		if s.Name == name {
			return s, true
		}
	}
	return Site{}, false
}
