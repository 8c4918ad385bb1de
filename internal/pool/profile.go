package pool

import (
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
)

var browserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

var browserHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// siteProfile lists what a site expects before it serves video pages
type siteProfile struct {
	domain  string
	origin  string
	cookies map[string]string
}

var siteProfiles = []siteProfile{
	{"pornhub.com", "https://www.pornhub.com", map[string]string{"age_verified": "1", "platform": "pc"}},
	{"youporn.com", "https://www.youporn.com", map[string]string{"age_gate": "1", "age_verified": "true"}},
	{"xvideos.com", "https://www.xvideos.com", map[string]string{"age_verified": "1"}},
	{"xhamster.com", "https://xhamster.com", map[string]string{"age_verified": "1", "ageGateAccepted": "true"}},
	{"kissjav.com", "https://kissjav.com", map[string]string{"age_check": "1", "adult_content": "accepted"}},
}

// hostProfile is the fixed identity a host session presents
type hostProfile struct {
	userAgent string
	headers   http.Header
	cookies   []*http.Cookie
}

// newHostProfile builds the profile for a host key. A configured user agent
// is used unless rotation is on; otherwise one is picked per session.
func newHostProfile(key, userAgent string, rotate bool) hostProfile {
	p := hostProfile{userAgent: userAgent, headers: http.Header{}}
	if rotate || userAgent == "" {
		p.userAgent = browserUserAgents[rand.IntN(len(browserUserAgents))]
	}
	for name, value := range browserHeaders {
		p.headers.Set(name, value)
	}

	site, ok := matchSite(key)
	if !ok {
		return p
	}
	p.headers.Set("Referer", site.origin+"/")
	p.headers.Set("Origin", site.origin)
	for name, value := range site.cookies {
		p.cookies = append(p.cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	return p
}

func matchSite(key string) (siteProfile, bool) {
	u, err := url.Parse(key)
	if err != nil {
		return siteProfile{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, site := range siteProfiles {
		if host == site.domain || strings.HasSuffix(host, "."+site.domain) {
			return site, true
		}
	}
	return siteProfile{}, false
}

// profileTransport adds the host profile to requests that do not set the
// same headers themselves
type profileTransport struct {
	base    http.RoundTripper
	profile hostProfile
}

func (t *profileTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := false
	set := func(name, value string) {
		if value == "" || req.Header.Get(name) != "" {
			return
		}
		if !cloned {
			req = req.Clone(req.Context())
			cloned = true
		}
		req.Header.Set(name, value)
	}

	set("User-Agent", t.profile.userAgent)
	for name, values := range t.profile.headers {
		set(name, values[0])
	}
	return t.base.RoundTrip(req)
}
