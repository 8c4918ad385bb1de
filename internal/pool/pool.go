// Package pool keeps one HTTP client per remote host and tracks request
// statistics for each of them.
package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/vidgrab-go/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// ErrAlreadyRunning is returned by Start when the cleanup loop is active
var ErrAlreadyRunning = errors.New("connection pool already running")

// Manager hands out pooled HTTP clients keyed by scheme://host
type Manager struct {
	config domain.NetworkConfig
	logger *zap.Logger
	jar    http.CookieJar

	mu         sync.Mutex
	clients    map[string]*http.Client
	transports map[string]*http.Transport
	stats      map[string]*ConnectionStats

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates a connection pool manager
func NewManager(config domain.NetworkConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		config:     config,
		logger:     logger,
		clients:    make(map[string]*http.Client),
		transports: make(map[string]*http.Transport),
		stats:      make(map[string]*ConnectionStats),
	}

	if config.EnableCookies {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		m.jar = jar
	}

	if _, err := m.newTransport(); err != nil {
		return nil, err
	}

	return m, nil
}

// HostKey returns the scheme://host[:port] key for a URL
func HostKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing scheme or host", rawURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// resolveHostLocked maps a URL, a host key or a bare host[:port] to a known
// host key, preferring https over http for bare hosts
func (m *Manager) resolveHostLocked(host string) string {
	host = strings.TrimSpace(host)
	if strings.Contains(host, "://") {
		if key, err := HostKey(host); err == nil {
			return key
		}
		return host
	}
	bare := strings.ToLower(strings.TrimSuffix(host, "/"))
	for _, scheme := range []string{"https://", "http://"} {
		if _, ok := m.stats[scheme+bare]; ok {
			return scheme + bare
		}
	}
	return host
}

// Client returns the pooled client for the URL's host, creating it on first use
func (m *Manager) Client(rawURL string) (*http.Client, error) {
	key, err := HostKey(rawURL)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientLocked(key)
}

func (m *Manager) clientLocked(key string) (*http.Client, error) {
	if client, ok := m.clients[key]; ok {
		return client, nil
	}

	transport, err := m.newTransport()
	if err != nil {
		return nil, err
	}

	profile := newHostProfile(key, m.config.UserAgent, m.config.RotateUserAgent)
	client := &http.Client{
		Transport: &profileTransport{base: transport, profile: profile},
		Jar:       m.jar,
	}
	if m.jar != nil && len(profile.cookies) > 0 {
		if u, err := url.Parse(key); err == nil {
			m.jar.SetCookies(u, profile.cookies)
		}
	}

	m.clients[key] = client
	m.transports[key] = transport
	m.stats[key] = newConnectionStats(m.config.MaxConnections, m.config.MaxConnectionsPerHost)

	m.logger.Debug("Created host session",
		zap.String("host", key),
		zap.String("user_agent", profile.userAgent))
	return client, nil
}

func (m *Manager) newTransport() (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   m.config.ConnectionTimeout,
		KeepAlive: m.config.KeepAliveTimeout,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          m.config.MaxConnections,
		MaxIdleConnsPerHost:   m.config.MaxConnectionsPerHost,
		MaxConnsPerHost:       m.config.MaxConnectionsPerHost,
		IdleConnTimeout:       m.config.KeepAliveTimeout,
		TLSHandshakeTimeout:   m.config.ConnectionTimeout,
		ResponseHeaderTimeout: m.config.ReadTimeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}

	if m.config.ProxyURL == "" {
		return transport, nil
	}

	proxyURL, err := url.Parse(m.config.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}

	switch strings.ToLower(proxyURL.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	case "socks5", "socks5h":
		socks, err := proxy.FromURL(proxyURL, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := socks.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return socks.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	return transport, nil
}

// Do sends the request through the pooled client for its host.
// The response body must be closed to release the active connection slot.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	key, err := HostKey(req.URL.String())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	client, err := m.clientLocked(key)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	stats := m.stats[key]
	stats.RequestsCount++
	m.adjustActiveLocked(stats, 1)
	m.mu.Unlock()

	resp, err := client.Do(req)
	if err != nil {
		m.mu.Lock()
		m.adjustActiveLocked(stats, -1)
		if isTimeout(err) {
			stats.TimeoutsCount++
		} else {
			stats.ErrorsCount++
		}
		m.mu.Unlock()

		m.logger.Debug("Request failed",
			zap.String("host", key),
			zap.String("method", req.Method),
			zap.Error(err))
		return nil, err
	}

	resp.Body = &trackedBody{
		ReadCloser: resp.Body,
		release: func() {
			m.mu.Lock()
			m.adjustActiveLocked(stats, -1)
			m.mu.Unlock()
		},
	}
	return resp, nil
}

func (m *Manager) adjustActiveLocked(stats *ConnectionStats, delta int) {
	stats.ActiveConnections += delta
	if stats.ActiveConnections < 0 {
		stats.ActiveConnections = 0
	}
	idle := m.config.MaxConnectionsPerHost - stats.ActiveConnections
	if idle < 0 {
		idle = 0
	}
	stats.IdleConnections = idle
}

// Get issues a GET request
func (m *Manager) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	return m.request(ctx, http.MethodGet, rawURL, header, nil)
}

// Head issues a HEAD request
func (m *Manager) Head(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	return m.request(ctx, http.MethodHead, rawURL, header, nil)
}

// Post issues a POST request with the given content type
func (m *Manager) Post(ctx context.Context, rawURL, contentType string, body io.Reader) (*http.Response, error) {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return m.request(ctx, http.MethodPost, rawURL, header, body)
}

func (m *Manager) request(ctx context.Context, method, rawURL string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return m.Do(req)
}

// Stats returns the statistics for one host, false when the host is unknown
func (m *Manager) Stats(host string) (HostStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.resolveHostLocked(host)
	stats, ok := m.stats[key]
	if !ok {
		return HostStats{}, false
	}
	return stats.snapshot(key, m.config.MaxConnectionsPerHost), true
}

// AllStats returns the statistics of every known host
func (m *Manager) AllStats() map[string]HostStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]HostStats, len(m.stats))
	for key, stats := range m.stats {
		result[key] = stats.snapshot(key, m.config.MaxConnectionsPerHost)
	}
	return result
}

// ResetStats clears the counters of one host, or of every host when host is empty
func (m *Manager) ResetStats(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if host == "" {
		for _, stats := range m.stats {
			resetCounters(stats)
		}
		return
	}

	key := m.resolveHostLocked(host)
	if stats, ok := m.stats[key]; ok {
		resetCounters(stats)
	}
}

// resetCounters leaves ActiveConnections alone; in-flight bodies still release it
func resetCounters(stats *ConnectionStats) {
	stats.RequestsCount = 0
	stats.ErrorsCount = 0
	stats.TimeoutsCount = 0
	stats.CreatedAt = time.Now()
}

// Hosts returns the number of host sessions
func (m *Manager) Hosts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Start launches the background idle-connection cleanup loop
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.cleanupLoop(loopCtx, m.done)

	m.logger.Info("Connection pool started",
		zap.Int("max_connections", m.config.MaxConnections),
		zap.Int("max_connections_per_host", m.config.MaxConnectionsPerHost),
		zap.Duration("cleanup_interval", m.config.CleanupInterval))
	return nil
}

// Stop stops the cleanup loop, closes idle connections and drops every session
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.running {
		m.cancel()
		done := m.done
		m.running = false
		m.mu.Unlock()
		<-done
		m.mu.Lock()
	}

	for _, transport := range m.transports {
		transport.CloseIdleConnections()
	}
	m.clients = make(map[string]*http.Client)
	m.transports = make(map[string]*http.Transport)
	m.stats = make(map[string]*ConnectionStats)
	m.mu.Unlock()

	m.logger.Info("Connection pool stopped")
}

// IsRunning reports whether the cleanup loop is active
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// CleanupIdle closes idle keep-alive connections and returns the number of sessions cleaned
func (m *Manager) CleanupIdle() int {
	m.mu.Lock()
	transports := make([]*http.Transport, 0, len(m.transports))
	for _, transport := range m.transports {
		transports = append(transports, transport)
	}
	m.mu.Unlock()

	for _, transport := range transports {
		transport.CloseIdleConnections()
	}
	return len(transports)
}

func (m *Manager) cleanupLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := m.config.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupIdle(); n > 0 {
				m.logger.Debug("Closed idle connections", zap.Int("sessions", n))
			}
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type trackedBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *trackedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
