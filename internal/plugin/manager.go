package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// extractTimeout bounds a shared extraction once it no longer follows the
// caller's context
const extractTimeout = 2 * time.Minute

// Extraction is the result of resolving a URL through a plugin
type Extraction struct {
	Plugin   string            `json:"plugin"`
	Platform domain.Platform   `json:"platform"`
	Info     *domain.MediaInfo `json:"info"`
	Cached   bool              `json:"cached"`
}

// ManagerStats extends the registry stats with extraction counters
type ManagerStats struct {
	RegistryStats
	ExtractionCacheHits   int64 `json:"extraction_cache_hits"`
	ExtractionCacheMisses int64 `json:"extraction_cache_misses"`
	ExtractionErrors      int64 `json:"extraction_errors"`
}

// Manager is the entry point used by the download pipeline
type Manager struct {
	registry *Registry
	router   *Router
	logger   *zap.Logger

	cache *ristretto.Cache[string, *domain.MediaInfo]
	ttl   time.Duration
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewManager creates a plugin manager from the extractor configuration
func NewManager(config domain.ExtractorConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	size := config.CacheSize
	if size <= 0 {
		size = 1000
	}

	registry, err := NewRegistry(size, logger)
	if err != nil {
		return nil, err
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *domain.MediaInfo]{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("failed to create extraction cache: %w", err)
	}

	return &Manager{
		registry: registry,
		router:   NewRouter(registry),
		logger:   logger,
		cache:    cache,
		ttl:      config.CacheTTL,
	}, nil
}

// Registry returns the underlying registry
func (m *Manager) Registry() *Registry { return m.registry }

// Router returns the URL router
func (m *Manager) Router() *Router { return m.router }

// Register adds an extractor with the given priority
func (m *Manager) Register(ext domain.Extractor, priority int) error {
	return m.registry.Register(ext, priority)
}

// RegisterAll adds extractors and disables the names listed in disabled
func (m *Manager) RegisterAll(exts []domain.Extractor, disabled []string) error {
	for _, ext := range exts {
		if err := m.Register(ext, 0); err != nil {
			return err
		}
	}
	for _, name := range disabled {
		if err := m.Disable(name); err != nil {
			m.logger.Warn("Cannot disable unknown plugin", zap.String("plugin", name))
		}
	}
	return nil
}

// Route selects the plugin for a URL
func (m *Manager) Route(rawURL string) RoutingResult {
	return m.router.Route(rawURL)
}

// Classify routes a URL without extracting it and returns its platform
// together with the normalised URL
func (m *Manager) Classify(rawURL string) (domain.Platform, string, error) {
	route := m.router.Route(rawURL)
	if !route.Success {
		return "", "", fmt.Errorf("%w: %s", domain.ErrUnsupportedURL, route.Error)
	}
	ext, ok := m.registry.Get(route.Plugin)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", domain.ErrPluginNotFound, route.Plugin)
	}
	return platformOf(ext, route.URLInfo), route.URLInfo.URL, nil
}

// Extract resolves a URL into media information. Results are cached for the
// configured TTL and concurrent calls for the same URL share one extraction.
// The returned info is shared and must not be modified.
func (m *Manager) Extract(ctx context.Context, rawURL string) (*Extraction, error) {
	route := m.router.Route(rawURL)
	if !route.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedURL, route.Error)
	}

	ext, ok := m.registry.Get(route.Plugin)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPluginNotFound, route.Plugin)
	}

	key := route.Plugin + "|" + route.URLInfo.URL
	platform := platformOf(ext, route.URLInfo)

	if info, ok := m.cache.Get(key); ok {
		m.hits.Add(1)
		return &Extraction{Plugin: route.Plugin, Platform: platform, Info: info, Cached: true}, nil
	}
	m.misses.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := m.group.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), extractTimeout)
		defer cancel()

		started := time.Now()
		info, err := ext.ExtractInfo(runCtx, route.URLInfo.URL)
		if err != nil {
			m.errors.Add(1)
			if !isContextError(err) {
				m.registry.RecordError(route.Plugin, err)
			}
			return nil, err
		}
		m.registry.RecordSuccess(route.Plugin)
		if m.ttl > 0 {
			m.cache.SetWithTTL(key, info, 1, m.ttl)
		} else {
			m.cache.Set(key, info, 1)
		}
		m.logger.Debug("Extracted media info",
			zap.String("plugin", route.Plugin),
			zap.String("url", route.URLInfo.URL),
			zap.Int("formats", len(info.Formats)),
			zap.Duration("took", time.Since(started)))
		return info, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return &Extraction{Plugin: route.Plugin, Platform: platform, Info: res.Val.(*domain.MediaInfo)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Metadata returns the descriptive metadata for a URL
func (m *Manager) Metadata(ctx context.Context, rawURL string) (*domain.VideoMetadata, error) {
	ex, err := m.Extract(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return domain.BuildMetadata(ex.Info, ex.Platform), nil
}

// DownloadURLs returns the direct media URLs for a URL
func (m *Manager) DownloadURLs(ctx context.Context, rawURL string) ([]string, error) {
	ex, err := m.Extract(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	ext, ok := m.registry.Get(ex.Plugin)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPluginNotFound, ex.Plugin)
	}
	return ext.DownloadURLs(ex.Info), nil
}

// Plugins lists the registered plugins
func (m *Manager) Plugins() []PluginInfo {
	return m.registry.List()
}

// Enable activates a plugin
func (m *Manager) Enable(name string) error {
	if err := m.registry.Enable(name); err != nil {
		return err
	}
	m.cache.Clear()
	return nil
}

// Disable deactivates a plugin and drops cached extractions
func (m *Manager) Disable(name string) error {
	if err := m.registry.Disable(name); err != nil {
		return err
	}
	m.cache.Clear()
	return nil
}

// Stats returns registry and extraction counters
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		RegistryStats:         m.registry.Stats(),
		ExtractionCacheHits:   m.hits.Load(),
		ExtractionCacheMisses: m.misses.Load(),
		ExtractionErrors:      m.errors.Load(),
	}
}

// Close releases both caches
func (m *Manager) Close() {
	m.cache.Close()
	m.registry.Close()
}

func platformOf(ext domain.Extractor, info *URLInfo) domain.Platform {
	if p, ok := ext.(interface{ Platform() domain.Platform }); ok {
		return p.Platform()
	}
	if p := domain.Platform(info.Platform); domain.ValidatePlatform(p) {
		return p
	}
	return domain.PlatformUnknown
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
