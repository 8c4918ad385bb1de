// Package plugin selects the extractor responsible for a URL and caches
// what the extractors return.
package plugin

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/internal/extractor"
	"go.uber.org/zap"
)

// Status is the lifecycle state of a registered plugin
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusError    Status = "error"
)

// maxConsecutiveErrors moves a plugin to StatusError
const maxConsecutiveErrors = 5

type registeredPlugin struct {
	extractor    domain.Extractor
	priority     int
	status       Status
	usageCount   int64
	errorCount   int64
	consecutive  int
	lastError    string
	registeredAt time.Time
	lastUsedAt   *time.Time
}

// PluginInfo is the read-only view of a registered plugin
type PluginInfo struct {
	Name             string     `json:"name"`
	Version          string     `json:"version"`
	Description      string     `json:"description"`
	Author           string     `json:"author"`
	SupportedDomains []string   `json:"supported_domains"`
	Priority         int        `json:"priority"`
	Status           Status     `json:"status"`
	UsageCount       int64      `json:"usage_count"`
	ErrorCount       int64      `json:"error_count"`
	LastError        string     `json:"last_error,omitempty"`
	RegisteredAt     time.Time  `json:"registered_at"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
}

// RegistryStats summarises the registry
type RegistryStats struct {
	TotalPlugins    int   `json:"total_plugins"`
	ActivePlugins   int   `json:"active_plugins"`
	FailedPlugins   int   `json:"failed_plugins"`
	TotalDomains    int   `json:"total_domains"`
	RouteCacheHits  int64 `json:"route_cache_hits"`
	RouteCacheMiss  int64 `json:"route_cache_misses"`
	RouteCacheLimit int64 `json:"route_cache_limit"`
}

// Registry holds the extractors and remembers which one served a URL
type Registry struct {
	logger *zap.Logger

	mu      sync.RWMutex
	plugins map[string]*registeredPlugin

	routes     *ristretto.Cache[string, string]
	routeLimit int64
	hits       atomic.Int64
	misses     atomic.Int64
}

// NewRegistry creates an empty registry whose route cache holds up to cacheSize URLs
func NewRegistry(cacheSize int64, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = 1000
	}

	routes, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create route cache: %w", err)
	}

	return &Registry{
		logger:     logger,
		plugins:    make(map[string]*registeredPlugin),
		routes:     routes,
		routeLimit: cacheSize,
	}, nil
}

// Register adds an extractor under its Info().Name
func (r *Registry) Register(ext domain.Extractor, priority int) error {
	name := ext.Info().Name
	if name == "" {
		return fmt.Errorf("extractor has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrPluginExists, name)
	}

	r.plugins[name] = &registeredPlugin{
		extractor:    ext,
		priority:     priority,
		status:       StatusActive,
		registeredAt: time.Now(),
	}
	r.routes.Clear()

	r.logger.Debug("Registered plugin", zap.String("plugin", name), zap.Int("priority", priority))
	return nil
}

// Unregister removes a plugin
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plugins[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrPluginNotFound, name)
	}
	delete(r.plugins, name)
	r.routes.Clear()
	return nil
}

// Enable activates a plugin and clears its error state
func (r *Registry) Enable(name string) error {
	return r.setStatus(name, StatusActive)
}

// Disable deactivates a plugin
func (r *Registry) Disable(name string) error {
	return r.setStatus(name, StatusInactive)
}

func (r *Registry) setStatus(name string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plugins[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrPluginNotFound, name)
	}
	p.status = status
	if status == StatusActive {
		p.consecutive = 0
	}
	r.routes.Clear()

	r.logger.Info("Plugin status changed", zap.String("plugin", name), zap.String("status", string(status)))
	return nil
}

// Get returns the extractor registered under name
func (r *Registry) Get(name string) (domain.Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[name]
	if !ok {
		return nil, false
	}
	return p.extractor, true
}

// Info returns the view of one plugin
func (r *Registry) Info(name string) (PluginInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[name]
	if !ok {
		return PluginInfo{}, fmt.Errorf("%w: %s", domain.ErrPluginNotFound, name)
	}
	return p.view(), nil
}

// List returns every plugin sorted by priority (highest first), then name
func (r *Registry) List() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PluginInfo, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p.view())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FindForURL returns the highest priority active plugin that can handle url
func (r *Registry) FindForURL(rawURL string) (string, domain.Extractor, bool) {
	if name, ok := r.routes.Get(rawURL); ok {
		r.mu.Lock()
		p, exists := r.plugins[name]
		if exists && p.status == StatusActive {
			p.touch()
			r.mu.Unlock()
			r.hits.Add(1)
			return name, p.extractor, true
		}
		r.mu.Unlock()
	}
	r.misses.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		bestName string
		best     *registeredPlugin
	)
	for name, p := range r.plugins {
		if p.status != StatusActive {
			continue
		}
		if !extractor.MatchesDomain(rawURL, p.extractor.SupportedDomains()) || !p.extractor.CanHandle(rawURL) {
			continue
		}
		if best == nil || p.priority > best.priority || (p.priority == best.priority && name < bestName) {
			bestName, best = name, p
		}
	}

	if best == nil {
		return "", nil, false
	}

	best.touch()
	r.routes.Set(rawURL, bestName, 1)
	return bestName, best.extractor, true
}

// RecordSuccess resets the consecutive error counter of a plugin
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.plugins[name]; ok {
		p.consecutive = 0
	}
}

// RecordError notes a failed extraction. After maxConsecutiveErrors the plugin
// is moved to StatusError until it is enabled again.
func (r *Registry) RecordError(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plugins[name]
	if !ok {
		return
	}
	p.errorCount++
	p.consecutive++
	p.lastError = err.Error()

	if p.consecutive >= maxConsecutiveErrors && p.status == StatusActive {
		p.status = StatusError
		r.routes.Clear()
		r.logger.Warn("Plugin disabled after repeated failures",
			zap.String("plugin", name),
			zap.Int("failures", p.consecutive),
			zap.String("last_error", p.lastError))
	}
}

// ClearRoutes drops the url → plugin cache
func (r *Registry) ClearRoutes() {
	r.routes.Clear()
}

// Stats summarises the registry
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		TotalPlugins:    len(r.plugins),
		RouteCacheHits:  r.hits.Load(),
		RouteCacheMiss:  r.misses.Load(),
		RouteCacheLimit: r.routeLimit,
	}

	domains := make(map[string]struct{})
	for _, p := range r.plugins {
		switch p.status {
		case StatusActive:
			stats.ActivePlugins++
		case StatusError:
			stats.FailedPlugins++
		}
		for _, d := range p.extractor.SupportedDomains() {
			domains[d] = struct{}{}
		}
	}
	stats.TotalDomains = len(domains)
	return stats
}

// Close releases the route cache
func (r *Registry) Close() {
	r.routes.Close()
}

func (p *registeredPlugin) touch() {
	p.usageCount++
	now := time.Now()
	p.lastUsedAt = &now
}

func (p *registeredPlugin) view() PluginInfo {
	info := p.extractor.Info()
	return PluginInfo{
		Name:             info.Name,
		Version:          info.Version,
		Description:      info.Description,
		Author:           info.Author,
		SupportedDomains: info.SupportedDomains,
		Priority:         p.priority,
		Status:           p.status,
		UsageCount:       p.usageCount,
		ErrorCount:       p.errorCount,
		LastError:        p.lastError,
		RegisteredAt:     p.registeredAt,
		LastUsedAt:       p.lastUsedAt,
	}
}
