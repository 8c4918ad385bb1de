package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/internal/plugin"
	"go.uber.org/zap"
)

// ExtractorHandler exposes the plugin manager
type ExtractorHandler struct {
	plugins *plugin.Manager
	logger  *zap.Logger
}

// NewExtractorHandler creates a new extractor handler
func NewExtractorHandler(plugins *plugin.Manager, logger *zap.Logger) *ExtractorHandler {
	return &ExtractorHandler{plugins: plugins, logger: logger}
}

// ProbeRequest asks what VidGrab knows about a URL
type ProbeRequest struct {
	URL string `json:"url" binding:"required"`
}

// ProbeResponse is the routing decision plus the extracted metadata
type ProbeResponse struct {
	Routing   plugin.RoutingResult   `json:"routing"`
	Platform  domain.Platform        `json:"platform"`
	Cached    bool                   `json:"cached"`
	Metadata  *domain.VideoMetadata  `json:"metadata"`
	Qualities []domain.QualityOption `json:"qualities"`
}

// ListExtractors handles GET /api/v1/extractors
func (h *ExtractorHandler) ListExtractors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"extractors": h.plugins.Plugins(),
		"stats":      h.plugins.Stats(),
	})
}

// Probe handles POST /api/v1/extractors/probe
func (h *ExtractorHandler) Probe(c *gin.Context) {
	var req ProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route := h.plugins.Route(req.URL)
	if !route.Success {
		c.JSON(http.StatusBadRequest, gin.H{"error": route.Error, "routing": route})
		return
	}

	extraction, err := h.plugins.Extract(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Warn("Probe failed", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	qualities := make([]domain.QualityOption, 0, len(extraction.Info.Formats))
	for _, f := range extraction.Info.Formats {
		qualities = append(qualities, domain.QualityOptionFromFormat(f))
	}

	c.JSON(http.StatusOK, ProbeResponse{
		Routing:   route,
		Platform:  extraction.Platform,
		Cached:    extraction.Cached,
		Metadata:  domain.BuildMetadata(extraction.Info, extraction.Platform),
		Qualities: qualities,
	})
}

// EnableExtractor handles POST /api/v1/extractors/:name/enable
func (h *ExtractorHandler) EnableExtractor(c *gin.Context) {
	name := c.Param("name")
	if err := h.plugins.Enable(name); err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("Extractor enabled", zap.String("name", name))
	c.JSON(http.StatusOK, gin.H{"message": "extractor enabled", "name": name})
}

// DisableExtractor handles POST /api/v1/extractors/:name/disable
func (h *ExtractorHandler) DisableExtractor(c *gin.Context) {
	name := c.Param("name")
	if err := h.plugins.Disable(name); err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("Extractor disabled", zap.String("name", name))
	c.JSON(http.StatusOK, gin.H{"message": "extractor disabled", "name": name})
}
