package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/vidgrab-go/internal/pool"
)

// PoolHandler exposes connection pool statistics
type PoolHandler struct {
	pool *pool.Manager
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(p *pool.Manager) *PoolHandler {
	return &PoolHandler{pool: p}
}

// GetStats handles GET /api/v1/pool/stats
func (h *PoolHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running": h.pool.IsRunning(),
		"hosts":   h.pool.Hosts(),
		"stats":   h.pool.AllStats(),
	})
}

// GetHostStats handles GET /api/v1/pool/stats/:host
func (h *PoolHandler) GetHostStats(c *gin.Context) {
	stats, ok := h.pool.Stats(c.Param("host"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for host"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ResetRequest optionally limits a reset to one host
type ResetRequest struct {
	Host string `json:"host"`
}

// ResetStats handles POST /api/v1/pool/reset
func (h *PoolHandler) ResetStats(c *gin.Context) {
	var req ResetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	h.pool.ResetStats(req.Host)
	c.JSON(http.StatusOK, gin.H{"message": "statistics reset", "host": req.Host})
}
