package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/vidgrab-go/internal/app"
	"github.com/yourusername/vidgrab-go/internal/pool"
)

// Version is reported by the health endpoint
var Version = "dev"

// HealthHandler handles health check requests
type HealthHandler struct {
	queueMgr *app.QueueManager
	pool     *pool.Manager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queueMgr *app.QueueManager, p *pool.Manager) *HealthHandler {
	return &HealthHandler{
		queueMgr: queueMgr,
		pool:     p,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Running  bool `json:"running"`
		InFlight int  `json:"in_flight"`
	} `json:"queue"`
	Pool struct {
		Running bool `json:"running"`
		Hosts   int  `json:"hosts"`
	} `json:"pool"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	response.Queue.Running = h.queueMgr.IsRunning()
	response.Queue.InFlight = h.queueMgr.InFlight()
	response.Pool.Running = h.pool.IsRunning()
	response.Pool.Hosts = h.pool.Hosts()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.queueMgr.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue manager not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
