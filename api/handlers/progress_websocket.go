package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/vidgrab-go/internal/app"
	"go.uber.org/zap"
)

// ProgressWebSocketHandler pushes download progress events to clients
type ProgressWebSocketHandler struct {
	hub    *app.ProgressHub
	logger *zap.Logger
}

// NewProgressWebSocketHandler creates a progress stream handler
func NewProgressWebSocketHandler(hub *app.ProgressHub, log *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{hub: hub, logger: log}
}

// HandleWebSocket handles GET /api/v1/ws/progress. An optional id query
// parameter limits the stream to one download.
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	filter := c.Query("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	h.logger.Debug("Progress client connected",
		zap.String("remote_addr", c.Request.RemoteAddr),
		zap.Int("subscribers", h.hub.Subscribers()))

	done := readUntilClosed(conn)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if filter != "" && event.DownloadID != filter {
				continue
			}
			if err := writeJSON(conn, event); err != nil {
				return
			}
		case <-ticker.C:
			if err := writePing(conn); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
