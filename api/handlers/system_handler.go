package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/vidgrab-go/internal/naming"
	"github.com/yourusername/vidgrab-go/internal/portable"
)

// SystemHandler reports where VidGrab keeps its files
type SystemHandler struct {
	paths    *portable.Manager
	template string
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(paths *portable.Manager, template string) *SystemHandler {
	return &SystemHandler{paths: paths, template: template}
}

// GetPaths handles GET /api/v1/system/paths
func (h *SystemHandler) GetPaths(c *gin.Context) {
	c.JSON(http.StatusOK, h.paths.Info())
}

// TemplateInfo is a named template with a sample rendering
type TemplateInfo struct {
	Name     string `json:"name"`
	Template string `json:"template"`
	Preview  string `json:"preview"`
}

// GetTemplates handles GET /api/v1/system/templates
func (h *SystemHandler) GetTemplates(c *gin.Context) {
	names := naming.Names()
	templates := make([]TemplateInfo, 0, len(names))
	for _, name := range names {
		tmpl := naming.Templates[name]
		templates = append(templates, TemplateInfo{Name: name, Template: tmpl, Preview: naming.Preview(tmpl)})
	}

	c.JSON(http.StatusOK, gin.H{
		"current": TemplateInfo{
			Template: naming.Resolve(h.template),
			Preview:  naming.Preview(h.template),
		},
		"templates": templates,
		"variables": naming.Variables,
	})
}
