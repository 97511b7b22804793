package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthController serves the liveness endpoint used by the UI shell to
// detect that the backend is up.
type HealthController struct {
	version string
}

func NewHealthController(version string) *HealthController {
	return &HealthController{version: version}
}

// Health reports service status and version.
// GET /health
func (hc *HealthController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": hc.version,
	})
}
