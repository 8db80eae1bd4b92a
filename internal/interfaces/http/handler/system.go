package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reformshop/backend/internal/interfaces/http/dto"
)

// SystemHandler handles health and info endpoints
type SystemHandler struct {
	startTime time.Time
	ready     func() bool
}

// NewSystemHandler creates a system handler. The ready callback reports
// whether startup wiring has completed.
func NewSystemHandler(ready func() bool) *SystemHandler {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &SystemHandler{
		startTime: time.Now(),
		ready:     ready,
	}
}

// RegisterRoutes mounts the system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ready", h.Ready)
	rg.GET("/system/info", h.GetSystemInfo)
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health reports liveness
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"status": "ok"}))
}

// Ready reports whether the cart engine may act on identity changes
func (h *SystemHandler) Ready(c *gin.Context) {
	if !h.ready() {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse("NOT_READY", "Startup has not completed"))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"status": "ready"}))
}

// GetSystemInfo returns basic process information
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:      "ReformShop Cart API",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}
