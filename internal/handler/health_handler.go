// internal/handler/health_handler.go
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"escpos-service/internal/config"
	"escpos-service/internal/model"
	"escpos-service/internal/service"
	"escpos-service/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	printService *service.PrintService
	websocket    *WebSocketHandler
	config       *config.Config
	logger       *utils.ServiceLogger
	startedAt    time.Time
}

// NewHealthHandler creates a new health handler. websocket may be nil.
func NewHealthHandler(printService *service.PrintService, websocket *WebSocketHandler, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		printService: printService,
		websocket:    websocket,
		config:       config,
		logger:       utils.NewServiceLogger(logger, "health-handler"),
		startedAt:    time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Get overall service health including printer states
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy or degraded"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	if h.printService.Running() {
		health.Checks["print_service"] = CheckResult{Status: "healthy", Message: "Workers running"}
	} else {
		health.Status = "unhealthy"
		health.Checks["print_service"] = CheckResult{Status: "unhealthy", Message: "Workers stopped"}
	}

	for _, p := range h.printService.ListPrinters() {
		check := CheckResult{
			Status: "healthy",
			Data: map[string]interface{}{
				"status":          p.Status,
				"queue_length":    p.QueueLength,
				"connection_type": p.ConnectionType,
				"jobs_completed":  p.Stats.JobsCompleted,
				"jobs_failed":     p.Stats.JobsFailed,
			},
		}
		if p.Status == model.PrinterStatusError {
			check.Status = "degraded"
			if p.LastError != nil {
				check.Message = *p.LastError
			}
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
		health.Checks[fmt.Sprintf("printer:%s", p.ID)] = check
	}

	if h.websocket != nil {
		stats := h.websocket.GetConnectionStats()
		health.Checks["websocket"] = CheckResult{
			Status: "healthy",
			Data: map[string]interface{}{
				"total_connections": stats.TotalConnections,
				"by_type":           stats.ByType,
			},
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if !h.printService.Running() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "print service not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
