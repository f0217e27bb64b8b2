// internal/handler/discovery_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"escpos-service/internal/service"
	"escpos-service/internal/utils"
)

// DiscoveryHandler handles printer discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	discovery := router.Group("/discovery")
	{
		discovery.GET("", h.GetScanners)
		discovery.GET("/:type", h.Scan)
	}
}

// Scan scans for printers
// @Summary Scan for printers
// @Description Scan USB, serial and TCP connections for receipt printers
// @Tags Discovery
// @Produce json
// @Param type path string true "Scan type" Enums(all, usb, serial, tcp)
// @Success 200 {object} utils.APIResponse{data=service.ScanResult} "Printer scan completed"
// @Failure 400 {object} utils.APIResponse "Unsupported scan type"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /discovery/{type} [get]
func (h *DiscoveryHandler) Scan(c *gin.Context) {
	result, err := h.discoveryService.Scan(c.Request.Context(), c.Param("type"))
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedScanType) {
			utils.ErrorResponse(c, http.StatusBadRequest, "Unsupported scan type", err)
			return
		}
		h.logger.Error("Failed to scan printers", zap.Error(err), zap.String("request_id", utils.GetRequestID(c)))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan printers", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Printer scan completed", result)
}

// GetScanners lists scan types and the scanners available on this host
// @Summary Available scanners
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{scan_types=[]string,available=[]string}}
// @Router /discovery [get]
func (h *DiscoveryHandler) GetScanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Scanners retrieved", gin.H{
		"scan_types": service.ScanTypes,
		"available":  h.discoveryService.AvailableScanners(),
	})
}
