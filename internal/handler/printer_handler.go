// internal/handler/printer_handler.go
package handler

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"escpos-service/internal/receipt"
	"escpos-service/internal/repository"
	"escpos-service/internal/service"
	"escpos-service/internal/utils"
)

// PrinterHandler handles printer and print job HTTP requests
type PrinterHandler struct {
	printService *service.PrintService
	logger       *utils.ServiceLogger
}

// PrintRequest carries a receipt document
type PrintRequest struct {
	Document      *receipt.Document `json:"document" binding:"required"`
	Copies        int               `json:"copies"`
	CorrelationID string            `json:"correlation_id"`
}

// RawPrintRequest carries base64 encoded printer bytes
type RawPrintRequest struct {
	Data          string `json:"data" binding:"required"`
	Copies        int    `json:"copies"`
	CorrelationID string `json:"correlation_id"`
}

// NewPrinterHandler creates a new printer handler
func NewPrinterHandler(printService *service.PrintService, logger *zap.Logger) *PrinterHandler {
	return &PrinterHandler{
		printService: printService,
		logger:       utils.NewServiceLogger(logger, "printer-handler"),
	}
}

// RegisterRoutes registers printer routes
func (h *PrinterHandler) RegisterRoutes(router *gin.RouterGroup) {
	printers := router.Group("/printers")
	{
		printers.GET("", h.ListPrinters)
		printers.GET("/:printer_id", h.GetPrinter)
		printers.POST("/:printer_id/print", h.Print)
		printers.POST("/:printer_id/raw", h.PrintRaw)
		printers.POST("/:printer_id/preview", h.Preview)
		printers.GET("/:printer_id/jobs", h.ListPrinterJobs)
		printers.GET("/:printer_id/stats", h.GetPrinterStats)
	}
}

// ListPrinters lists configured printers
// @Summary List printers
// @Tags Printers
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.Printer}
// @Router /printers [get]
func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	printers := h.printService.ListPrinters()
	utils.ListResponse(c, "Printers retrieved successfully", printers, len(printers))
}

// GetPrinter returns one printer with its runtime state
// @Summary Get printer
// @Tags Printers
// @Produce json
// @Param printer_id path string true "Printer ID"
// @Success 200 {object} utils.APIResponse{data=model.Printer}
// @Failure 404 {object} utils.APIResponse "Printer not found"
// @Router /printers/{printer_id} [get]
func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	printer, err := h.printService.GetPrinter(c.Param("printer_id"))
	if err != nil {
		h.respondError(c, "Failed to get printer", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Printer retrieved successfully", printer)
}

// Print queues a receipt document
// @Summary Print receipt
// @Tags Printers
// @Accept json
// @Produce json
// @Param printer_id path string true "Printer ID"
// @Param request body PrintRequest true "Print request"
// @Success 202 {object} utils.APIResponse{data=model.PrintJob} "Job queued"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Printer not found"
// @Failure 422 {object} utils.APIResponse "Invalid document"
// @Failure 429 {object} utils.APIResponse "Queue full"
// @Router /printers/{printer_id}/print [post]
func (h *PrinterHandler) Print(c *gin.Context) {
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	job, err := h.printService.SubmitDocument(c.Request.Context(), c.Param("printer_id"), req.Document, req.Copies, h.correlationID(c, req.CorrelationID))
	if err != nil {
		h.respondError(c, "Failed to queue print job", err)
		return
	}

	utils.SuccessResponse(c, http.StatusAccepted, "Print job queued", job)
}

// PrintRaw queues raw printer bytes
// @Summary Print raw bytes
// @Tags Printers
// @Accept json
// @Produce json
// @Param printer_id path string true "Printer ID"
// @Param request body RawPrintRequest true "Raw print request"
// @Success 202 {object} utils.APIResponse{data=model.PrintJob} "Job queued"
// @Router /printers/{printer_id}/raw [post]
func (h *PrinterHandler) PrintRaw(c *gin.Context) {
	var req RawPrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Data must be base64 encoded", err)
		return
	}

	job, err := h.printService.SubmitRaw(c.Request.Context(), c.Param("printer_id"), data, req.Copies, h.correlationID(c, req.CorrelationID))
	if err != nil {
		h.respondError(c, "Failed to queue raw print job", err)
		return
	}

	utils.SuccessResponse(c, http.StatusAccepted, "Print job queued", job)
}

// Preview encodes a document without printing it
// @Summary Preview receipt bytes
// @Tags Printers
// @Accept json
// @Produce json
// @Param printer_id path string true "Printer ID"
// @Param request body PrintRequest true "Print request"
// @Success 200 {object} utils.APIResponse{data=service.Preview}
// @Router /printers/{printer_id}/preview [post]
func (h *PrinterHandler) Preview(c *gin.Context) {
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	preview, err := h.printService.Preview(c.Request.Context(), c.Param("printer_id"), req.Document)
	if err != nil {
		h.respondError(c, "Failed to render preview", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Preview rendered", preview)
}

// ListPrinterJobs lists the jobs of one printer
// @Summary List printer jobs
// @Tags Jobs
// @Produce json
// @Param printer_id path string true "Printer ID"
// @Param status query string false "Job status"
// @Param page query int false "Page" default(1)
// @Param per_page query int false "Page size" default(50)
// @Success 200 {object} utils.APIResponse{data=[]model.PrintJob}
// @Router /printers/{printer_id}/jobs [get]
func (h *PrinterHandler) ListPrinterJobs(c *gin.Context) {
	filter, err := parseJobFilter(c)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	printerID := c.Param("printer_id")
	filter.PrinterID = &printerID

	jobs, total, err := h.printService.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "Failed to list jobs", err)
		return
	}
	utils.ListResponse(c, "Jobs retrieved successfully", jobs, total)
}

// GetPrinterStats returns job statistics of one printer
// @Summary Printer job statistics
// @Tags Printers
// @Produce json
// @Param printer_id path string true "Printer ID"
// @Success 200 {object} utils.APIResponse{data=repository.JobStats}
// @Router /printers/{printer_id}/stats [get]
func (h *PrinterHandler) GetPrinterStats(c *gin.Context) {
	stats, err := h.printService.GetJobStats(c.Request.Context(), c.Param("printer_id"))
	if err != nil {
		h.respondError(c, "Failed to get printer stats", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Printer stats retrieved successfully", stats)
}

// correlationID prefers the body value and falls back to the request id
func (h *PrinterHandler) correlationID(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return utils.GetRequestID(c)
}

// respondError maps service errors to HTTP status codes
func (h *PrinterHandler) respondError(c *gin.Context, message string, err error) {
	respondServiceError(c, h.logger, message, err)
}

func respondServiceError(c *gin.Context, logger *utils.ServiceLogger, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrPrinterNotFound), errors.Is(err, repository.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidJob):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrQueueFull):
		status = http.StatusTooManyRequests
	case errors.Is(err, service.ErrServiceStopped):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		logger.Error(message, zap.Error(err), zap.String("request_id", utils.GetRequestID(c)))
	}
	utils.ErrorResponse(c, status, message, err)
}
