// internal/handler/job_handler.go
package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"escpos-service/internal/model"
	"escpos-service/internal/repository"
	"escpos-service/internal/service"
	"escpos-service/internal/utils"
)

// JobHandler handles print job queries
type JobHandler struct {
	printService *service.PrintService
	logger       *utils.ServiceLogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(printService *service.PrintService, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		printService: printService,
		logger:       utils.NewServiceLogger(logger, "job-handler"),
	}
}

// RegisterRoutes registers job routes
func (h *JobHandler) RegisterRoutes(router *gin.RouterGroup) {
	jobs := router.Group("/jobs")
	{
		jobs.GET("", h.ListJobs)
		jobs.GET("/stats", h.GetStats)
		jobs.GET("/:job_id", h.GetJob)
	}
}

// GetJob returns one job
// @Summary Get job
// @Tags Jobs
// @Produce json
// @Param job_id path string true "Job ID"
// @Success 200 {object} utils.APIResponse{data=model.PrintJob}
// @Failure 400 {object} utils.APIResponse "Invalid job ID"
// @Failure 404 {object} utils.APIResponse "Job not found"
// @Router /jobs/{job_id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid job ID", err)
		return
	}

	job, err := h.printService.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondServiceError(c, h.logger, "Failed to get job", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Job retrieved successfully", job)
}

// ListJobs lists jobs across printers
// @Summary List jobs
// @Tags Jobs
// @Produce json
// @Param printer_id query string false "Printer ID"
// @Param status query string false "Job status"
// @Param page query int false "Page" default(1)
// @Param per_page query int false "Page size" default(50)
// @Success 200 {object} utils.APIResponse{data=[]model.PrintJob}
// @Router /jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	filter, err := parseJobFilter(c)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	if printerID := c.Query("printer_id"); printerID != "" {
		filter.PrinterID = &printerID
	}

	jobs, total, err := h.printService.ListJobs(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, h.logger, "Failed to list jobs", err)
		return
	}
	utils.ListResponse(c, "Jobs retrieved successfully", jobs, total)
}

// GetStats returns job statistics across printers
// @Summary Job statistics
// @Tags Jobs
// @Produce json
// @Success 200 {object} utils.APIResponse{data=repository.JobStats}
// @Router /jobs/stats [get]
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.printService.GetJobStats(c.Request.Context(), "")
	if err != nil {
		respondServiceError(c, h.logger, "Failed to get job stats", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Job stats retrieved successfully", stats)
}

// parseJobFilter reads status and paging query parameters
func parseJobFilter(c *gin.Context) (*repository.JobFilter, error) {
	filter := &repository.JobFilter{Page: 1, PerPage: 50}

	if s := c.Query("status"); s != "" {
		status := model.JobStatus(strings.ToUpper(s))
		switch status {
		case model.JobStatusQueued, model.JobStatusPrinting, model.JobStatusCompleted, model.JobStatusFailed:
			filter.Status = &status
		default:
			return nil, fmt.Errorf("invalid status: %s", s)
		}
	}

	if s := c.Query("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 1 {
			return nil, fmt.Errorf("invalid page: %s", s)
		}
		filter.Page = page
	}

	if s := c.Query("per_page"); s != "" {
		perPage, err := strconv.Atoi(s)
		if err != nil || perPage < 1 || perPage > 500 {
			return nil, fmt.Errorf("per_page must be between 1 and 500")
		}
		filter.PerPage = perPage
	}

	return filter, nil
}
