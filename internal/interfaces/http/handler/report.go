package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appfiling "github.com/gstfiling/backend/internal/application/filing"
	"github.com/gstfiling/backend/internal/domain/filing"
)

// ReportHandler handles report generation and job status endpoints.
type ReportHandler struct {
	BaseHandler
	svc         *appfiling.Service
	coordinator *appfiling.Coordinator
	logger      *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(svc *appfiling.Service, coordinator *appfiling.Coordinator, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		svc:         svc,
		coordinator: coordinator,
		logger:      logger,
	}
}

// GenerateReportRequest is the report-generation request body.
type GenerateReportRequest struct {
	ReportType string `json:"report_type" binding:"required"`
	Month      int    `json:"month" binding:"required"`
	Year       int    `json:"year" binding:"required"`
}

// JobQueuedResponse acknowledges a background report job.
type JobQueuedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// RegisterRoutes registers report routes
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	{
		reports.POST("/generate", h.Generate)
		reports.GET("/status/:job_id", h.Status)
	}
}

// Generate produces one report for the requested month. The line-item
// heavy HSN report runs as a background job and answers 202 with a job
// ID; the other kinds are generated inline.
func (h *ReportHandler) Generate(c *gin.Context) {
	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	genReq := appfiling.GenerateRequest{
		Kind:  filing.ReportKind(req.ReportType),
		Month: req.Month,
		Year:  req.Year,
		Token: bearerToken(c),
	}

	if genReq.Kind == filing.ReportKindHSNDetails {
		jobID, err := h.coordinator.Start(c.Request.Context(), genReq)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Accepted(c, JobQueuedResponse{JobID: jobID, Status: "queued"})
		return
	}

	payload, err := h.svc.Generate(c.Request.Context(), genReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payload)
}

// Status reports the lifecycle state of a background report job, with
// the serialized payload attached once the job completes.
func (h *ReportHandler) Status(c *gin.Context) {
	job, err := h.coordinator.Status(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, job)
}

// bearerToken extracts the upstream platform token from the
// Authorization header. The token is opaque to this service.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	return ""
}
