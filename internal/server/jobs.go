package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/course-jobs/internal/common"
	"github.com/joseph-ayodele/course-jobs/internal/entity"
)

// JobService is the part of the orchestrator the HTTP API needs.
type JobService interface {
	Submit(ctx context.Context, jobType string, payload json.RawMessage, principal string) (uuid.UUID, error)
	GetStatus(ctx context.Context, id uuid.UUID, principal string) (entity.JobStatusView, error)
}

// ReportService renders job reports.
type ReportService interface {
	ExportJobsXLSX(ctx context.Context, principal string, from, to *time.Time) ([]byte, error)
}

type JobHandler struct {
	jobs    JobService
	reports ReportService
	logger  *slog.Logger
}

func NewJobHandler(jobs JobService, reports ReportService, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{jobs: jobs, reports: reports, logger: logger}
}

type submitRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type statusRequest struct {
	JobID string `json:"job_id"`
}

// Submit handles POST /jobs.
func (h *JobHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object with type and payload"})
		return
	}
	principal := common.PrincipalFromContext(c.Request.Context())
	id, err := h.jobs.Submit(c.Request.Context(), strings.TrimSpace(req.Type), req.Payload, principal)
	if err != nil {
		h.fail(c, "http.jobs.submit.failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

// Status handles GET /jobs/:id.
func (h *JobHandler) Status(c *gin.Context) {
	h.status(c, c.Param("id"))
}

// StatusByBody handles POST /jobs/status.
func (h *JobHandler) StatusByBody(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object with job_id"})
		return
	}
	h.status(c, req.JobID)
}

func (h *JobHandler) status(c *gin.Context, raw string) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		// unparseable ids cannot name a job
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	view, err := h.jobs.GetStatus(c.Request.Context(), id, common.PrincipalFromContext(c.Request.Context()))
	if err != nil {
		h.fail(c, "http.jobs.status.failed", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Report handles GET /jobs/report?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *JobHandler) Report(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
		return
	}

	xlsx, err := h.reports.ExportJobsXLSX(c.Request.Context(), common.PrincipalFromContext(c.Request.Context()), from, to)
	if err != nil {
		h.fail(c, "http.jobs.report.failed", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="jobs.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", xlsx)
}

func (h *JobHandler) fail(c *gin.Context, event string, err error) {
	code := common.HTTPStatus(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(event, "error", err, "request_id", common.RequestIDFromContext(c.Request.Context()))
	}
	body := gin.H{"error": common.PublicMessage(err)}
	var appErr *common.AppError
	if errors.As(err, &appErr) && code != http.StatusInternalServerError {
		body["code"] = appErr.Code
	}
	c.JSON(code, body)
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
