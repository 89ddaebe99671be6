package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/service"
)

// ActorHeader names the operator when the request body does not.
const ActorHeader = "X-Actor"

// RunProcessor drives runs through the pipeline.
type RunProcessor interface {
	StartRun(ctx context.Context, fileType domain.FileType, opts service.StartOptions) (*domain.ImportRun, error)
	ResumeRun(ctx context.Context, runID string) (*domain.ImportRun, error)
}

// RunHandler exposes the run ledger and the approval gate.
type RunHandler struct {
	processor RunProcessor
	approvals *service.ApprovalService
}

// NewRunHandler creates a new run handler.
// Parameters:
//   - processor: pipeline that starts and resumes runs.
//   - approvals: ledger queries and approval decisions.
// Returns:
//   - *RunHandler: initialized handler.
func NewRunHandler(processor RunProcessor, approvals *service.ApprovalService) *RunHandler {
	return &RunHandler{processor: processor, approvals: approvals}
}

// StartRunRequest is the body of POST /runs.
type StartRunRequest struct {
	FileType string `json:"file_type" binding:"required"`
	Force    bool   `json:"force"`
}

// DecisionRequest is the body of approve and reject.
type DecisionRequest struct {
	Actor  string `json:"actor"`
	Resume bool   `json:"resume"`
}

// RunResponse wraps a single run. Error is set when the run was recorded as failed.
type RunResponse struct {
	Run   *domain.ImportRun `json:"run"`
	Error string            `json:"error,omitempty"`
}

// RunListResponse wraps a list of runs.
type RunListResponse struct {
	Runs  []domain.ImportRun `json:"runs"`
	Count int                `json:"count"`
}

// ListPending handles GET /runs/pending.
func (h *RunHandler) ListPending(c *gin.Context) {
	runs, err := h.approvals.ListPendingRuns(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RunListResponse{Runs: runs, Count: len(runs)})
}

// History handles GET /runs?file_type=&limit=.
func (h *RunHandler) History(c *gin.Context) {
	ft, ok := fileTypeParam(c, c.Query("file_type"), true)
	if !ok {
		return
	}
	limit, ok := queryLimit(c, 50, 500)
	if !ok {
		return
	}
	runs, err := h.approvals.GetRunHistory(c.Request.Context(), ft, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RunListResponse{Runs: runs, Count: len(runs)})
}

// Get handles GET /runs/:id.
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.approvals.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RunResponse{Run: run})
}

// Errors handles GET /runs/:id/errors.
func (h *RunHandler) Errors(c *gin.Context) {
	limit, ok := queryLimit(c, 500, 5000)
	if !ok {
		return
	}
	issues, err := h.approvals.ListRunErrors(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": issues, "count": len(issues)})
}

// Start handles POST /runs. The run executes within the request; it keeps going if the
// client disconnects.
func (h *RunHandler) Start(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, http.StatusBadRequest, err.Error())
		return
	}
	ft, ok := fileTypeParam(c, req.FileType, false)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	run, err := h.processor.StartRun(ctx, ft, service.StartOptions{Trigger: domain.TriggerAPI, Force: req.Force})
	h.respondRun(c, run, err)
}

// Approve handles POST /runs/:id/approve. With "resume": true the approved run is processed
// in the same request.
func (h *RunHandler) Approve(c *gin.Context) {
	req, ok := bindDecision(c)
	if !ok {
		return
	}
	run, err := h.approvals.Approve(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	if !req.Resume {
		c.JSON(http.StatusOK, RunResponse{Run: run})
		return
	}
	run, err = h.processor.ResumeRun(context.WithoutCancel(c.Request.Context()), run.ID)
	h.respondRun(c, run, err)
}

// Reject handles POST /runs/:id/reject.
func (h *RunHandler) Reject(c *gin.Context) {
	req, ok := bindDecision(c)
	if !ok {
		return
	}
	run, err := h.approvals.Reject(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RunResponse{Run: run})
}

// Resume handles POST /runs/:id/resume.
func (h *RunHandler) Resume(c *gin.Context) {
	run, err := h.processor.ResumeRun(context.WithoutCancel(c.Request.Context()), c.Param("id"))
	h.respondRun(c, run, err)
}

// Versions handles GET /files/:type/versions.
func (h *RunHandler) Versions(c *gin.Context) {
	ft, ok := fileTypeParam(c, c.Param("type"), false)
	if !ok {
		return
	}
	limit, ok := queryLimit(c, 50, 500)
	if !ok {
		return
	}
	versions, err := h.approvals.ListFileVersions(c.Request.Context(), ft, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions, "count": len(versions)})
}

// respondRun reports a recorded failure as a normal response carrying the failed run.
func (h *RunHandler) respondRun(c *gin.Context, run *domain.ImportRun, err error) {
	if err != nil && !(service.IsRunFailed(err) && run != nil) {
		respondError(c, err)
		return
	}
	resp := RunResponse{Run: run}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func bindDecision(c *gin.Context) (DecisionRequest, bool) {
	var req DecisionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, http.StatusBadRequest, err.Error())
			return req, false
		}
	}
	if strings.TrimSpace(req.Actor) == "" {
		req.Actor = c.GetHeader(ActorHeader)
	}
	return req, true
}
