package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/hrsync/internal/api/middleware"
	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/service"
)

// ScheduleHandler reads and edits the sync schedule.
type ScheduleHandler struct {
	scheduler *service.Scheduler
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(scheduler *service.Scheduler) *ScheduleHandler {
	return &ScheduleHandler{scheduler: scheduler}
}

// UpdateScheduleRequest is the body of PUT /schedule.
type UpdateScheduleRequest struct {
	Frequency string `json:"frequency" binding:"required"`
	DayOfWeek string `json:"day_of_week"`
	RunTime   string `json:"run_time"`
	Actor     string `json:"actor"`
}

// SyncOutcomeResponse is one file type of a full sync.
type SyncOutcomeResponse struct {
	FileType domain.FileType   `json:"file_type"`
	Run      *domain.ImportRun `json:"run,omitempty"`
	Attempts int               `json:"attempts"`
	Error    string            `json:"error,omitempty"`
}

// Get handles GET /schedule.
func (h *ScheduleHandler) Get(c *gin.Context) {
	sched, err := h.scheduler.GetSchedule(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// Update handles PUT /schedule.
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, http.StatusBadRequest, err.Error())
		return
	}
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		actor = strings.TrimSpace(c.GetHeader(ActorHeader))
	}
	if actor == "" {
		respondError(c, domain.ErrActorRequired)
		return
	}

	sched, err := h.scheduler.UpdateSchedule(c.Request.Context(), domain.SyncSchedule{
		Frequency: domain.SyncFrequency(req.Frequency),
		DayOfWeek: req.DayOfWeek,
		RunTime:   req.RunTime,
	}, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	middleware.GetLogger(c).WithFields(logger.Fields{
		logger.FieldActor: actor,
		"frequency":       sched.Frequency,
		"next_run_at":     sched.NextRunAt,
	}).Info("Schedule updated")
	c.JSON(http.StatusOK, sched)
}

// SyncNow handles POST /sync: every file type, in order, right away.
func (h *ScheduleHandler) SyncNow(c *gin.Context) {
	outcomes := h.scheduler.SyncAll(context.WithoutCancel(c.Request.Context()), domain.TriggerAPI)
	resp := make([]SyncOutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		r := SyncOutcomeResponse{FileType: o.FileType, Run: o.Run, Attempts: o.Attempts}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		resp = append(resp, r)
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": resp, "summary": service.Summarize(outcomes)})
}
