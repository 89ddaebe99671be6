package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/hrsync/internal/notify"
	"github.com/timmy/hrsync/internal/service"
)

// SourceHandler exposes checks of the HR feed and of the notification channels.
type SourceHandler struct {
	inspector *service.SourceInspector
	notifier  *notify.Service
}

// NewSourceHandler creates a new SourceHandler. notifier may be nil.
func NewSourceHandler(inspector *service.SourceInspector, notifier *notify.Service) *SourceHandler {
	return &SourceHandler{inspector: inspector, notifier: notifier}
}

// NotifyTestResponse is the body of POST /api/v1/notify/test.
type NotifyTestResponse struct {
	Configured bool                    `json:"configured"`
	Channels   []notify.DeliveryResult `json:"channels"`
	Error      string                  `json:"error,omitempty"`
}

// Files handles GET /api/v1/source/files
// Lists the feed and shows which file each file type would ingest.
func (h *SourceHandler) Files(c *gin.Context) {
	listing, err := h.inspector.ListFiles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Test handles POST /api/v1/source/test
func (h *SourceHandler) Test(c *gin.Context) {
	check := h.inspector.TestConnection(c.Request.Context())
	status := http.StatusOK
	if !check.Reachable {
		status = http.StatusBadGateway
	}
	c.JSON(status, check)
}

// TestNotify handles POST /api/v1/notify/test
// Sends a test message on every enabled channel.
func (h *SourceHandler) TestNotify(c *gin.Context) {
	results := h.notifier.SendTest(c.Request.Context())
	if len(results) == 0 {
		c.JSON(http.StatusBadRequest, NotifyTestResponse{
			Channels: []notify.DeliveryResult{},
			Error:    "no notification channel is enabled; configure notify.email or notify.webhook",
		})
		return
	}

	resp := NotifyTestResponse{Configured: true, Channels: results}
	status := http.StatusOK
	for _, r := range results {
		if !r.Delivered {
			status = http.StatusBadGateway
			resp.Error = "one or more channels failed"
		}
	}
	c.JSON(status, resp)
}
