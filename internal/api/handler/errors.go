package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timmy/hrsync/internal/api/middleware"
	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/service"
	"github.com/timmy/hrsync/internal/source"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the typed errors of the pipeline to HTTP statuses.
func statusFor(err error) int {
	var (
		invalid *domain.InvalidTransitionError
		busy    *domain.RunInProgressError
		unknown *service.UnknownFileTypeError
	)
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.As(err, &invalid), errors.As(err, &busy), errors.Is(err, domain.ErrSnapshotConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrActorRequired), errors.As(err, &unknown):
		return http.StatusUnprocessableEntity
	case source.IsConnectionError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	log := middleware.GetLogger(c).WithError(err).WithField("http_status", status)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Warn("Request rejected")
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, status int, msg string) {
	middleware.GetLogger(c).WithField("http_status", status).Warnf("Invalid request: %s", msg)
	c.JSON(status, ErrorResponse{Error: msg})
}

// queryLimit reads ?limit=, falling back to def and capping at max.
func queryLimit(c *gin.Context, def, max int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		badRequest(c, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(n, max), true
}

// fileTypeParam validates a file type from the path or query; empty is allowed when optional.
func fileTypeParam(c *gin.Context, raw string, optional bool) (domain.FileType, bool) {
	if raw == "" && optional {
		return "", true
	}
	ft, err := domain.ParseFileType(raw)
	if err != nil {
		badRequest(c, http.StatusUnprocessableEntity, err.Error())
		return "", false
	}
	return ft, true
}
