package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/timmy/hrsync/internal/api/handler"
	"github.com/timmy/hrsync/internal/api/middleware"
	"github.com/timmy/hrsync/internal/config"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/notify"
	"github.com/timmy/hrsync/internal/service"
)

// Services are the collaborators the operator API exposes.
type Services struct {
	DB        *gorm.DB
	Pipeline  handler.RunProcessor
	Approvals *service.ApprovalService
	Scheduler *service.Scheduler
	Inspector *service.SourceInspector
	// Notifier may be nil when no channel is enabled.
	Notifier *notify.Service
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc Services, cfg config.ServerConfig, log *logger.Logger) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(svc.DB)
	runHandler := handler.NewRunHandler(svc.Pipeline, svc.Approvals)
	scheduleHandler := handler.NewScheduleHandler(svc.Scheduler)
	sourceHandler := handler.NewSourceHandler(svc.Inspector, svc.Notifier)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		// Runs and the approval gate
		v1.GET("/runs", runHandler.History)
		v1.POST("/runs", runHandler.Start)
		v1.GET("/runs/pending", runHandler.ListPending)
		v1.GET("/runs/:id", runHandler.Get)
		v1.GET("/runs/:id/errors", runHandler.Errors)
		v1.POST("/runs/:id/approve", runHandler.Approve)
		v1.POST("/runs/:id/reject", runHandler.Reject)
		v1.POST("/runs/:id/resume", runHandler.Resume)

		// Archived downloads
		v1.GET("/files/:type/versions", runHandler.Versions)

		// Schedule
		v1.GET("/schedule", scheduleHandler.Get)
		v1.PUT("/schedule", scheduleHandler.Update)
		v1.POST("/sync", scheduleHandler.SyncNow)

		// Feed and channel checks
		v1.GET("/source/files", sourceHandler.Files)
		v1.POST("/source/test", sourceHandler.Test)
		v1.POST("/notify/test", sourceHandler.TestNotify)
	}

	return r
}
