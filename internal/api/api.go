// Package api exposes the coordinator to the presentation panel over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

// Coordinator is everything the panel can ask for.
type Coordinator interface {
	PerformSearch(ctx context.Context, p job.SearchParams) ([]job.Record, error)
	LastSearch(ctx context.Context) (*job.SearchParams, error)
	CurrentResults(ctx context.Context) ([]job.Record, error)
	Settings(ctx context.Context) (job.Settings, error)
	SettingsUpdated(ctx context.Context, settings job.Settings) error
	RequestNotification(ctx context.Context, title, message string) error
	Activate(ctx context.Context, notificationID string) (bool, error)
	Alerts(ctx context.Context) ([]job.Alert, error)
	SetAlertEnabled(ctx context.Context, id string, enabled bool) (bool, error)
	DeleteAlert(ctx context.Context, id string) (bool, error)
	SavedJobs(ctx context.Context) ([]job.Record, error)
	SaveJob(ctx context.Context, r job.Record) (bool, error)
	UnsaveJob(ctx context.Context, id string) (bool, error)
}

type Handler struct {
	coord Coordinator
}

func NewHandler(coord Coordinator) *Handler {
	return &Handler{coord: coord}
}

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// NewRouter builds the engine with every panel route registered.
func NewRouter(h *Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := engine.Group("/api")
	addRoutes(apiGroup, []route{
		{Method: http.MethodPost, Path: "/search", Handler: h.Search},
		{Method: http.MethodGet, Path: "/search/last", Handler: h.LastSearch},
		{Method: http.MethodGet, Path: "/search/results", Handler: h.CurrentResults},
		{Method: http.MethodGet, Path: "/settings", Handler: h.GetSettings},
		{Method: http.MethodPut, Path: "/settings", Handler: h.UpdateSettings},
		{Method: http.MethodPost, Path: "/notifications", Handler: h.RequestNotification},
		{Method: http.MethodPost, Path: "/notifications/:id/activate", Handler: h.Activate},
		{Method: http.MethodGet, Path: "/alerts", Handler: h.ListAlerts},
		{Method: http.MethodPut, Path: "/alerts/:id/enabled", Handler: h.SetAlertEnabled},
		{Method: http.MethodDelete, Path: "/alerts/:id", Handler: h.DeleteAlert},
		{Method: http.MethodGet, Path: "/saved-jobs", Handler: h.ListSavedJobs},
		{Method: http.MethodPost, Path: "/saved-jobs", Handler: h.SaveJob},
		{Method: http.MethodDelete, Path: "/saved-jobs/:id", Handler: h.UnsaveJob},
	})
	return engine
}

func addRoutes(group *gin.RouterGroup, routes []route) {
	for _, r := range routes {
		group.Handle(r.Method, r.Path, r.Handler)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Info("request")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, job.ErrInvalidParams),
		errors.Is(err, job.ErrInvalidSettings),
		errors.Is(err, job.ErrInvalidRecord):
		status = http.StatusBadRequest
	default:
		logrus.Errorf("request failed: %+v", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: errors.Cause(err).Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func notFound(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: what + " not found"})
}
