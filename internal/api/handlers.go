package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

type searchResponse struct {
	Jobs []job.Record `json:"jobs"`
}

func (h *Handler) Search(c *gin.Context) {
	var req job.SearchParams
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := job.NewSearchParams(req.JobTitle, req.Location, req.Filters, req.Keywords, req.EnableAlerts)
	if err != nil {
		respondError(c, err)
		return
	}
	records, err := h.coord.PerformSearch(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []job.Record{}
	}
	c.JSON(http.StatusOK, searchResponse{Jobs: records})
}

func (h *Handler) LastSearch(c *gin.Context) {
	p, err := h.coord.LastSearch(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CurrentResults(c *gin.Context) {
	records, err := h.coord.CurrentResults(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, searchResponse{Jobs: records})
}

func (h *Handler) GetSettings(c *gin.Context) {
	s, err := h.coord.Settings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var s job.Settings
	if err := c.ShouldBindJSON(&s); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.coord.SettingsUpdated(c.Request.Context(), s); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type notificationRequest struct {
	Title   string `json:"title" binding:"required"`
	Message string `json:"message"`
}

func (h *Handler) RequestNotification(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.coord.RequestNotification(c.Request.Context(), req.Title, req.Message); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *Handler) Activate(c *gin.Context) {
	ok, err := h.coord.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"opened": ok})
}

func (h *Handler) ListAlerts(c *gin.Context) {
	alerts, err := h.coord.Alerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *Handler) SetAlertEnabled(c *gin.Context) {
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ok, err := h.coord.SetAlertEnabled(c.Request.Context(), c.Param("id"), *req.Enabled)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		notFound(c, "alert")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteAlert(c *gin.Context) {
	ok, err := h.coord.DeleteAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		notFound(c, "alert")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListSavedJobs(c *gin.Context) {
	saved, err := h.coord.SavedJobs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) SaveJob(c *gin.Context) {
	var r job.Record
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.coord.SaveJob(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, r)
}

func (h *Handler) UnsaveJob(c *gin.Context) {
	ok, err := h.coord.UnsaveJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		notFound(c, "saved job")
		return
	}
	c.Status(http.StatusNoContent)
}
