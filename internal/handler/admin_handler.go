package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-grid-api/internal/dto"
	"github.com/noah-isme/timetable-grid-api/internal/models"
	"github.com/noah-isme/timetable-grid-api/pkg/response"
)

type jobLister interface {
	List(ctx context.Context) ([]dto.RenderJobStatusResponse, error)
}

type cachePurger interface {
	PurgeCache(ctx context.Context) (int, error)
}

type metricsSnapshotter interface {
	Snapshot() models.SystemMetrics
}

// AdminHandler exposes operator endpoints.
type AdminHandler struct {
	jobs    jobLister
	cache   cachePurger
	metrics metricsSnapshotter
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(jobs jobLister, cache cachePurger, metrics metricsSnapshotter) *AdminHandler {
	return &AdminHandler{jobs: jobs, cache: cache, metrics: metrics}
}

// ListJobs godoc
// @Summary List render jobs
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/jobs [get]
func (h *AdminHandler) ListJobs(c *gin.Context) {
	items, err := h.jobs.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// ClearCache godoc
// @Summary Drop every cached render
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/cache [delete]
func (h *AdminHandler) ClearCache(c *gin.Context) {
	removed, err := h.cache.PurgeCache(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CacheClearResponse{Removed: removed}, nil)
}

// Metrics godoc
// @Summary Summary of pipeline counters
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *AdminHandler) Metrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
