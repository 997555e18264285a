package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/timetable-grid-api/internal/dto"
	"github.com/noah-isme/timetable-grid-api/internal/middleware"
	"github.com/noah-isme/timetable-grid-api/internal/models"
	"github.com/noah-isme/timetable-grid-api/internal/service"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
	"github.com/noah-isme/timetable-grid-api/pkg/response"
)

type timetableService interface {
	Extract(ctx context.Context, upload []byte) (*dto.ExtractResponse, error)
	Render(ctx context.Context, input service.RenderInput) (*dto.RenderResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.Download, error)
}

type renderJobService interface {
	CreateJob(ctx context.Context, input service.RenderInput, actor string) (*dto.RenderJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.RenderJobStatusResponse, error)
	ResultURL(ctx context.Context, id string) (string, error)
}

// TimetableHandler exposes extraction, rendering and download endpoints.
type TimetableHandler struct {
	service        timetableService
	jobs           renderJobService
	validate       *validator.Validate
	maxUploadBytes int64
}

// NewTimetableHandler constructs the handler. jobs may be nil when the render queue is disabled.
func NewTimetableHandler(svc timetableService, jobs renderJobService, validate *validator.Validate, maxUploadBytes int64) *TimetableHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &TimetableHandler{service: svc, jobs: jobs, validate: validate, maxUploadBytes: maxUploadBytes}
}

// Extract godoc
// @Summary Extract lessons from a timetable spreadsheet
// @Description Parses the uploaded xlsx and returns dated occurrences and the conflict report
// @Tags Timetables
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Timetable spreadsheet (.xlsx)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/extract [post]
func (h *TimetableHandler) Extract(c *gin.Context) {
	upload, err := h.readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Extract(c.Request.Context(), upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Render godoc
// @Summary Render a timetable
// @Description Renders the uploaded spreadsheet for a DD.MM-DD.MM window and returns a signed download link
// @Tags Timetables
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Timetable spreadsheet (.xlsx)"
// @Param range formData string true "Date window, e.g. 10.02-16.03"
// @Param format formData string true "svg, pdf, png, ics, csv or report"
// @Param no_color formData bool false "Monochrome output (administrators only)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/render [post]
func (h *TimetableHandler) Render(c *gin.Context) {
	input, err := h.renderInput(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Render(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, res.Cached)
	response.JSON(c, http.StatusOK, res, middleware.ExtractMeta(c))
}

// CreateJob godoc
// @Summary Queue a timetable render
// @Tags Timetables
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Timetable spreadsheet (.xlsx)"
// @Param range formData string true "Date window, e.g. 10.02-16.03"
// @Param format formData string true "svg, pdf, png, ics, csv or report"
// @Param no_color formData bool false "Monochrome output (administrators only)"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetables/jobs [post]
func (h *TimetableHandler) CreateJob(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrRendererUnavailable, "render queue is not configured"))
		return
	}
	input, err := h.renderInput(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.jobs.CreateJob(c.Request.Context(), input, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, res)
}

// JobStatus godoc
// @Summary Render job status
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *TimetableHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrRendererUnavailable, "render queue is not configured"))
		return
	}
	res, err := h.jobs.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// JobResult godoc
// @Summary Follow a finished render job to its document
// @Tags Timetables
// @Param id path string true "Job ID"
// @Success 303
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/jobs/{id}/result [get]
func (h *TimetableHandler) JobResult(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrRendererUnavailable, "render queue is not configured"))
		return
	}
	url, err := h.jobs.ResultURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, url)
}

// Download godoc
// @Summary Download a rendered document
// @Tags Timetables
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /export/{token} [get]
func (h *TimetableHandler) Download(c *gin.Context) {
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Cache-Control", "private, max-age=0")
	c.Data(http.StatusOK, download.ContentType, download.Data)
}

func (h *TimetableHandler) renderInput(c *gin.Context) (service.RenderInput, error) {
	var req dto.RenderRequest
	if err := c.ShouldBind(&req); err != nil {
		return service.RenderInput{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid render payload")
	}
	if err := h.validate.Struct(req); err != nil {
		return service.RenderInput{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "range and a supported format are required")
	}
	if req.NoColor && !isAdmin(c) {
		return service.RenderInput{}, appErrors.Clone(appErrors.ErrForbidden, "monochrome output is reserved for administrators")
	}
	upload, err := h.readUpload(c)
	if err != nil {
		return service.RenderInput{}, err
	}
	return service.RenderInput{
		Upload:  upload,
		Range:   req.Range,
		Format:  models.OutputFormat(req.Format),
		NoColor: req.NoColor,
	}, nil
}

// readUpload buffers the "file" field, reading at most one byte past the limit
// so the service can tell an oversized upload apart.
func (h *TimetableHandler) readUpload(c *gin.Context) ([]byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("spreadsheet exceeds %d bytes", h.maxUploadBytes))
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	defer src.Close()

	var reader io.Reader = src
	if h.maxUploadBytes > 0 {
		reader = io.LimitReader(src, h.maxUploadBytes+1)
	}
	buf, err := io.ReadAll(reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
	}
	return buf, nil
}
