package dto

import (
	"time"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

// ExtractResponse is returned by POST /timetables/extract.
type ExtractResponse struct {
	Label           string                 `json:"label"`
	Variant         models.DocumentVariant `json:"variant"`
	Occurrences     []models.Occurrence    `json:"occurrences"`
	Conflicts       []models.Conflict      `json:"conflicts"`
	Report          string                 `json:"report"`
	ReportTruncated string                 `json:"reportTruncated"`
	ParseMisses     int                    `json:"parseMisses"`
}

// RenderRequest captures the form fields of a render upload.
type RenderRequest struct {
	Range   string `form:"range" validate:"required"`
	Format  string `form:"format" validate:"required,oneof=svg pdf png ics csv report"`
	NoColor bool   `form:"no_color"`
}

// RenderResponse describes a rendered document ready for download.
type RenderResponse struct {
	ID              string                 `json:"id"`
	Format          models.OutputFormat    `json:"format"`
	Label           string                 `json:"label"`
	Variant         models.DocumentVariant `json:"variant"`
	DownloadURL     string                 `json:"downloadUrl"`
	ExpiresAt       time.Time              `json:"expiresAt"`
	Conflicts       int                    `json:"conflicts"`
	Report          string                 `json:"report"`
	ReportTruncated string                 `json:"reportTruncated"`
	Weeks           int                    `json:"weeks"`
	Overflows       int                    `json:"overflows"`
	Cached          bool                   `json:"cached"`
}

// RenderJobResponse is returned after enqueueing a render.
type RenderJobResponse struct {
	ID       string              `json:"id"`
	Status   models.RenderStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// RenderJobStatusResponse exposes job progress metadata.
type RenderJobStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.RenderStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Conflicts int                 `json:"conflicts,omitempty"`
	Report    string              `json:"report,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// CacheClearResponse reports how many cached renders were dropped.
type CacheClearResponse struct {
	Removed int `json:"removed"`
}
