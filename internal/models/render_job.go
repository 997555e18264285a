package models

import "time"

// OutputFormat enumerates the documents a timetable can be rendered to.
type OutputFormat string

const (
	FormatSVG    OutputFormat = "svg"
	FormatPDF    OutputFormat = "pdf"
	FormatPNG    OutputFormat = "png"
	FormatICS    OutputFormat = "ics"
	FormatCSV    OutputFormat = "csv"
	FormatReport OutputFormat = "report"
)

// Valid reports whether the format is supported.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatSVG, FormatPDF, FormatPNG, FormatICS, FormatCSV, FormatReport:
		return true
	default:
		return false
	}
}

// Extension is the file suffix of the rendered document.
func (f OutputFormat) Extension() string {
	if f == FormatReport {
		return "conflicts.pdf"
	}
	return string(f)
}

// ContentType is the MIME type served for the rendered document.
func (f OutputFormat) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPDF, FormatReport:
		return "application/pdf"
	case FormatPNG:
		return "image/png"
	case FormatICS:
		return "text/calendar; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// RenderStatus captures background job lifecycle states.
type RenderStatus string

const (
	RenderStatusQueued     RenderStatus = "QUEUED"
	RenderStatusProcessing RenderStatus = "PROCESSING"
	RenderStatusFinished   RenderStatus = "FINISHED"
	RenderStatusFailed     RenderStatus = "FAILED"
)

// RenderParams are the options of one render request.
type RenderParams struct {
	Range   string       `json:"range"`
	Format  OutputFormat `json:"format"`
	NoColor bool         `json:"noColor"`
}

// RenderArtifact describes a stored rendered document. It is what the render
// cache keeps per upload, range, format and colour mode.
type RenderArtifact struct {
	ID          string          `json:"id"`
	Path        string          `json:"path"`
	Format      OutputFormat    `json:"format"`
	Label       string          `json:"label"`
	Variant     DocumentVariant `json:"variant"`
	Report      string          `json:"report"`
	Conflicts   int             `json:"conflicts"`
	Occurrences int             `json:"occurrences"`
	ParseMisses int             `json:"parseMisses"`
	Weeks       int             `json:"weeks"`
	Overflows   int             `json:"overflows"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// RenderJob is the in-memory record of an asynchronous render.
type RenderJob struct {
	ID           string          `json:"id"`
	Params       RenderParams    `json:"params"`
	Status       RenderStatus    `json:"status"`
	Progress     int             `json:"progress"`
	ResultURL    *string         `json:"result_url,omitempty"`
	Artifact     *RenderArtifact `json:"artifact,omitempty"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j *RenderJob) Done() bool {
	return j.Status == RenderStatusFinished || j.Status == RenderStatusFailed
}
