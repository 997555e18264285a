package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-grid-api/internal/dto"
	"github.com/noah-isme/timetable-grid-api/internal/models"
	"github.com/noah-isme/timetable-grid-api/internal/timetable"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
	"github.com/noah-isme/timetable-grid-api/pkg/jobs"
	"github.com/noah-isme/timetable-grid-api/pkg/middleware/requestid"
)

// RenderPayload travels through the job queue. It carries the upload so the
// worker never touches the request after it returns.
type RenderPayload struct {
	Input RenderInput
}

type renderJobStore interface {
	Create(ctx context.Context, job *models.RenderJob) error
	FindByID(ctx context.Context, id string) (*models.RenderJob, error)
	UpdateStatus(ctx context.Context, id string, status models.RenderStatus, progress int) error
	MarkFinished(ctx context.Context, id string, resultURL string, artifact models.RenderArtifact, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id string, message string, finishedAt time.Time) error
	List(ctx context.Context) ([]models.RenderJob, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type renderDispatcher interface {
	Enqueue(job jobs.Job[RenderPayload]) error
}

type artifactRenderer interface {
	RenderArtifact(ctx context.Context, input RenderInput) (*models.RenderArtifact, bool, error)
	DownloadURL(artifact *models.RenderArtifact) (string, time.Time, error)
}

// RenderJobService manages asynchronous renders.
type RenderJobService struct {
	repo    renderJobStore
	queue   renderDispatcher
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewRenderJobService constructs the service. The queue is attached with SetQueue
// because the worker and the service share the repository.
func NewRenderJobService(repo renderJobStore, metrics *MetricsService, logger *zap.Logger) *RenderJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderJobService{repo: repo, metrics: metrics, logger: logger, now: time.Now}
}

// SetQueue attaches the dispatcher used by CreateJob.
func (s *RenderJobService) SetQueue(queue renderDispatcher) {
	s.queue = queue
}

// CreateJob validates the request, records a QUEUED job and hands it to the queue.
func (s *RenderJobService) CreateJob(ctx context.Context, input RenderInput, actor string) (*dto.RenderJobResponse, error) {
	if !input.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported output format %q", input.Format))
	}
	if _, _, err := timetable.ParseDateRange(input.Range, s.now()); err != nil {
		return nil, err
	}
	if len(input.Upload) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet file is required")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrRendererUnavailable, "render queue is not running")
	}

	job := &models.RenderJob{
		ID:        uuid.NewString(),
		Params:    models.RenderParams{Range: input.Range, Format: input.Format, NoColor: input.NoColor},
		Status:    models.RenderStatusQueued,
		CreatedBy: actor,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create render job")
	}
	if err := s.queue.Enqueue(jobs.Job[RenderPayload]{ID: job.ID, Payload: RenderPayload{Input: input}}); err != nil {
		_ = s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job", s.now().UTC())
		s.metrics.RecordJob(models.RenderStatusFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue render job")
	}
	s.metrics.RecordJob(models.RenderStatusQueued)
	return &dto.RenderJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job progress.
func (s *RenderJobService) GetStatus(ctx context.Context, id string) (*dto.RenderJobStatusResponse, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return statusResponse(job), nil
}

// ResultURL returns the download link of a finished job.
func (s *RenderJobService) ResultURL(ctx context.Context, id string) (string, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	switch {
	case job.Status == models.RenderStatusFailed && job.ErrorMessage != nil:
		return "", appErrors.Clone(appErrors.ErrJobNotReady, "render job failed: "+*job.ErrorMessage)
	case job.Status != models.RenderStatusFinished || job.ResultURL == nil:
		return "", appErrors.Clone(appErrors.ErrJobNotReady, fmt.Sprintf("render job is %s", job.Status))
	}
	return *job.ResultURL, nil
}

// List returns every known job, oldest first.
func (s *RenderJobService) List(ctx context.Context) ([]dto.RenderJobStatusResponse, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RenderJobStatusResponse, 0, len(all))
	for i := range all {
		out = append(out, *statusResponse(&all[i]))
	}
	return out, nil
}

// Cleanup forgets terminal jobs older than ttl.
func (s *RenderJobService) Cleanup(ctx context.Context, ttl time.Duration) (int, error) {
	removed, err := s.repo.DeleteFinishedBefore(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("expired render jobs removed", zap.Int("count", removed))
	}
	return removed, nil
}

// HandleFailure is the queue hook for jobs that ran out of retries.
func (s *RenderJobService) HandleFailure(job jobs.Job[RenderPayload], err error) {
	if markErr := s.repo.MarkFailed(context.Background(), job.ID, err.Error(), s.now().UTC()); markErr != nil {
		s.logger.Warn("failed to mark render job failed", zap.String("job_id", job.ID), zap.Error(markErr))
	}
	s.metrics.RecordJob(models.RenderStatusFailed)
}

func statusResponse(job *models.RenderJob) *dto.RenderJobStatusResponse {
	resp := &dto.RenderJobStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
	}
	if job.Artifact != nil {
		resp.Conflicts = job.Artifact.Conflicts
		resp.Report = timetable.TruncateReport(job.Artifact.Report, chatMessageLimit)
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp
}

// RenderWorker bridges queue jobs to the timetable service.
type RenderWorker struct {
	repo     renderJobStore
	renderer artifactRenderer
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewRenderWorker constructs a worker.
func NewRenderWorker(repo renderJobStore, renderer artifactRenderer, metrics *MetricsService, logger *zap.Logger) *RenderWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderWorker{repo: repo, renderer: renderer, metrics: metrics, logger: logger}
}

// Handle processes a queue job.
func (w *RenderWorker) Handle(ctx context.Context, job jobs.Job[RenderPayload]) error {
	if err := w.repo.UpdateStatus(ctx, job.ID, models.RenderStatusProcessing, 10); err != nil {
		return err
	}
	w.metrics.RecordJob(models.RenderStatusProcessing)

	// Worker logs correlate by job ID.
	artifact, _, err := w.renderer.RenderArtifact(requestid.WithID(ctx, job.ID), job.Payload.Input)
	if err != nil {
		// Client errors come from the upload itself and fail the same way on every attempt.
		if appErr := appErrors.FromError(err); appErr.Status > 0 && appErr.Status < http.StatusInternalServerError {
			return jobs.Permanent(err)
		}
		if updateErr := w.repo.UpdateStatus(ctx, job.ID, models.RenderStatusQueued, 0); updateErr != nil {
			w.logger.Warn("failed to mark render job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return err
	}
	if err := w.repo.UpdateStatus(ctx, job.ID, models.RenderStatusProcessing, 80); err != nil {
		return err
	}

	url, _, err := w.renderer.DownloadURL(artifact)
	if err != nil {
		return err
	}
	if err := w.repo.MarkFinished(ctx, job.ID, url, *artifact, time.Now().UTC()); err != nil {
		w.logger.Warn("failed to mark render job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordJob(models.RenderStatusFinished)
	w.logger.Info("render job finished", zap.String("job_id", job.ID), zap.String("format", string(artifact.Format)))
	return nil
}
