package repository

import (
	"context"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/noah-isme/timetable-grid-api/internal/models"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
)

// RenderJobRepository keeps render jobs in memory in creation order.
type RenderJobRepository struct {
	mu   sync.RWMutex
	jobs *orderedmap.OrderedMap[string, models.RenderJob]
}

// NewRenderJobRepository returns an empty store.
func NewRenderJobRepository() *RenderJobRepository {
	return &RenderJobRepository{jobs: orderedmap.NewOrderedMap[string, models.RenderJob]()}
}

// Create stores a new job. The ID must be unique.
func (r *RenderJobRepository) Create(_ context.Context, job *models.RenderJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs.Get(job.ID); exists {
		return appErrors.Clone(appErrors.ErrValidation, "render job already exists")
	}
	r.jobs.Set(job.ID, *job)
	return nil
}

// FindByID returns a copy of the stored job.
func (r *RenderJobRepository) FindByID(_ context.Context, id string) (*models.RenderJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "render job not found")
	}
	return &job, nil
}

// UpdateStatus moves a job to a new status and progress.
func (r *RenderJobRepository) UpdateStatus(_ context.Context, id string, status models.RenderStatus, progress int) error {
	return r.mutate(id, func(job *models.RenderJob) {
		job.Status = status
		job.Progress = progress
	})
}

// MarkFinished records the result of a successful job.
func (r *RenderJobRepository) MarkFinished(_ context.Context, id string, resultURL string, artifact models.RenderArtifact, finishedAt time.Time) error {
	return r.mutate(id, func(job *models.RenderJob) {
		job.Status = models.RenderStatusFinished
		job.Progress = 100
		job.ResultURL = &resultURL
		job.Artifact = &artifact
		job.FinishedAt = &finishedAt
		job.ErrorMessage = nil
	})
}

// MarkFailed records a failure message.
func (r *RenderJobRepository) MarkFailed(_ context.Context, id string, message string, finishedAt time.Time) error {
	return r.mutate(id, func(job *models.RenderJob) {
		job.Status = models.RenderStatusFailed
		job.FinishedAt = &finishedAt
		job.ErrorMessage = &message
	})
}

// List returns all jobs, oldest first.
func (r *RenderJobRepository) List(_ context.Context) ([]models.RenderJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.RenderJob, 0, r.jobs.Len())
	for el := r.jobs.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out, nil
}

// DeleteFinishedBefore drops terminal jobs that finished before cutoff.
func (r *RenderJobRepository) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []string
	for el := r.jobs.Front(); el != nil; el = el.Next() {
		job := el.Value
		if job.Done() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			stale = append(stale, el.Key)
		}
	}
	for _, id := range stale {
		r.jobs.Delete(id)
	}
	return len(stale), nil
}

func (r *RenderJobRepository) mutate(id string, fn func(*models.RenderJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs.Get(id)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "render job not found")
	}
	fn(&job)
	r.jobs.Set(id, job)
	return nil
}
