package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/arstudio/api/internal/model"
)

// ErrNotFound is returned when no record exists for an id
var ErrNotFound = errors.New("record not found")

// JobRepository persists Job records. Writes replace the whole record.
type JobRepository interface {
	Get(ctx context.Context, id string) (model.Job, error)
	List(ctx context.Context) ([]model.Job, error)
	Put(ctx context.Context, job model.Job) error
}

// MemoryJobRepository keeps jobs for the lifetime of the process
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]model.Job)}
}

func (r *MemoryJobRepository) Get(_ context.Context, id string) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return cloneJob(job), nil
}

// List returns every job, newest first. Ties on CreatedAt fall back to id
// so the order is stable.
func (r *MemoryJobRepository) List(_ context.Context) ([]model.Job, error) {
	r.mu.RLock()
	jobs := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, cloneJob(job))
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (r *MemoryJobRepository) Put(_ context.Context, job model.Job) error {
	r.mu.Lock()
	r.jobs[job.ID] = cloneJob(job)
	r.mu.Unlock()
	return nil
}

// cloneJob detaches the slices so callers cannot mutate stored state.
// Empty but non-nil slices stay non-nil.
func cloneJob(job model.Job) model.Job {
	if job.AssetIDs != nil {
		job.AssetIDs = append(make([]string, 0, len(job.AssetIDs)), job.AssetIDs...)
	}
	if job.Results != nil {
		job.Results = append(make([]model.ResultArtifact, 0, len(job.Results)), job.Results...)
	}
	if job.Options != nil {
		job.Options = append(make([]byte, 0, len(job.Options)), job.Options...)
	}
	return job
}
