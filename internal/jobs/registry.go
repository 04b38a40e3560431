package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a job ID is unknown to the registry.
var ErrNotFound = errors.New("job not found")

// Registry tracks in-flight and recently finished jobs in memory.
// All reads return snapshots; callers never see live registry state.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewRegistry returns an empty registry using the wall clock.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create registers a new job in the processing state and returns its ID.
func (r *Registry) Create(filename string) string {
	id := uuid.New().String()
	now := r.clock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = &Job{
		ID:        id,
		Filename:  filename,
		Status:    StatusProcessing,
		Progress:  0,
		Message:   "starting",
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// UpdateProgress records forward progress for a running job. Updates that
// would move progress backwards, or that arrive after the job reached a
// terminal state, are ignored.
func (r *Registry) UpdateProgress(id string, progress float64, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return
	}
	if progress < job.Progress {
		return
	}
	job.Progress = progress
	if message != "" {
		job.Message = message
	}
	job.UpdatedAt = r.clock()
}

// Complete moves a job to the completed state with its final metrics.
// Jobs already in a terminal state are left untouched.
func (r *Registry) Complete(id string, result *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return
	}
	now := r.clock()
	job.Status = StatusCompleted
	job.Progress = 100
	job.Message = "completed"
	job.Result = result
	job.UpdatedAt = now
	job.CompletedAt = now
}

// Fail moves a job to the error state. Jobs already in a terminal state
// are left untouched.
func (r *Registry) Fail(id string, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return
	}
	now := r.clock()
	job.Status = StatusError
	job.Message = "failed"
	job.Error = errMsg
	job.UpdatedAt = now
	job.CompletedAt = now
}

// Get returns a snapshot of the job with the given ID.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return snapshot(job), nil
}

// Delete removes a job from the registry. Removing an unknown job is not
// an error.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// List returns snapshots of every tracked job, newest first.
func (r *Registry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, snapshot(job))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Expired returns the IDs of jobs created before the cutoff.
func (r *Registry) Expired(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, job := range r.jobs {
		if job.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Registry) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func snapshot(job *Job) Job {
	copied := *job
	if job.Result != nil {
		result := *job.Result
		copied.Result = &result
	}
	return copied
}
