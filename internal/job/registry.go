// Package job tracks conversion jobs in a process-wide registry. Records
// are not persisted; a restart forgets all jobs.
package job

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/narrio/narrio/pkg/types"
)

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")

	// ErrCancelled is the in-band cancellation signal. Progress callbacks
	// return it when the job has been cancelled; workers recognize it and
	// wind down without treating it as a failure.
	ErrCancelled = errors.New("job cancelled")
)

// Registry is a thread-safe map of job id to job state. Snapshots are
// copied out under the lock so no caller ever holds the lock across I/O.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*types.Job
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*types.Job)}
}

// Create registers a new processing job and returns its id.
func (r *Registry) Create(userID string, isPremium bool) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = &types.Job{
		ID:        id,
		Status:    types.JobProcessing,
		Progress:  0,
		Message:   "Starting...",
		UserID:    userID,
		IsPremium: isPremium,
	}
	return id
}

// Snapshot returns a copy of the job's current state.
func (r *Registry) Snapshot(id string) (types.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return types.Job{}, ErrNotFound
	}
	return *j, nil
}

// SetProgress updates progress and message for a processing job. Progress
// never regresses and terminal states are never touched.
func (r *Registry) SetProgress(id string, progress float64, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status.Terminal() {
		return
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	if message != "" {
		j.Message = message
	}
}

// MarkCompleted transitions a processing job to completed with its output.
func (r *Registry) MarkCompleted(id, outputFile, downloadName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status.Terminal() {
		return
	}
	j.Status = types.JobCompleted
	j.Progress = 100
	j.Message = "Complete"
	j.OutputFile = outputFile
	j.DownloadName = downloadName
}

// MarkCancelled transitions a processing job to cancelled.
func (r *Registry) MarkCancelled(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status.Terminal() {
		return
	}
	j.Status = types.JobCancelled
	j.Message = "Cancelled"
}

// MarkError transitions a processing job to error with a message. An error
// arriving after cancellation never clobbers the cancelled state.
func (r *Registry) MarkError(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status.Terminal() {
		return
	}
	j.Status = types.JobError
	j.Message = message
}

// Cancelled reports whether the job is in the cancelled state.
func (r *Registry) Cancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return ok && j.Status == types.JobCancelled
}

// Delete removes a job record.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// CheckCancelled returns ErrCancelled when the job has been cancelled. It
// is the cancel probe used by progress callbacks and workers.
func (r *Registry) CheckCancelled(id string) error {
	if r.Cancelled(id) {
		return ErrCancelled
	}
	return nil
}
