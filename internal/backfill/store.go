package backfill

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStore persists sweep jobs. The worker claims queued jobs in creation
// order, one at a time.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error
	UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error
	ResetStuckJobs(ctx context.Context) error
	MarkNextJobRunning(ctx context.Context) (*Job, error)
	GetActiveJob(ctx context.Context) (*Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*Job, error)
}

// MemoryJobStore keeps jobs in process memory. It is used when no database
// is configured.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	seq  map[string]int
	next int
	now  func() time.Time
}

// NewMemoryJobStore creates an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*Job),
		seq:  make(map[string]int),
		now:  time.Now,
	}
}

func (m *MemoryJobStore) CreateJob(_ context.Context, job *Job) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := job.Copy()
	if stored.JobID == "" {
		stored.JobID = uuid.NewString()
	}
	now := m.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.jobs[stored.JobID] = stored
	m.seq[stored.JobID] = m.next
	m.next++
	return stored.Copy(), nil
}

func (m *MemoryJobStore) UpdateStatus(_ context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	now := m.now().UTC()
	job.Status = status
	job.StatusMessage = message
	job.LastError = ""
	if lastErr != nil {
		job.LastError = lastErr.Error()
	}
	job.UpdatedAt = now
	if status.Terminal() {
		job.CompletedAt = &now
	}
	return nil
}

func (m *MemoryJobStore) UpdateProgress(_ context.Context, jobID string, current, total int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[jobID]; ok {
		job.ProgressCurrent = current
		job.ProgressTotal = total
		job.StatusMessage = message
		job.UpdatedAt = m.now().UTC()
	}
	return nil
}

func (m *MemoryJobStore) ResetStuckJobs(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status == JobStatusRunning {
			job.Status = JobStatusQueued
			job.StatusMessage = "Reset after service restart"
			job.UpdatedAt = m.now().UTC()
		}
	}
	return nil
}

func (m *MemoryJobStore) MarkNextJobRunning(_ context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next *Job
	for _, job := range m.jobs {
		if job.Status != JobStatusQueued {
			continue
		}
		if next == nil || m.seq[job.JobID] < m.seq[next.JobID] {
			next = job
		}
	}
	if next == nil {
		return nil, nil
	}

	now := m.now().UTC()
	next.Status = JobStatusRunning
	next.StatusMessage = "Starting job..."
	if next.StartedAt == nil {
		next.StartedAt = &now
	}
	next.UpdatedAt = now
	return next.Copy(), nil
}

func (m *MemoryJobStore) GetActiveJob(_ context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status == JobStatusRunning {
			return job.Copy(), nil
		}
	}
	return nil, nil
}

func (m *MemoryJobStore) ListRecentJobs(_ context.Context, limit int) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.Copy())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return m.seq[jobs[i].JobID] > m.seq[jobs[j].JobID]
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}
