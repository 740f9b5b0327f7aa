package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redactify/redactify/internal/models"
)

// MemoryStore is an in-process Store used by tests and single-node
// development runs. The mutex gives it the same per-job transition
// atomicity as the Firestore transaction.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]models.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]models.Job)}
}

func (s *MemoryStore) Create(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.JobID] = *job
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		job := job
		jobs = append(jobs, &job)
	}
	// Newest first, job id as the tie-break for a stable order.
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].JobID < jobs[j].JobID
	})
	return jobs, nil
}

func (s *MemoryStore) Transition(_ context.Context, jobID string, from, to models.JobStatus, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != from {
		return ErrWrongStatus
	}
	job.Status = to
	job.UpdatedAt = time.Now()
	for path, value := range fields {
		switch path {
		case "unitCount":
			if n, ok := value.(int); ok {
				job.UnitCount = n
			}
		case "outputPath":
			if p, ok := value.(string); ok {
				job.OutputPath = p
			}
		}
	}
	s.jobs[jobID] = job
	return nil
}

func (s *MemoryStore) Discard(_ context.Context, jobID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = models.StatusDiscarded
	job.ErrorDetails = reason
	job.UpdatedAt = time.Now()
	s.jobs[jobID] = job
	return nil
}
