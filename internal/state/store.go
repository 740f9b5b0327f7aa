// Package state persists the per-job state record and enforces atomic
// stage transitions, replacing status-inference from artifact files.
package state

import (
	"context"
	"errors"

	"github.com/redactify/redactify/internal/models"
)

var (
	// ErrNotFound means no record exists for the job id.
	ErrNotFound = errors.New("state: job not found")

	// ErrWrongStatus means the job is not in the expected source status.
	// A worker seeing this on a redelivered message drops the duplicate.
	ErrWrongStatus = errors.New("state: job not in expected status")
)

// Fields carries extra record updates applied together with a transition.
type Fields map[string]any

// Store is the job state record store. Transition is atomic: the status
// check and the update happen as one operation, which doubles as the
// per-job serialization point for concurrent workers.
type Store interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, jobID string) (*models.Job, error)
	// List returns every job record, newest first.
	List(ctx context.Context) ([]*models.Job, error)
	Transition(ctx context.Context, jobID string, from, to models.JobStatus, fields Fields) error
	Discard(ctx context.Context, jobID, reason string) error
}
