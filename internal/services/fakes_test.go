package services

import (
	"context"
	"testing"
	"time"

	"github.com/redactify/redactify/internal/models"
	"github.com/redactify/redactify/internal/state"
)

type published struct {
	queue string
	body  any
}

type fakePublisher struct {
	published []published
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, queueName string, v any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, published{queue: queueName, body: v})
	return nil
}

type fakeEngine struct {
	result models.OCRResult
	err    error
	calls  int
}

func (e *fakeEngine) Extract(_ context.Context, _ string) (models.OCRResult, error) {
	e.calls++
	return e.result, e.err
}

type fakeClassifier struct {
	detections []models.RawDetection
	err        error
	calls      int
}

func (c *fakeClassifier) Classify(_ context.Context, _ []string) ([]models.RawDetection, error) {
	c.calls++
	return c.detections, c.err
}

func seedJob(t *testing.T, store state.Store, job *models.Job) {
	t.Helper()
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("seeding job: %v", err)
	}
}

func jobStatus(t *testing.T, store state.Store, jobID string) models.JobStatus {
	t.Helper()
	job, err := store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("loading job %s: %v", jobID, err)
	}
	return job.Status
}

func wantRetryable(t *testing.T, err error, want bool) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	stageErr, ok := err.(*StageError)
	if !ok {
		t.Fatalf("expected *StageError, got %T: %v", err, err)
	}
	if stageErr.Retryable() != want {
		t.Fatalf("Retryable() = %v, want %v (err: %v)", stageErr.Retryable(), want, err)
	}
}
