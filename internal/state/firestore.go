package state

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/redactify/redactify/internal/models"
)

// FirestoreStore keeps job records in a Firestore collection, one document
// per job id.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates the Firestore-backed store for the given
// project and collection.
func NewFirestoreStore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore store")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) Create(ctx context.Context, job *models.Job) error {
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	_, err := s.client.Collection(s.collection).Doc(job.JobID).Create(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to create job record %s: %w", job.JobID, err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	snap, err := s.client.Collection(s.collection).Doc(jobID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job record %s: %w", jobID, err)
	}
	var job models.Job
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job record %s: %w", jobID, err)
	}
	return &job, nil
}

// List iterates the whole collection ordered by creation time, newest
// first.
func (s *FirestoreStore) List(ctx context.Context) ([]*models.Job, error) {
	iter := s.client.Collection(s.collection).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var jobs []*models.Job
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list job records: %w", err)
		}
		var job models.Job
		if err := snap.DataTo(&job); err != nil {
			return nil, fmt.Errorf("failed to decode job record %s: %w", snap.Ref.ID, err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// Transition moves the job from one status to another inside a Firestore
// transaction. The read and the conditional write commit together, so two
// workers racing on a redelivered message cannot both advance the job.
func (s *FirestoreStore) Transition(ctx context.Context, jobID string, from, to models.JobStatus, fields Fields) error {
	docRef := s.client.Collection(s.collection).Doc(jobID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var job models.Job
		if err := snap.DataTo(&job); err != nil {
			return err
		}
		if job.Status != from {
			return ErrWrongStatus
		}
		updates := []firestore.Update{
			{Path: "status", Value: to},
			{Path: "updatedAt", Value: time.Now()},
		}
		for path, value := range fields {
			updates = append(updates, firestore.Update{Path: path, Value: value})
		}
		return tx.Update(docRef, updates)
	})
	if err == nil || err == ErrNotFound || err == ErrWrongStatus {
		return err
	}
	return fmt.Errorf("transition %s %s->%s: %w", jobID, from, to, err)
}

// Discard marks the job DISCARDED regardless of its current status and
// records the failure reason.
func (s *FirestoreStore) Discard(ctx context.Context, jobID, reason string) error {
	_, err := s.client.Collection(s.collection).Doc(jobID).Update(ctx, []firestore.Update{
		{Path: "status", Value: models.StatusDiscarded},
		{Path: "errorDetails", Value: reason},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("discard %s: %w", jobID, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
