package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redactify/redactify/internal/document"
	"github.com/redactify/redactify/internal/logging"
	"github.com/redactify/redactify/internal/models"
	"github.com/redactify/redactify/internal/redact"
	"github.com/redactify/redactify/internal/state"
)

// RedactorFunction applies the detection artifacts of a job to its
// original document and records the output path on the job record.
type RedactorFunction struct {
	store         state.Store
	reconstructor *document.Reconstructor
}

// NewRedactor creates a new RedactorFunction instance.
func NewRedactor(store state.Store, reconstructor *document.Reconstructor) *RedactorFunction {
	return &RedactorFunction{store: store, reconstructor: reconstructor}
}

// Handle adapts Process to the queue consumer contract.
func (f *RedactorFunction) Handle(ctx context.Context, body []byte) error {
	var msg models.RedactionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return terminal("redact", fmt.Errorf("malformed message: %w", err))
	}
	return f.Process(ctx, msg)
}

// Process handles the redaction stage for one job and finishes the
// pipeline with the DETECTIONS_COMPLETE to REDACTED transition.
func (f *RedactorFunction) Process(ctx context.Context, msg models.RedactionMessage) error {
	log := logging.WithJob("redact", msg.JobID)

	job, err := f.store.Get(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return terminal("redact", fmt.Errorf("job %s has no record: %w", msg.JobID, err))
		}
		return transient("redact", fmt.Errorf("failed to load job %s: %w", msg.JobID, err))
	}
	if job.Status != models.StatusDetectionsComplete {
		log.Info().Str("status", string(job.Status)).Msg("job not awaiting redaction, dropping duplicate delivery")
		return nil
	}

	var outputPath string
	if job.Kind == models.KindMultiPage {
		outputPath, err = f.reconstructor.Redact(ctx, msg.JobID, msg.OriginalFilePath, msg.OutputFolder, msg.AllPIIDetections)
		if err != nil {
			if errors.Is(err, document.ErrNoPagesRedacted) {
				return f.discard(ctx, msg.JobID, fmt.Errorf("redaction produced no pages: %w", err))
			}
			return transient("redact", fmt.Errorf("failed to redact document: %w", err))
		}
	} else {
		outputPath, err = f.redactImage(ctx, msg)
		if err != nil {
			return err
		}
	}

	fields := state.Fields{"outputPath": outputPath}
	if err := f.store.Transition(ctx, msg.JobID, models.StatusDetectionsComplete, models.StatusRedacted, fields); err != nil {
		if errors.Is(err, state.ErrWrongStatus) {
			log.Info().Msg("job already redacted, dropping duplicate delivery")
			return nil
		}
		return transient("redact", fmt.Errorf("failed to transition job %s: %w", msg.JobID, err))
	}
	log.Info().Str("output", outputPath).Msg("redaction stage complete")
	return nil
}

// redactImage handles the single-image path: one detection artifact,
// one redacted sibling of the original upload.
func (f *RedactorFunction) redactImage(ctx context.Context, msg models.RedactionMessage) (string, error) {
	boxes, err := document.LoadPlan(msg.PIIDetectionsPath)
	if err != nil {
		return "", transient("redact", fmt.Errorf("failed to load redaction plan: %w", err))
	}
	outPath, err := redact.File(msg.OriginalFilePath, boxes)
	if err != nil {
		return "", f.discard(ctx, msg.JobID, fmt.Errorf("failed to redact image %s: %w", msg.OriginalFilePath, err))
	}
	return outPath, nil
}

func (f *RedactorFunction) discard(ctx context.Context, jobID string, cause error) error {
	if err := f.store.Discard(ctx, jobID, cause.Error()); err != nil {
		log := logging.WithJob("redact", jobID)
		log.Warn().Err(err).Msg("failed to discard job")
	}
	return terminal("redact", cause)
}
