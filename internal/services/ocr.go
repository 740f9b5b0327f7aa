package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redactify/redactify/internal/document"
	"github.com/redactify/redactify/internal/logging"
	"github.com/redactify/redactify/internal/models"
	"github.com/redactify/redactify/internal/ocr"
	"github.com/redactify/redactify/internal/queue"
	"github.com/redactify/redactify/internal/state"
)

// OCRConfig holds all configuration for the OCR service.
type OCRConfig struct {
	CallTimeout time.Duration
}

// OCRFunction rasterizes multi-page documents, runs text extraction on
// every unit and records the per-unit results for the detection stage.
type OCRFunction struct {
	store     state.Store
	publisher Publisher
	engine    ocr.Engine
	raster    *document.Rasterizer
	config    OCRConfig
}

// NewOCR creates a new OCRFunction instance.
func NewOCR(store state.Store, publisher Publisher, engine ocr.Engine, raster *document.Rasterizer, config OCRConfig) *OCRFunction {
	return &OCRFunction{store: store, publisher: publisher, engine: engine, raster: raster, config: config}
}

// Handle adapts Process to the queue consumer contract.
func (f *OCRFunction) Handle(ctx context.Context, body []byte) error {
	var msg models.OCRMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return terminal("ocr", fmt.Errorf("malformed message: %w", err))
	}
	return f.Process(ctx, msg)
}

// Process handles the OCR stage for one job: one result file per unit,
// then the UPLOADED to OCR_DONE transition carrying the unit count.
func (f *OCRFunction) Process(ctx context.Context, msg models.OCRMessage) error {
	log := logging.WithJob("ocr", msg.JobID)

	job, err := f.store.Get(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return terminal("ocr", fmt.Errorf("job %s has no record: %w", msg.JobID, err))
		}
		return transient("ocr", fmt.Errorf("failed to load job %s: %w", msg.JobID, err))
	}
	if job.Status != models.StatusUploaded {
		log.Info().Str("status", string(job.Status)).Msg("job already past OCR, dropping duplicate delivery")
		return nil
	}

	if err := os.MkdirAll(job.OutputFolder, 0o755); err != nil {
		return transient("ocr", fmt.Errorf("failed to create output folder: %w", err))
	}

	units, err := f.collectUnits(ctx, job, msg.FilePath)
	if err != nil {
		return f.discard(ctx, msg.JobID, "ocr", err)
	}
	log.Info().Int("unitCount", len(units)).Msg("starting text extraction")

	for i, unit := range units {
		result, err := f.extract(ctx, unit)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
				return transient("ocr", fmt.Errorf("extraction timed out on unit %d: %w", i, err))
			}
			return f.discard(ctx, msg.JobID, "ocr", fmt.Errorf("extraction failed on unit %d: %w", i, err))
		}
		resPath := filepath.Join(job.OutputFolder, fmt.Sprintf("%s_%d_res.json", job.JobID, i))
		if err := writeJSON(resPath, result); err != nil {
			return transient("ocr", err)
		}
		log.Info().Int("unit", i).Int("textBlocks", len(result.RecTexts)).Msg("unit extracted")
	}

	fields := state.Fields{"unitCount": len(units)}
	if err := f.store.Transition(ctx, msg.JobID, models.StatusUploaded, models.StatusOCRDone, fields); err != nil {
		if errors.Is(err, state.ErrWrongStatus) {
			log.Info().Msg("job already past OCR, dropping duplicate delivery")
			return nil
		}
		return transient("ocr", fmt.Errorf("failed to transition job %s: %w", msg.JobID, err))
	}

	next := models.DetectionMessage{
		JobID:            msg.JobID,
		OutputFolder:     job.OutputFolder,
		OriginalFilePath: msg.FilePath,
		UnitCount:        len(units),
	}
	if err := f.publisher.Publish(ctx, queue.QueueDetect, next); err != nil {
		return transient("ocr", fmt.Errorf("failed to enqueue detection for job %s: %w", msg.JobID, err))
	}
	log.Info().Int("unitCount", len(units)).Msg("OCR stage complete")
	return nil
}

// collectUnits resolves the job into the ordered list of page images to
// extract from. Multi-page jobs are rasterized into the output folder;
// single images are their own unit.
func (f *OCRFunction) collectUnits(ctx context.Context, job *models.Job, filePath string) ([]string, error) {
	if job.Kind != models.KindMultiPage {
		return []string{filePath}, nil
	}
	pages, err := f.raster.RenderPages(ctx, filePath, job.OutputFolder, job.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize %s: %w", filePath, err)
	}
	return pages, nil
}

func (f *OCRFunction) extract(ctx context.Context, imagePath string) (models.OCRResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.config.CallTimeout)
	defer cancel()
	return f.engine.Extract(callCtx, imagePath)
}

// discard marks the job DISCARDED and returns the terminal stage error.
// A failed discard is logged but never masks the original cause.
func (f *OCRFunction) discard(ctx context.Context, jobID, op string, cause error) error {
	if err := f.store.Discard(ctx, jobID, cause.Error()); err != nil {
		log := logging.WithJob(op, jobID)
		log.Warn().Err(err).Msg("failed to discard job")
	}
	return terminal(op, cause)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
