package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redactify/redactify/internal/classify"
	"github.com/redactify/redactify/internal/correlate"
	"github.com/redactify/redactify/internal/document"
	"github.com/redactify/redactify/internal/logging"
	"github.com/redactify/redactify/internal/models"
	"github.com/redactify/redactify/internal/queue"
	"github.com/redactify/redactify/internal/state"
)

// detectionPrefix marks detection artifacts so the discovery glob can
// tell them apart from the OCR results they were derived from.
const detectionPrefix = "pii_detections_"

// DetectorConfig holds all configuration for the detection service.
type DetectorConfig struct {
	CallTimeout time.Duration
	Parallel    int
}

// DetectorFunction classifies every OCR result of a job for PII,
// correlates the findings back to bounding boxes and writes one
// detection artifact per unit. The stage is all-or-nothing: either
// every unit yields an artifact or the whole delivery fails.
type DetectorFunction struct {
	store      state.Store
	publisher  Publisher
	classifier classify.Classifier
	config     DetectorConfig
}

// NewDetector creates a new DetectorFunction instance.
func NewDetector(store state.Store, publisher Publisher, classifier classify.Classifier, config DetectorConfig) *DetectorFunction {
	return &DetectorFunction{store: store, publisher: publisher, classifier: classifier, config: config}
}

// Handle adapts Process to the queue consumer contract.
func (f *DetectorFunction) Handle(ctx context.Context, body []byte) error {
	var msg models.DetectionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return terminal("detect", fmt.Errorf("malformed message: %w", err))
	}
	return f.Process(ctx, msg)
}

// Process handles the detection stage for one job.
func (f *DetectorFunction) Process(ctx context.Context, msg models.DetectionMessage) error {
	log := logging.WithJob("detect", msg.JobID)

	job, err := f.store.Get(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return terminal("detect", fmt.Errorf("job %s has no record: %w", msg.JobID, err))
		}
		return transient("detect", fmt.Errorf("failed to load job %s: %w", msg.JobID, err))
	}
	if job.Status != models.StatusOCRDone {
		log.Info().Str("status", string(job.Status)).Msg("job not awaiting detection, dropping duplicate delivery")
		return nil
	}

	resFiles, err := discoverResults(msg.OutputFolder, msg.JobID)
	if err != nil {
		return transient("detect", err)
	}
	// Fewer results than the OCR stage announced means the shared
	// filesystem has not caught up yet; redeliver later.
	if msg.UnitCount > 0 && len(resFiles) != msg.UnitCount {
		return transient("detect", fmt.Errorf("found %d OCR results for job %s, message announced %d", len(resFiles), msg.JobID, msg.UnitCount))
	}
	if len(resFiles) == 0 {
		return f.discard(ctx, msg.JobID, terminal("detect", fmt.Errorf("job %s has no OCR results", msg.JobID)))
	}
	log.Info().Int("unitCount", len(resFiles)).Msg("starting PII detection")

	artifacts := make([]string, len(resFiles))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(f.config.Parallel, 1))
	for i, resFile := range resFiles {
		i, resFile := i, resFile
		eg.Go(func() error {
			artifactPath, err := f.detectUnit(gctx, msg.JobID, msg.OutputFolder, resFile)
			if err != nil {
				return err
			}
			artifacts[i] = artifactPath
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			if !stageErr.Transient {
				return f.discard(ctx, msg.JobID, stageErr)
			}
			return err
		}
		return transient("detect", err)
	}

	if err := f.store.Transition(ctx, msg.JobID, models.StatusOCRDone, models.StatusDetectionsComplete, nil); err != nil {
		if errors.Is(err, state.ErrWrongStatus) {
			log.Info().Msg("job already past detection, dropping duplicate delivery")
			return nil
		}
		return transient("detect", fmt.Errorf("failed to transition job %s: %w", msg.JobID, err))
	}

	next := models.RedactionMessage{
		JobID:             msg.JobID,
		OriginalFilePath:  msg.OriginalFilePath,
		OutputFolder:      msg.OutputFolder,
		PIIDetectionsPath: artifacts[0],
		AllPIIDetections:  artifacts,
	}
	if err := f.publisher.Publish(ctx, queue.QueueRedact, next); err != nil {
		return transient("detect", fmt.Errorf("failed to enqueue redaction for job %s: %w", msg.JobID, err))
	}
	log.Info().Int("artifacts", len(artifacts)).Msg("detection stage complete")
	return nil
}

// detectUnit classifies one OCR result file and writes its detection
// artifact. A unit with no text or no findings still gets an artifact,
// so the redaction stage sees a complete set.
func (f *DetectorFunction) detectUnit(ctx context.Context, jobID, outputFolder, resFile string) (string, error) {
	log := logging.WithJob("detect", jobID)

	data, err := os.ReadFile(resFile)
	if err != nil {
		return "", transient("detect", fmt.Errorf("failed to read OCR result %s: %w", resFile, err))
	}
	var result models.OCRResult
	if err := json.Unmarshal(data, &result); err != nil {
		return "", terminal("detect", fmt.Errorf("malformed OCR result %s: %w", resFile, err))
	}

	blocks := result.Blocks()
	records := []models.DetectionRecord{}
	if len(blocks) > 0 {
		texts := make([]string, len(blocks))
		for i, b := range blocks {
			texts[i] = b.Text
		}
		raw, err := f.classify(ctx, texts)
		if err != nil {
			return "", transient("detect", fmt.Errorf("classification failed for %s: %w", resFile, err))
		}
		for _, det := range raw {
			rec, ok := correlate.Locate(det, blocks)
			if !ok {
				log.Warn().Str("category", det.Category).Str("unit", filepath.Base(resFile)).Msg("detection could not be located, dropping")
				continue
			}
			records = append(records, rec)
		}
	}

	artifact := models.DetectionArtifact{
		JobID:              jobID,
		SourceFile:         filepath.Base(resFile),
		TotalTextBlocks:    len(blocks),
		TotalPIIDetections: len(records),
		CategoriesFound:    categoriesOf(records),
		Detections:         records,
	}
	artifactPath := filepath.Join(outputFolder, detectionPrefix+filepath.Base(resFile))
	if err := writeJSON(artifactPath, artifact); err != nil {
		return "", transient("detect", err)
	}
	log.Info().Str("unit", filepath.Base(resFile)).Int("detections", len(records)).Msg("unit classified")
	return artifactPath, nil
}

// discard marks the job DISCARDED before the terminal error is
// surfaced, mirroring the other stages. A failed discard is logged but
// never masks the original cause.
func (f *DetectorFunction) discard(ctx context.Context, jobID string, cause *StageError) error {
	if err := f.store.Discard(ctx, jobID, cause.Err.Error()); err != nil {
		log := logging.WithJob("detect", jobID)
		log.Warn().Err(err).Msg("failed to discard job")
	}
	return cause
}

func (f *DetectorFunction) classify(ctx context.Context, texts []string) ([]models.RawDetection, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.config.CallTimeout)
	defer cancel()
	return f.classifier.Classify(callCtx, texts)
}

// discoverResults lists the OCR result files of an output folder in
// unit-index order, skipping detection artifacts from earlier
// deliveries. Plain string sorting would place unit 10 before unit 2;
// the index parsed from the filename is the ordering contract.
func discoverResults(outputFolder, jobID string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(outputFolder, "*_res.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list OCR results in %s: %w", outputFolder, err)
	}
	resFiles := matches[:0]
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), detectionPrefix) {
			continue
		}
		resFiles = append(resFiles, m)
	}
	sort.Slice(resFiles, func(i, j int) bool {
		ui, iok := document.PageIndex(jobID, resFiles[i])
		uj, jok := document.PageIndex(jobID, resFiles[j])
		if iok && jok && ui != uj {
			return ui < uj
		}
		return resFiles[i] < resFiles[j]
	})
	return resFiles, nil
}

// categoriesOf returns the sorted unique categories of a plan, so two
// runs over the same input serialize byte-identically.
func categoriesOf(records []models.DetectionRecord) []string {
	seen := make(map[string]bool)
	categories := []string{}
	for _, r := range records {
		if !seen[r.Category] {
			seen[r.Category] = true
			categories = append(categories, r.Category)
		}
	}
	sort.Strings(categories)
	return categories
}
