package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redactify/redactify/internal/logging"
	"github.com/redactify/redactify/internal/models"
	"github.com/redactify/redactify/internal/queue"
	"github.com/redactify/redactify/internal/state"
)

var (
	// ErrUnsupportedType means the filename extension is not one the
	// pipeline accepts.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrInvalidPDF means a .pdf upload does not start with the PDF magic.
	ErrInvalidPDF = errors.New("file is not a valid PDF")

	// ErrEmptyFile means the upload carried no bytes.
	ErrEmptyFile = errors.New("uploaded file is empty")
)

var pdfMagic = []byte("%PDF")

// UploadConfig holds all configuration for the upload service.
type UploadConfig struct {
	UploadsDir string
	OutputRoot string
}

// UploadFunction accepts a document, persists it under a fresh job id,
// creates the job record and enqueues the OCR stage.
type UploadFunction struct {
	store     state.Store
	publisher Publisher
	config    UploadConfig
}

// NewUpload creates a new UploadFunction instance.
func NewUpload(store state.Store, publisher Publisher, config UploadConfig) *UploadFunction {
	return &UploadFunction{store: store, publisher: publisher, config: config}
}

// Process validates and stores the upload, registers the job and
// publishes the OCR message. Validation failures return one of the
// exported sentinel errors so the HTTP layer can map them to 400s.
func (f *UploadFunction) Process(ctx context.Context, filename string, r io.Reader) (*models.Job, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	kind, ok := kindForExtension(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	jobID := uuid.New().String()
	log := logging.WithJob("upload", jobID)

	if err := os.MkdirAll(f.config.UploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	destPath := filepath.Join(f.config.UploadsDir, jobID+ext)
	if err := f.saveUpload(destPath, kind, r); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &models.Job{
		JobID:            jobID,
		Kind:             kind,
		OriginalFilePath: destPath,
		OutputFolder:     filepath.Join(f.config.OutputRoot, jobID),
		Status:           models.StatusUploaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := f.store.Create(ctx, job); err != nil {
		_ = os.Remove(destPath)
		return nil, fmt.Errorf("failed to create job record: %w", err)
	}

	msg := models.OCRMessage{JobID: jobID, FilePath: destPath}
	if err := f.publisher.Publish(ctx, queue.QueueOCR, msg); err != nil {
		return nil, fmt.Errorf("failed to enqueue OCR for job %s: %w", jobID, err)
	}

	log.Info().Str("file", filepath.Base(filename)).Str("kind", string(kind)).Msg("upload accepted")
	return job, nil
}

// saveUpload streams the body to destPath, validating the PDF magic on
// the way through. The partial file is removed on any failure.
func (f *UploadFunction) saveUpload(destPath string, kind models.JobKind, r io.Reader) error {
	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	written, copyErr := io.Copy(dst, r)
	closeErr := dst.Close()

	fail := func(err error) error {
		_ = os.Remove(destPath)
		return err
	}
	if copyErr != nil {
		return fail(fmt.Errorf("failed to write %s: %w", destPath, copyErr))
	}
	if closeErr != nil {
		return fail(fmt.Errorf("failed to close %s: %w", destPath, closeErr))
	}
	if written == 0 {
		return fail(ErrEmptyFile)
	}

	if kind == models.KindMultiPage {
		header := make([]byte, len(pdfMagic))
		src, err := os.Open(destPath)
		if err != nil {
			return fail(fmt.Errorf("failed to reopen %s: %w", destPath, err))
		}
		_, readErr := io.ReadFull(src, header)
		_ = src.Close()
		if readErr != nil || !bytes.Equal(header, pdfMagic) {
			return fail(ErrInvalidPDF)
		}
	}
	return nil
}

func kindForExtension(ext string) (models.JobKind, bool) {
	switch ext {
	case ".pdf":
		return models.KindMultiPage, true
	case ".png", ".jpg", ".jpeg":
		return models.KindSingleImage, true
	default:
		return "", false
	}
}
