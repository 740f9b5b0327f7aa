package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/redactify/redactify/internal/models"
	"github.com/redactify/redactify/internal/queue"
	"github.com/redactify/redactify/internal/state"
)

func newUploadFixture(t *testing.T) (*UploadFunction, *state.MemoryStore, *fakePublisher, UploadConfig) {
	t.Helper()
	store := state.NewMemoryStore()
	publisher := &fakePublisher{}
	config := UploadConfig{
		UploadsDir: filepath.Join(t.TempDir(), "uploads"),
		OutputRoot: filepath.Join(t.TempDir(), "output"),
	}
	return NewUpload(store, publisher, config), store, publisher, config
}

func TestUploadAcceptsImage(t *testing.T) {
	f, store, publisher, config := newUploadFixture(t)

	job, err := f.Process(context.Background(), "scan.PNG", bytes.NewReader([]byte("not-really-a-png")))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if job.Kind != models.KindSingleImage {
		t.Errorf("kind = %q, want %q", job.Kind, models.KindSingleImage)
	}
	if got := jobStatus(t, store, job.JobID); got != models.StatusUploaded {
		t.Errorf("status = %q, want %q", got, models.StatusUploaded)
	}
	if filepath.Ext(job.OriginalFilePath) != ".png" {
		t.Errorf("stored extension = %q, want lowercased .png", filepath.Ext(job.OriginalFilePath))
	}
	if _, err := os.Stat(job.OriginalFilePath); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
	if want := filepath.Join(config.OutputRoot, job.JobID); job.OutputFolder != want {
		t.Errorf("output folder = %q, want %q", job.OutputFolder, want)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(publisher.published))
	}
	if publisher.published[0].queue != queue.QueueOCR {
		t.Errorf("published to %q, want %q", publisher.published[0].queue, queue.QueueOCR)
	}
	msg, ok := publisher.published[0].body.(models.OCRMessage)
	if !ok {
		t.Fatalf("published %T, want models.OCRMessage", publisher.published[0].body)
	}
	if msg.JobID != job.JobID || msg.FilePath != job.OriginalFilePath {
		t.Errorf("message = %+v, job = %+v", msg, job)
	}
}

func TestUploadAcceptsPDF(t *testing.T) {
	f, _, publisher, _ := newUploadFixture(t)

	job, err := f.Process(context.Background(), "report.pdf", strings.NewReader("%PDF-1.7\nsome content"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if job.Kind != models.KindMultiPage {
		t.Errorf("kind = %q, want %q", job.Kind, models.KindMultiPage)
	}
	if len(publisher.published) != 1 {
		t.Errorf("published %d messages, want 1", len(publisher.published))
	}
}

func TestUploadRejections(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		body     string
		wantErr  error
	}{
		{name: "unsupported extension", filename: "notes.txt", body: "hello", wantErr: ErrUnsupportedType},
		{name: "pdf without magic", filename: "fake.pdf", body: "hello world", wantErr: ErrInvalidPDF},
		{name: "empty body", filename: "scan.png", body: "", wantErr: ErrEmptyFile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, _, publisher, config := newUploadFixture(t)

			_, err := f.Process(context.Background(), tc.filename, strings.NewReader(tc.body))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Process error = %v, want %v", err, tc.wantErr)
			}
			if len(publisher.published) != 0 {
				t.Errorf("published %d messages, want 0", len(publisher.published))
			}
			entries, _ := os.ReadDir(config.UploadsDir)
			if len(entries) != 0 {
				t.Errorf("uploads dir holds %d files, want 0", len(entries))
			}
		})
	}
}

func TestUploadSurfacesPublishFailure(t *testing.T) {
	store := state.NewMemoryStore()
	publisher := &fakePublisher{err: errors.New("broker down")}
	config := UploadConfig{UploadsDir: t.TempDir(), OutputRoot: t.TempDir()}
	f := NewUpload(store, publisher, config)

	_, err := f.Process(context.Background(), "scan.png", strings.NewReader("pixels"))
	if err == nil {
		t.Fatal("expected an error when publishing fails")
	}
}
