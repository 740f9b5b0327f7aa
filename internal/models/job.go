package models

import "time"

// JobStatus is the lifecycle stage of a redaction job. Transitions are
// strictly forward; DISCARDED absorbs unrecoverable failures from any stage.
type JobStatus string

const (
	StatusUploaded           JobStatus = "UPLOADED"
	StatusOCRDone            JobStatus = "OCR_DONE"
	StatusDetectionsComplete JobStatus = "DETECTIONS_COMPLETE"
	StatusRedacted           JobStatus = "REDACTED"
	StatusDiscarded          JobStatus = "DISCARDED"
)

// JobKind distinguishes single raster images from multi-page PDF documents.
type JobKind string

const (
	KindSingleImage JobKind = "single-image"
	KindMultiPage   JobKind = "multi-page"
)

// Job is the persisted state record for one document submitted for
// redaction, keyed by JobID.
type Job struct {
	JobID            string    `firestore:"jobId" json:"job_id"`
	Kind             JobKind   `firestore:"kind" json:"kind"`
	OriginalFilePath string    `firestore:"originalFilePath" json:"original_file_path"`
	OutputFolder     string    `firestore:"outputFolder" json:"output_folder"`
	Status           JobStatus `firestore:"status" json:"status"`
	UnitCount        int       `firestore:"unitCount,omitempty" json:"unit_count,omitempty"`
	OutputPath       string    `firestore:"outputPath,omitempty" json:"output_path,omitempty"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty" json:"error_details,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt" json:"created_at"`
	UpdatedAt        time.Time `firestore:"updatedAt" json:"updated_at"`
}
