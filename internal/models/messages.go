package models

// These structs define the JSON payloads carried on the stage queues.
// A message is the sole mechanism by which a stage learns that the
// previous stage completed.

// OCRMessage triggers the OCR stage for a freshly uploaded file.
type OCRMessage struct {
	JobID    string `json:"job_id"`
	FilePath string `json:"file_path"`
}

// DetectionMessage triggers the PII detection stage once every OCR result
// artifact for the job has been written. UnitCount carries the number of
// result artifacts the OCR stage produced so the detection stage can tell
// a partially visible output folder from a complete one.
type DetectionMessage struct {
	JobID            string `json:"job_id"`
	OutputFolder     string `json:"output_folder"`
	OriginalFilePath string `json:"original_file_path"`
	UnitCount        int    `json:"unit_count"`
}

// RedactionMessage triggers the redaction stage. OriginalFilePath is the
// path resolved at upload time and passed through every stage verbatim;
// it is never re-derived by globbing, because redacted siblings share the
// job-id naming prefix.
type RedactionMessage struct {
	JobID             string   `json:"job_id"`
	OriginalFilePath  string   `json:"original_file_path"`
	OutputFolder      string   `json:"output_folder"`
	PIIDetectionsPath string   `json:"pii_detections_path"`
	AllPIIDetections  []string `json:"all_pii_detections"`
}
