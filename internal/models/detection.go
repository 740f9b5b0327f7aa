package models

// PII categories emitted by the classification service.
const (
	CategoryPerson        = "PERSON"
	CategoryAge           = "AGE"
	CategoryEmail         = "EMAIL"
	CategoryPhone         = "PHONE"
	CategorySSN           = "SSN"
	CategoryAccountNumber = "ACCOUNT_NUMBER"
	CategoryAddress       = "ADDRESS"
	CategoryLocation      = "LOCATION"
	CategoryFinancial     = "FINANCIAL"
	CategoryOther         = "OTHER"
)

// Categories lists every valid category, in the order the classifier
// schema declares them.
var Categories = []string{
	CategoryPerson, CategoryAge, CategoryEmail, CategoryPhone, CategorySSN,
	CategoryAccountNumber, CategoryAddress, CategoryLocation,
	CategoryFinancial, CategoryOther,
}

// Bounding-box resolution methods recorded on a DetectionRecord.
const (
	MethodSingleBlock = "calculated_single_block"
	MethodMultiBlock  = "calculated_multi_block"
	MethodDirect      = "direct"
)

// RawDetection is the normalized shape of one classifier finding, before
// spatial correlation. Classifier adapters map their native response
// schema onto this struct; fields the adapter cannot supply are -1.
type RawDetection struct {
	Category   string
	Text       string
	Start      int // character offset into the block text, -1 if absent
	End        int // exclusive end offset, -1 if absent
	BlockIndex int // source text block index, -1 if absent
}

// HasOffsets reports whether the classifier supplied a usable local
// character range.
func (d RawDetection) HasOffsets() bool {
	return d.Start >= 0 && d.End > d.Start
}

// DetectionRecord is one successfully located PII span, ready for the
// redaction plan.
type DetectionRecord struct {
	BlockIndex    int    `json:"block_index"`
	OriginalText  string `json:"original_text"`
	Category      string `json:"category"`
	DetectedText  string `json:"detected_text"`
	BBox          BBox   `json:"bbox"`
	Method        string `json:"calculation_method"`
	SpansMultiple bool   `json:"spans_multiple_blocks,omitempty"`
	NumBlocks     int    `json:"num_blocks,omitempty"`
}

// DetectionArtifact is the per-unit JSON file the detection stage writes
// and the redaction stage consumes.
type DetectionArtifact struct {
	JobID              string            `json:"job_id"`
	SourceFile         string            `json:"source_file"`
	TotalTextBlocks    int               `json:"total_text_blocks"`
	TotalPIIDetections int               `json:"total_pii_detections"`
	CategoriesFound    []string          `json:"categories_found"`
	Detections         []DetectionRecord `json:"detections"`
}
