// Package classify calls the external PII classification service and
// normalizes its findings. Every integration returns a slightly
// different shape (text only, text plus offsets, text plus block index),
// so each adapter maps its native response onto models.RawDetection
// before the correlator sees it.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redactify/redactify/internal/models"
)

// Classifier flags sensitive spans in the given OCR text blocks.
type Classifier interface {
	Classify(ctx context.Context, blocks []string) ([]models.RawDetection, error)
}

// response is the structured output every adapter requests from its
// model.
type response struct {
	Detections []finding `json:"detections"`
}

type finding struct {
	Category   string `json:"category"`
	Text       string `json:"text"`
	Start      *int   `json:"start,omitempty"`
	End        *int   `json:"end,omitempty"`
	BlockIndex *int   `json:"block_index,omitempty"`
}

// parseDetections decodes a model's JSON reply into normalized raw
// detections. Code fences around the payload are tolerated; findings
// with empty text are dropped.
func parseDetections(raw string) ([]models.RawDetection, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil, nil
	}

	var resp response
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("classifier returned malformed JSON: %w", err)
	}

	detections := make([]models.RawDetection, 0, len(resp.Detections))
	for _, f := range resp.Detections {
		if f.Text == "" {
			continue
		}
		det := models.RawDetection{
			Category:   f.Category,
			Text:       f.Text,
			Start:      -1,
			End:        -1,
			BlockIndex: -1,
		}
		if f.Start != nil && f.End != nil {
			det.Start, det.End = *f.Start, *f.End
		}
		if f.BlockIndex != nil {
			det.BlockIndex = *f.BlockIndex
		}
		detections = append(detections, det)
	}
	return detections, nil
}

// userPrompt renders the text blocks as an indexed array for the model.
func userPrompt(blocks []string) string {
	var b strings.Builder
	b.WriteString("Analyze the following text array and identify all PII. Return as JSON.\n\n")
	for i, text := range blocks {
		fmt.Fprintf(&b, "[%d] %s\n", i, text)
	}
	return b.String()
}
