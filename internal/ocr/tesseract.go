package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/redactify/redactify/internal/models"
)

// Tesseract is an Engine backed by the local Tesseract install via
// gosseract. One client is created per extraction; the client is not
// safe for concurrent use.
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract constructs a Tesseract engine with optional language
// hints (defaults to "eng").
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{languages: languages, clientFactory: gosseract.NewClient}
}

// Extract recognizes text lines with their pixel boxes. Whitespace-only
// lines are discarded; the returned parallel arrays stay aligned.
func (t *Tesseract) Extract(ctx context.Context, imagePath string) (models.OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return models.OCRResult{}, err
	}
	client := t.clientFactory()
	defer client.Close()

	if err := client.SetImage(imagePath); err != nil {
		return models.OCRResult{}, fmt.Errorf("set image %s: %w", imagePath, err)
	}
	if err := client.SetLanguage(t.languages...); err != nil {
		return models.OCRResult{}, fmt.Errorf("set languages: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("recognize %s: %w", imagePath, err)
	}
	if err := ctx.Err(); err != nil {
		return models.OCRResult{}, err
	}
	return resultFromBoxes(boxes), nil
}

// resultFromBoxes converts gosseract line boxes to the OCR artifact
// shape, dropping empty lines.
func resultFromBoxes(boxes []gosseract.BoundingBox) models.OCRResult {
	var res models.OCRResult
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		res.RecTexts = append(res.RecTexts, text)
		res.RecBoxes = append(res.RecBoxes, models.BBox{b.Box.Min.X, b.Box.Min.Y, b.Box.Max.X, b.Box.Max.Y})
	}
	return res
}
