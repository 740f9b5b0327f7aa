// Package ocr wraps the external OCR engine behind a narrow interface:
// an image goes in, ordered text blocks with pixel boxes come out.
package ocr

import (
	"context"

	"github.com/redactify/redactify/internal/models"
)

// Engine extracts text blocks and their bounding boxes from a raster
// image file. Block order is reading order.
type Engine interface {
	Extract(ctx context.Context, imagePath string) (models.OCRResult, error)
}
