package models

import (
	"fmt"
	"image"
	"strings"
)

// BBox is an axis-aligned pixel rectangle [x1,y1,x2,y2]. It marshals as a
// plain JSON array, matching the OCR engine's artifact format.
type BBox [4]int

// Rect converts the box to an image.Rectangle, normalized.
func (b BBox) Rect() image.Rectangle {
	return image.Rect(b[0], b[1], b[2], b[3])
}

// Union returns the minimal rectangle covering both boxes.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		min(b[0], o[0]),
		min(b[1], o[1]),
		max(b[2], o[2]),
		max(b[3], o[3]),
	}
}

func (b BBox) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b[0], b[1], b[2], b[3])
}

// TextBlock is one OCR-reported region: its text and pixel bounding box.
// Block order is reading order as reported by the engine.
type TextBlock struct {
	Text string
	Box  BBox
}

// OCRResult is the per-unit artifact the OCR stage writes:
// parallel arrays of recognized texts and their boxes.
type OCRResult struct {
	RecTexts []string `json:"rec_texts"`
	RecBoxes []BBox   `json:"rec_boxes"`
}

// Blocks pairs up the parallel arrays, discarding blocks whose text is
// empty or whitespace-only. Discarding happens pairwise so the surviving
// texts and boxes stay aligned.
func (r OCRResult) Blocks() []TextBlock {
	n := min(len(r.RecTexts), len(r.RecBoxes))
	blocks := make([]TextBlock, 0, n)
	for i := 0; i < n; i++ {
		text := strings.TrimSpace(r.RecTexts[i])
		if text == "" {
			continue
		}
		blocks = append(blocks, TextBlock{Text: text, Box: r.RecBoxes[i]})
	}
	return blocks
}
