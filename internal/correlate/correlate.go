// Package correlate maps PII detections back onto OCR bounding boxes.
//
// A detection arrives as text (plus, depending on the classifier, a block
// index or character offsets) and must be reconciled with the 2-D layout
// the OCR engine reported. Resolution never fails a job: a detection that
// cannot be located is dropped by the caller.
package correlate

import (
	"strings"

	"github.com/redactify/redactify/internal/models"
)

// Locate resolves one detection to a pixel bounding box against the given
// text blocks. The second return value is false when the detection cannot
// be located.
//
// Strategy selection follows what the classifier supplied:
//   - block index + offsets: proportional interpolation within that block
//   - block index only: the block's box verbatim
//   - text only: first-occurrence substring search across the space-joined
//     full text, proportional within a single block or the union rectangle
//     when the span crosses block boundaries
func Locate(det models.RawDetection, blocks []models.TextBlock) (models.DetectionRecord, bool) {
	if det.Text == "" || len(blocks) == 0 {
		return models.DetectionRecord{}, false
	}

	if det.BlockIndex >= 0 && det.BlockIndex < len(blocks) {
		block := blocks[det.BlockIndex]
		if det.HasOffsets() {
			end := min(det.End, len(block.Text))
			if det.Start >= end {
				return models.DetectionRecord{}, false
			}
			return models.DetectionRecord{
				BlockIndex:   det.BlockIndex,
				OriginalText: block.Text,
				Category:     det.Category,
				DetectedText: det.Text,
				BBox:         proportionalBox(block.Box, det.Start, end, len(block.Text)),
				Method:       models.MethodSingleBlock,
			}, true
		}
		return models.DetectionRecord{
			BlockIndex:   det.BlockIndex,
			OriginalText: block.Text,
			Category:     det.Category,
			DetectedText: det.Text,
			BBox:         block.Box,
			Method:       models.MethodDirect,
		}, true
	}

	return locateBySubstring(det, blocks)
}

// span is the character range a block occupies in the joined full text.
type span struct {
	index      int
	start, end int
}

// locateBySubstring searches the document-wide full text for the first
// occurrence of the detected text. Repeated substrings resolve to the
// first occurrence only.
func locateBySubstring(det models.RawDetection, blocks []models.TextBlock) (models.DetectionRecord, bool) {
	fullText := joinBlocks(blocks)
	start := strings.Index(fullText, det.Text)
	if start < 0 {
		return models.DetectionRecord{}, false
	}
	end := start + len(det.Text)

	var hits []span
	pos := 0
	for i, block := range blocks {
		blockStart := pos
		blockEnd := pos + len(block.Text)
		if blockStart < end && start < blockEnd {
			hits = append(hits, span{index: i, start: blockStart, end: blockEnd})
		}
		pos = blockEnd + 1 // one separator character between blocks
	}
	if len(hits) == 0 {
		return models.DetectionRecord{}, false
	}

	if len(hits) == 1 {
		hit := hits[0]
		block := blocks[hit.index]
		relStart := max(start, hit.start) - hit.start
		relEnd := min(end, hit.end) - hit.start
		return models.DetectionRecord{
			BlockIndex:   hit.index,
			OriginalText: block.Text,
			Category:     det.Category,
			DetectedText: det.Text,
			BBox:         proportionalBox(block.Box, relStart, relEnd, len(block.Text)),
			Method:       models.MethodSingleBlock,
		}, true
	}

	union := blocks[hits[0].index].Box
	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		union = union.Union(blocks[hit.index].Box)
		texts = append(texts, blocks[hit.index].Text)
	}
	return models.DetectionRecord{
		BlockIndex:    hits[0].index,
		OriginalText:  strings.Join(texts, " "),
		Category:      det.Category,
		DetectedText:  det.Text,
		BBox:          union,
		Method:        models.MethodMultiBlock,
		SpansMultiple: true,
		NumBlocks:     len(hits),
	}, true
}

// proportionalBox interpolates an x-interval along the block box in
// proportion to the character range, holding the vertical extent fixed.
// Assumes left-to-right monotonic character layout within the block.
func proportionalBox(box models.BBox, start, end, textLen int) models.BBox {
	if textLen <= 0 {
		return box
	}
	width := float64(box[2] - box[0])
	x1 := float64(box[0]) + width*float64(start)/float64(textLen)
	x2 := float64(box[0]) + width*float64(end)/float64(textLen)
	return models.BBox{int(x1), box[1], int(x2), box[3]}
}

func joinBlocks(blocks []models.TextBlock) string {
	texts := make([]string, len(blocks))
	for i, block := range blocks {
		texts[i] = block.Text
	}
	return strings.Join(texts, " ")
}
