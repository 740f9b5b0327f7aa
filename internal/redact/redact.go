// Package redact blacks out rectangles on raster images.
package redact

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/redactify/redactify/internal/models"
)

// Image paints an opaque black fill over each box on a copy of src. No
// other pixels are touched. An empty box list returns an untouched copy:
// callers treat that as "nothing was found", not as an error.
func Image(src image.Image, boxes []models.BBox) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	black := image.NewUniform(color.Black)
	for _, box := range boxes {
		rect := box.Rect().Intersect(bounds)
		if rect.Empty() {
			continue
		}
		draw.Draw(dst, rect, black, image.Point{}, draw.Src)
	}
	return dst
}

// File redacts the raster at srcPath and writes the result alongside it
// with a "_redacted" suffix, preserving the container format. The output
// is encoded in memory and written in one shot, so a failure never
// leaves a partial file for a later glob to pick up. Returns the output
// path.
func File(srcPath string, boxes []models.BBox) (string, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open image %s: %w", srcPath, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("failed to decode image %s: %w", srcPath, err)
	}

	redacted := Image(src, boxes)
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(srcPath)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, redacted, &jpeg.Options{Quality: 95})
	default:
		err = png.Encode(&buf, redacted)
	}
	outPath := RedactedPath(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", outPath, err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	return outPath, nil
}

// RedactedPath derives the sibling output path: stem + "_redacted" + ext.
func RedactedPath(srcPath string) string {
	ext := filepath.Ext(srcPath)
	return strings.TrimSuffix(srcPath, ext) + "_redacted" + ext
}
