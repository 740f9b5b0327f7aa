// Package document renders, redacts and reassembles multi-page PDFs.
package document

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"
)

// Rasterizer renders PDF pages to PNG via the poppler pdftoppm binary.
type Rasterizer struct {
	DPI    int
	Binary string
	// Parallel limits concurrent render processes.
	Parallel int
}

// NewRasterizer returns a rasterizer at the given DPI.
func NewRasterizer(dpi int) *Rasterizer {
	return &Rasterizer{DPI: dpi, Binary: "pdftoppm", Parallel: 4}
}

// PageCount validates the PDF and returns its page count.
func PageCount(pdfPath string) (int, error) {
	count, err := api.PageCountFile(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count for %s: %w", pdfPath, err)
	}
	return count, nil
}

// RenderPages renders every page of the PDF as an RGB PNG named
// {jobID}-{pageIndex}.png under outDir, page indices zero-based. Renders
// overwrite deterministically, so a redelivered job regenerates identical
// paths instead of duplicating artifacts. Returns the page paths in order.
func (r *Rasterizer) RenderPages(ctx context.Context, pdfPath, outDir, jobID string) ([]string, error) {
	count, err := PageCount(pdfPath)
	if err != nil {
		return nil, err
	}

	paths := make([]string, count)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(r.Parallel, 1))
	for i := 0; i < count; i++ {
		page := i
		paths[page] = filepath.Join(outDir, fmt.Sprintf("%s-%d.png", jobID, page))
		eg.Go(func() error {
			return r.renderPage(gctx, pdfPath, paths[page], page+1)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// renderPage runs one pdftoppm invocation for a single 1-based page.
func (r *Rasterizer) renderPage(ctx context.Context, pdfPath, outPath string, page int) error {
	// -singlefile writes exactly <prefix>.png with no page-number suffix.
	prefix := outPath[:len(outPath)-len(".png")]
	cmd := exec.CommandContext(ctx, r.Binary,
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-png",
		"-r", strconv.Itoa(r.DPI),
		"-singlefile",
		pdfPath, prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pdftoppm page %d of %s: %w (%s)", page, pdfPath, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
