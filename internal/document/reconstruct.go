package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/redactify/redactify/internal/logging"
	"github.com/redactify/redactify/internal/models"
	"github.com/redactify/redactify/internal/redact"
)

// ErrNoPagesRedacted means not a single page of the job yielded a
// redacted raster; emitting an output document would be misleading.
var ErrNoPagesRedacted = errors.New("document: no page produced a redaction")

// Reconstructor redacts a multi-page PDF page by page and reassembles
// the result. Single-page failures are isolated; only a job where no
// page redacts at all fails the stage.
type Reconstructor struct {
	Raster *Rasterizer
}

func NewReconstructor(raster *Rasterizer) *Reconstructor {
	return &Reconstructor{Raster: raster}
}

// Redact renders every page of the source PDF, applies each detection
// artifact to its page, reassembles all pages (redacted or passed
// through) in original order, and cleans up the intermediates. Returns
// the output PDF path.
func (c *Reconstructor) Redact(ctx context.Context, jobID, pdfPath, outputFolder string, detectionFiles []string) (string, error) {
	log := logging.WithJob("reconstructor", jobID)

	pages, err := c.Raster.RenderPages(ctx, pdfPath, outputFolder, jobID)
	if err != nil {
		return "", fmt.Errorf("failed to rasterize %s: %w", pdfPath, err)
	}
	log.Info().Int("pageCount", len(pages)).Int("detectionFiles", len(detectionFiles)).Msg("pages rendered")

	var mu sync.Mutex
	redactedByPage := make(map[int]string)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(c.Raster.Parallel, 1))
	for _, detectionFile := range detectionFiles {
		detectionFile := detectionFile
		// A page that cannot be matched or redacted is skipped, never
		// fatal: eg.Go funcs return nil unconditionally.
		eg.Go(func() error {
			pageIndex, ok := PageIndex(jobID, detectionFile)
			if !ok {
				log.Warn().Str("file", detectionFile).Msg("cannot parse page index from detection filename, skipping")
				return nil
			}
			if pageIndex >= len(pages) {
				log.Warn().Int("pageIndex", pageIndex).Int("pageCount", len(pages)).Msg("page index out of range, skipping")
				return nil
			}
			boxes, err := LoadPlan(detectionFile)
			if err != nil {
				log.Warn().Err(err).Str("file", detectionFile).Msg("cannot load redaction plan, skipping page")
				return nil
			}
			outPath, err := redact.File(pages[pageIndex], boxes)
			if err != nil {
				log.Warn().Err(err).Int("pageIndex", pageIndex).Msg("page redaction failed, skipping page")
				return nil
			}
			mu.Lock()
			redactedByPage[pageIndex] = outPath
			mu.Unlock()
			log.Info().Int("pageIndex", pageIndex).Int("boxes", len(boxes)).Msg("page redacted")
			return nil
		})
	}
	_ = eg.Wait()
	if err := gctx.Err(); err != nil {
		return "", err
	}

	// Intermediates are only removed after a successful reassembly, so a
	// failed job leaves its renders behind for inspection.
	if len(redactedByPage) == 0 {
		return "", fmt.Errorf("job %s: %w", jobID, ErrNoPagesRedacted)
	}

	// Reassemble in original page order: redacted pages where available,
	// raw renders passed through for the rest.
	finalPages := make([]string, len(pages))
	for i, page := range pages {
		if redacted, ok := redactedByPage[i]; ok {
			finalPages[i] = redacted
		} else {
			finalPages[i] = page
		}
	}

	outPDF := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + "_redacted.pdf"
	if err := api.ImportImagesFile(finalPages, outPDF, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return "", fmt.Errorf("failed to assemble redacted PDF %s: %w", outPDF, err)
	}
	log.Info().Str("output", outPDF).Int("pagesRedacted", len(redactedByPage)).Msg("redacted PDF assembled")

	c.cleanup(log, pages, redactedByPage)
	return outPDF, nil
}

// cleanup removes intermediate renders and per-page redactions. Failures
// are logged, never escalated.
func (c *Reconstructor) cleanup(log zerolog.Logger, pages []string, redactedByPage map[int]string) {
	for _, page := range pages {
		if err := os.Remove(page); err != nil {
			log.Warn().Err(err).Str("file", page).Msg("could not delete rendered page")
		}
	}
	for _, redacted := range redactedByPage {
		if err := os.Remove(redacted); err != nil {
			log.Warn().Err(err).Str("file", redacted).Msg("could not delete redacted page")
		}
	}
}

// PageIndex extracts the zero-based page index encoded in a detection
// artifact filename of the form {jobID}_{index}_res.json.
func PageIndex(jobID, detectionFile string) (int, bool) {
	pattern := regexp.MustCompile(regexp.QuoteMeta(jobID) + `_(\d+)_res\.json$`)
	m := pattern.FindStringSubmatch(filepath.Base(detectionFile))
	if m == nil {
		return 0, false
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return index, true
}

// LoadPlan reads a detection artifact and returns its redaction plan.
func LoadPlan(detectionFile string) ([]models.BBox, error) {
	data, err := os.ReadFile(detectionFile)
	if err != nil {
		return nil, err
	}
	var artifact models.DetectionArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("malformed detection artifact: %w", err)
	}
	boxes := make([]models.BBox, 0, len(artifact.Detections))
	for _, det := range artifact.Detections {
		boxes = append(boxes, det.BBox)
	}
	return boxes, nil
}
