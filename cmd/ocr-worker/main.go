package main

import (
	"context"

	"github.com/redactify/redactify/internal/config"
	"github.com/redactify/redactify/internal/document"
	"github.com/redactify/redactify/internal/ocr"
	"github.com/redactify/redactify/internal/queue"
	"github.com/redactify/redactify/internal/services"
	"github.com/redactify/redactify/internal/state"
	"github.com/redactify/redactify/internal/worker"
)

func main() {
	worker.Run(worker.Stage{
		Name:  "ocr-worker",
		Queue: queue.QueueOCR,
		Build: func(_ context.Context, cfg *config.Config, store state.Store, client *queue.Client) (queue.Handler, func(), error) {
			engine := ocr.NewTesseract(cfg.OCRLanguages...)
			raster := document.NewRasterizer(cfg.RasterDPI)
			f := services.NewOCR(store, client, engine, raster, services.OCRConfig{CallTimeout: cfg.CallTimeout})
			return f.Handle, nil, nil
		},
	})
}
