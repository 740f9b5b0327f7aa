package main

import (
	"context"

	"github.com/redactify/redactify/internal/config"
	"github.com/redactify/redactify/internal/document"
	"github.com/redactify/redactify/internal/queue"
	"github.com/redactify/redactify/internal/services"
	"github.com/redactify/redactify/internal/state"
	"github.com/redactify/redactify/internal/worker"
)

func main() {
	worker.Run(worker.Stage{
		Name:  "redact-worker",
		Queue: queue.QueueRedact,
		Build: func(_ context.Context, cfg *config.Config, store state.Store, _ *queue.Client) (queue.Handler, func(), error) {
			reconstructor := document.NewReconstructor(document.NewRasterizer(cfg.RasterDPI))
			f := services.NewRedactor(store, reconstructor)
			return f.Handle, nil, nil
		},
	})
}
