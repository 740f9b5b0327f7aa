package main

import (
	"context"
	"fmt"

	"github.com/redactify/redactify/internal/classify"
	"github.com/redactify/redactify/internal/config"
	"github.com/redactify/redactify/internal/queue"
	"github.com/redactify/redactify/internal/services"
	"github.com/redactify/redactify/internal/state"
	"github.com/redactify/redactify/internal/worker"
)

func main() {
	worker.Run(worker.Stage{
		Name:  "detect-worker",
		Queue: queue.QueueDetect,
		Build: func(ctx context.Context, cfg *config.Config, store state.Store, client *queue.Client) (queue.Handler, func(), error) {
			classifier, cleanup, err := newClassifier(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			f := services.NewDetector(store, client, classifier, services.DetectorConfig{
				CallTimeout: cfg.CallTimeout,
				Parallel:    4,
			})
			return f.Handle, cleanup, nil
		},
	})
}

func newClassifier(ctx context.Context, cfg *config.Config) (classify.Classifier, func(), error) {
	switch cfg.Classifier {
	case "ollama":
		return classify.NewOllama(cfg.OllamaURL, cfg.OllamaModel), nil, nil
	case "vertex":
		vertex, err := classify.NewVertex(ctx, cfg.GCPProject, cfg.VertexRegion, cfg.VertexModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vertex classifier: %w", err)
		}
		return vertex, func() { _ = vertex.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown classifier %q", cfg.Classifier)
	}
}
