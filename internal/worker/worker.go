// Package worker carries the shared bootstrap for the queue worker
// binaries: configuration, logging, the job state store and the broker
// connection, then a blocking consume loop until shutdown.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/redactify/redactify/internal/config"
	"github.com/redactify/redactify/internal/logging"
	"github.com/redactify/redactify/internal/queue"
	"github.com/redactify/redactify/internal/state"
)

// Stage describes one worker binary. Build receives the wired
// dependencies and returns the message handler plus an optional
// cleanup hook.
type Stage struct {
	Name  string
	Queue string
	Build func(ctx context.Context, cfg *config.Config, store state.Store, client *queue.Client) (queue.Handler, func(), error)
}

// Run boots the stage and blocks until SIGINT/SIGTERM. Fatal wiring
// errors exit the process.
func Run(stage Stage) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.LoggerConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	logger := logging.WithComponent(stage.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open job state store")
	}
	defer closeStore()

	client, err := queue.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer client.Close()
	if err := client.Declare(queue.QueueOCR, queue.QueueDetect, queue.QueueRedact); err != nil {
		logger.Fatal().Err(err).Msg("failed to declare queues")
	}

	handler, cleanup, err := stage.Build(ctx, cfg, store, client)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build stage")
	}
	if cleanup != nil {
		defer cleanup()
	}

	logger.Info().Str("queue", stage.Queue).Msg("worker started")
	if err := client.Consume(ctx, stage.Queue, cfg.MaxRetries, handler); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("consume loop failed")
	}
	logger.Info().Msg("worker stopped")
}

// OpenStore builds the configured job state store and its close hook.
func OpenStore(ctx context.Context, cfg *config.Config) (state.Store, func(), error) {
	switch cfg.StateBackend {
	case "memory":
		return state.NewMemoryStore(), func() {}, nil
	case "firestore":
		store, err := state.NewFirestoreStore(ctx, cfg.GCPProject, cfg.FirestoreCollection)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("closing firestore store")
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}
