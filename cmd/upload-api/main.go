package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redactify/redactify/internal/config"
	"github.com/redactify/redactify/internal/logging"
	"github.com/redactify/redactify/internal/queue"
	"github.com/redactify/redactify/internal/server"
	"github.com/redactify/redactify/internal/services"
	"github.com/redactify/redactify/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.LoggerConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	logger := logging.WithComponent("upload-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := worker.OpenStore(ctx, cfg)
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

	upload := services.NewUpload(store, client, services.UploadConfig{
		UploadsDir: cfg.UploadsDir,
		OutputRoot: cfg.OutputRoot,
	})
	s := server.New(upload, store, cfg.MaxUploadBytes)

	if err := s.Start(ctx, cfg.ListenAddr); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("upload API stopped")
}
