// Package services holds the per-stage pipeline functions. Each worker
// binary wraps exactly one of these in a queue consumer; the upload API
// wraps UploadFunction in an HTTP handler.
package services

import "context"

// Publisher sends a JSON message to a named queue. Satisfied by
// *queue.Client.
type Publisher interface {
	Publish(ctx context.Context, queueName string, v any) error
}
