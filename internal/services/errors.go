package services

import "fmt"

// StageError is the error a stage function returns to its queue
// consumer. Transient errors are redelivered with backoff; terminal
// errors go straight to the dead-letter queue after the job record has
// been discarded.
type StageError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Retryable reports whether the queue should redeliver the message.
func (e *StageError) Retryable() bool { return e.Transient }

func terminal(op string, err error) *StageError {
	return &StageError{Op: op, Err: err, Transient: false}
}

func transient(op string, err error) *StageError {
	return &StageError{Op: op, Err: err, Transient: true}
}
