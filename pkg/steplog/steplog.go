// Package steplog records which provisioning steps have completed and which
// have failed. Both logs are append-only; the step log is what makes a run
// resumable, the error log exists only for people reading it afterwards.
package steplog

import (
	"context"

	cerr "github.com/cockroachdb/errors"
)

// StepLog is the durable set of completed step names.
type StepLog interface {
	// IsCompleted reports whether name has been marked. Absence is not an error.
	IsCompleted(ctx context.Context, name string) (bool, error)
	// MarkCompleted durably records name. The record is visible to IsCompleted
	// before it returns. Marking an already-marked name is a no-op.
	MarkCompleted(ctx context.Context, name string) error
	// Completed lists marked names in the order they were recorded.
	Completed(ctx context.Context) ([]string, error)
	Close() error
}

// ErrorLog is an append-only diagnostic record of step failures.
type ErrorLog interface {
	Record(ctx context.Context, step string, attempts int, err error) error
	Close() error
}

// ErrLocked is returned when another process already holds the step log.
var ErrLocked = cerr.New("step log is locked by another hestia process")

// ErrClosed is returned for calls made after Close.
var ErrClosed = cerr.New("step log is closed")
