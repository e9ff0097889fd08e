// pkg/hestia_err/step.go

package hestia_err

import (
	cerr "github.com/cockroachdb/errors"
)

// Step failures and log failures are distinct kinds. Markers survive wrapping,
// so callers can keep adding context with cerr.Wrap without losing the kind.
var (
	// ErrTransient marks a step failure that may succeed on another attempt.
	ErrTransient = cerr.New("transient step failure")
	// ErrFatal marks a step failure that must not be retried.
	ErrFatal = cerr.New("fatal step failure")
	// ErrIO marks a failure to read or write the step log or error log.
	ErrIO = cerr.New("step log I/O failure")
)

// Transient marks err as retryable. Returns nil for a nil error.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return cerr.Mark(err, ErrTransient)
}

// Transientf creates a new retryable error.
func Transientf(format string, args ...interface{}) error {
	return cerr.Mark(cerr.Newf(format, args...), ErrTransient)
}

// Fatal marks err as an abort signal: the executor stops retrying immediately.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return cerr.Mark(err, ErrFatal)
}

// Fatalf creates a new non-retryable error.
func Fatalf(format string, args ...interface{}) error {
	return cerr.Mark(cerr.Newf(format, args...), ErrFatal)
}

// IO wraps a log read/write failure. The runner always stops on these.
func IO(err error, op string) error {
	if err == nil {
		return nil
	}
	return cerr.Mark(
		cerr.WithHint(cerr.Wrap(err, op), "check permissions and free space on the state directory"),
		ErrIO,
	)
}

func IsTransient(err error) bool { return err != nil && cerr.Is(err, ErrTransient) }

func IsFatal(err error) bool { return err != nil && cerr.Is(err, ErrFatal) }

func IsIO(err error) bool { return err != nil && cerr.Is(err, ErrIO) }
