// pkg/executor/executor.go

package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steps"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Executor runs a single step body with bounded retry. It reports outcomes
// and never writes to the step log or error log itself.
type Executor struct {
	// Sleep pauses between attempts. The pause is deliberately not cancellable.
	Sleep func(time.Duration)
}

// New returns an Executor that sleeps with time.Sleep.
func New() *Executor {
	return &Executor{Sleep: time.Sleep}
}

// Run attempts step.Body up to step.Attempts() times. A success short-circuits
// the remaining attempts; an error marked fatal stops immediately.
func (e *Executor) Run(ctx context.Context, step steps.Step) steps.ExecutionResult {
	logger := otelzap.Ctx(ctx)
	maxAttempts := step.Attempts()
	start := time.Now()

	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++

		logger.Info("Running step",
			zap.String("step", step.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts))

		err := e.attempt(ctx, step, attempt)
		if err == nil {
			logger.Info("Step succeeded",
				zap.String("step", step.Name),
				zap.Int("attempt", attempt),
				zap.Duration("duration", time.Since(start)))
			return steps.ExecutionResult{
				Success:      true,
				AttemptsUsed: attempt,
				Duration:     time.Since(start),
			}
		}
		lastErr = err

		if hestia_err.IsFatal(err) {
			logger.Error("Step aborted, not retrying",
				zap.String("step", step.Name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			break
		}

		logger.Warn("Step attempt failed",
			zap.String("step", step.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))

		if attempt < maxAttempts && step.RetryDelay > 0 {
			logger.Debug("Waiting before retry",
				zap.String("step", step.Name),
				zap.Duration("delay", step.RetryDelay))
			e.sleep(step.RetryDelay)
		}
	}

	return steps.ExecutionResult{
		Success:      false,
		LastError:    lastErr,
		AttemptsUsed: attempt,
		Duration:     time.Since(start),
	}
}

// attempt runs the body once inside its own span. A panicking body is
// converted into a fatal error: retrying a bug will not fix it.
func (e *Executor) attempt(ctx context.Context, step steps.Step, n int) (err error) {
	ctx, span := telemetry.Start(ctx, "step.attempt",
		attribute.String("step", step.Name),
		attribute.Int("attempt", n))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = hestia_err.Fatal(hestia_err.NewInternalError(
				fmt.Sprintf("step %q panicked", step.Name),
				cerr.AssertionFailedf("panic: %v", r)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return step.Body(ctx)
}

func (e *Executor) sleep(d time.Duration) {
	if e.Sleep == nil {
		time.Sleep(d)
		return
	}
	e.Sleep(d)
}
