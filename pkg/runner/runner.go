// pkg/runner/runner.go

// Package runner sequences provisioning steps against a step log, skipping
// what is already done and applying each step's failure policy to the rest.
package runner

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/executor"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steplog"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steps"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Observer is told about each step as the run progresses. Implementations
// must not block for long: steps run on the caller's goroutine.
type Observer interface {
	OnStepStart(ctx context.Context, step steps.Step)
	OnStepFinish(ctx context.Context, entry Entry)
}

// Runner executes an ordered list of steps one at a time.
type Runner struct {
	exec     *executor.Executor
	observer Observer
	metrics  *telemetry.StepMetrics
	dryRun   bool
	now      func() time.Time
}

// New creates a Runner. A nil executor gets executor.New().
func New(exec *executor.Executor) *Runner {
	if exec == nil {
		exec = executor.New()
	}
	return &Runner{exec: exec, metrics: telemetry.DefaultStepMetrics(), now: time.Now}
}

// WithMetrics returns a Runner that records step outcomes on m.
func (r *Runner) WithMetrics(m *telemetry.StepMetrics) *Runner {
	c := *r
	c.metrics = m
	return &c
}

// WithObserver returns a Runner that reports progress to o.
func (r *Runner) WithObserver(o Observer) *Runner {
	c := *r
	c.observer = o
	return &c
}

// WithDryRun returns a Runner that reports which steps would run without
// invoking bodies or writing either log.
func (r *Runner) WithDryRun(dryRun bool) *Runner {
	c := *r
	c.dryRun = dryRun
	return &c
}

// Run walks list in order. A step already in stepLog is skipped. A failed
// Halt step stops the run and leaves later steps unrecorded. The returned
// error is non-nil only when the run could not be trusted to continue: an
// invalid step list, a log that could not be read or written, or ctx being
// cancelled between steps. Step failures are reported through the report.
func (r *Runner) Run(ctx context.Context, list []steps.Step, stepLog steplog.StepLog, errorLog steplog.ErrorLog) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		DryRun:    r.dryRun,
	}
	defer func() { report.FinishedAt = r.now() }()

	ctx, span := telemetry.Start(ctx, "runner.Run",
		attribute.String("run_id", report.RunID),
		attribute.Int("steps", len(list)),
		attribute.Bool("dry_run", r.dryRun))
	defer span.End()

	logger := otelzap.Ctx(ctx).WithOptions(zap.Fields(zap.String("run_id", report.RunID)))

	// ASSESS
	if err := steps.Validate(list); err != nil {
		return report, err
	}
	if stepLog == nil || errorLog == nil {
		return report, cerr.AssertionFailedf("runner needs both a step log and an error log")
	}

	logger.Info("Starting provisioning run",
		zap.Int("steps", len(list)),
		zap.Bool("dry_run", r.dryRun))

	// INTERVENE
	for _, step := range list {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run cancelled before step", zap.String("step", step.Name), zap.Error(err))
			report.abort(step.Name)
			return report, cerr.Wrap(err, "provisioning run cancelled")
		}

		done, err := stepLog.IsCompleted(ctx, step.Name)
		if err != nil {
			entry := Entry{Name: step.Name, Outcome: steps.OutcomeFailed, Policy: step.OnFailure, Err: ensureIO(err, "query step log")}
			r.finish(ctx, report, entry)
			report.abort(step.Name)
			logger.Error("Cannot read step log, stopping run", zap.String("step", step.Name), zap.Error(err))
			return report, entry.Err
		}
		if done {
			logger.Info("Step already completed, skipping", zap.String("step", step.Name))
			r.finish(ctx, report, Entry{Name: step.Name, Outcome: steps.OutcomeSkipped, Policy: step.OnFailure})
			continue
		}

		if r.dryRun {
			logger.Info("Dry run: step would run", zap.String("step", step.Name))
			r.finish(ctx, report, Entry{Name: step.Name, Outcome: steps.OutcomePending, Policy: step.OnFailure})
			continue
		}

		if r.observer != nil {
			r.observer.OnStepStart(ctx, step)
		}
		res := r.exec.Run(ctx, step)
		entry := Entry{
			Name:     step.Name,
			Policy:   step.OnFailure,
			Attempts: res.AttemptsUsed,
			Duration: res.Duration,
		}

		if res.Success {
			if err := stepLog.MarkCompleted(ctx, step.Name); err != nil {
				// The body ran but the record of it did not land, so the next
				// run cannot know. Report the step failed and stop.
				entry.Outcome = steps.OutcomeFailed
				entry.Err = ensureIO(err, "mark step completed")
				if recErr := errorLog.Record(ctx, step.Name, res.AttemptsUsed, entry.Err); recErr != nil {
					logger.Error("Failed to record error", zap.String("step", step.Name), zap.Error(recErr))
				}
				r.finish(ctx, report, entry)
				report.abort(step.Name)
				logger.Error("Step succeeded but could not be marked completed",
					zap.String("step", step.Name), zap.Error(err))
				return report, entry.Err
			}
			entry.Outcome = steps.OutcomeSucceeded
			r.finish(ctx, report, entry)
			continue
		}

		entry.Outcome = steps.OutcomeFailed
		entry.Err = res.LastError
		if entry.Err == nil {
			entry.Err = cerr.AssertionFailedf("step %q failed without an error", step.Name)
		}
		if err := errorLog.Record(ctx, step.Name, res.AttemptsUsed, entry.Err); err != nil {
			r.finish(ctx, report, entry)
			report.abort(step.Name)
			ioErr := ensureIO(err, "record step failure")
			logger.Error("Cannot write error log, stopping run", zap.String("step", step.Name), zap.Error(err))
			return report, ioErr
		}
		r.finish(ctx, report, entry)

		if step.OnFailure == steps.ContinueNext {
			logger.Warn("Step failed, continuing with next step",
				zap.String("step", step.Name),
				zap.Int("attempts", res.AttemptsUsed),
				zap.Error(entry.Err))
			continue
		}

		logger.Error("Step failed, halting run",
			zap.String("step", step.Name),
			zap.Int("attempts", res.AttemptsUsed),
			zap.Error(entry.Err))
		report.abort(step.Name)
		return report, nil
	}

	// EVALUATE
	span.SetAttributes(attribute.Int("failed", len(report.Failed())))
	logger.Info("Provisioning run finished",
		zap.Int("visited", len(report.Entries)),
		zap.Int("failed", len(report.Failed())))
	return report, nil
}

func (r *Runner) finish(ctx context.Context, report *RunReport, entry Entry) {
	report.Entries = append(report.Entries, entry)
	r.metrics.RecordStep(ctx, entry.Name, entry.Outcome.String(), entry.Attempts, entry.Duration)
	if r.observer != nil {
		r.observer.OnStepFinish(ctx, entry)
	}
}

func ensureIO(err error, op string) error {
	if hestia_err.IsIO(err) {
		return err
	}
	return hestia_err.IO(err, op)
}
