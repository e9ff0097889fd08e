// pkg/telemetry/metrics.go
package telemetry

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StepMetrics counts step outcomes and attempts for a provisioning run.
type StepMetrics struct {
	outcomes metric.Int64Counter
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

// NewStepMetrics creates the step instruments on meter.
func NewStepMetrics(meter metric.Meter) (*StepMetrics, error) {
	outcomes, err := meter.Int64Counter("hestia_step_outcomes_total",
		metric.WithDescription("Steps visited by a run, by outcome"))
	if err != nil {
		return nil, cerr.Wrap(err, "failed to create outcomes counter")
	}

	attempts, err := meter.Int64Counter("hestia_step_attempts_total",
		metric.WithDescription("Step body invocations, including retries"))
	if err != nil {
		return nil, cerr.Wrap(err, "failed to create attempts counter")
	}

	duration, err := meter.Float64Histogram("hestia_step_duration_seconds",
		metric.WithDescription("Time spent executing a step across all attempts"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, cerr.Wrap(err, "failed to create duration histogram")
	}

	return &StepMetrics{outcomes: outcomes, attempts: attempts, duration: duration}, nil
}

// DefaultStepMetrics uses the global meter provider. Instruments fall back to
// no-ops if the provider rejects them.
func DefaultStepMetrics() *StepMetrics {
	m, err := NewStepMetrics(otel.Meter(shared.HestiaID))
	if err != nil {
		return nil
	}
	return m
}

// RecordStep adds one visited step. Skipped and pending steps have zero
// attempts and no duration sample. Safe on a nil receiver.
func (m *StepMetrics) RecordStep(ctx context.Context, step, outcome string, attempts int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("outcome", outcome))

	m.outcomes.Add(ctx, 1, attrs)
	if attempts > 0 {
		m.attempts.Add(ctx, int64(attempts), attrs)
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
}
