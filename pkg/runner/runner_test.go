package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/executor"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steplog"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steps"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"
)

type fixture struct {
	dir      string
	stepLog  *steplog.FileStepLog
	errorLog *steplog.FileErrorLog
	runner   *Runner
	delays   []time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	otelzap.ReplaceGlobals(otelzap.New(zaptest.NewLogger(t)))

	f := &fixture{dir: t.TempDir()}
	var err error
	f.stepLog, err = steplog.OpenFile(filepath.Join(f.dir, "steps.log"))
	require.NoError(t, err)
	f.errorLog, err = steplog.OpenErrorLog(filepath.Join(f.dir, "errors.log"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = f.stepLog.Close()
		_ = f.errorLog.Close()
	})

	f.runner = New(&executor.Executor{Sleep: func(d time.Duration) { f.delays = append(f.delays, d) }})
	return f
}

func (f *fixture) completed(t *testing.T) []string {
	t.Helper()
	names, err := f.stepLog.Completed(context.Background())
	require.NoError(t, err)
	return names
}

func (f *fixture) errorLines(t *testing.T) []string {
	t.Helper()
	lines, err := steplog.ReadTail(filepath.Join(f.dir, "errors.log"), 100)
	require.NoError(t, err)
	return lines
}

// counter tracks how many times each body was invoked.
type counter map[string]int

func (c counter) ok(name string) steps.Step {
	return steps.Step{Name: name, Body: func(context.Context) error { c[name]++; return nil }}
}

func (c counter) failing(name string, policy steps.FailurePolicy) steps.Step {
	return steps.Step{
		Name:       name,
		Retries:    3,
		RetryDelay: 10 * time.Millisecond,
		OnFailure:  policy,
		Body: func(context.Context) error {
			c[name]++
			return errors.New(name + " is broken")
		},
	}
}

func outcomes(r *RunReport) map[string]steps.Outcome {
	m := map[string]steps.Outcome{}
	for _, e := range r.Entries {
		m[e.Name] = e.Outcome
	}
	return m
}

func TestRun_HaltStopsRun(t *testing.T) {
	f := newFixture(t)
	c := counter{}
	list := []steps.Step{c.ok("A"), c.ok("B"), c.failing("C", steps.Halt), c.ok("D")}

	report, err := f.runner.Run(context.Background(), list, f.stepLog, f.errorLog)
	require.NoError(t, err)

	assert.True(t, report.Aborted)
	assert.Equal(t, "C", report.AbortedAt)
	assert.Equal(t, []string{"A", "B"}, f.completed(t))
	require.Len(t, report.Entries, 3)
	assert.Equal(t, map[string]steps.Outcome{
		"A": steps.OutcomeSucceeded,
		"B": steps.OutcomeSucceeded,
		"C": steps.OutcomeFailed,
	}, outcomes(report))
	assert.Equal(t, steps.OutcomePending, report.Outcome("D"))
	assert.Equal(t, 3, c["C"])
	assert.Zero(t, c["D"])
	assert.Len(t, f.delays, 2)

	lines := f.errorLines(t)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[C]")
	assert.Contains(t, lines[0], "C is broken")

	assert.False(t, report.Succeeded())
	assert.Equal(t, 1, report.ExitCode())
}

func TestRun_ContinueNext(t *testing.T) {
	f := newFixture(t)
	c := counter{}
	list := []steps.Step{c.ok("A"), c.ok("B"), c.failing("C", steps.ContinueNext), c.ok("D")}

	report, err := f.runner.Run(context.Background(), list, f.stepLog, f.errorLog)
	require.NoError(t, err)

	assert.False(t, report.Aborted)
	assert.Equal(t, []string{"A", "B", "D"}, f.completed(t))
	assert.Equal(t, map[string]steps.Outcome{
		"A": steps.OutcomeSucceeded,
		"B": steps.OutcomeSucceeded,
		"C": steps.OutcomeFailed,
		"D": steps.OutcomeSucceeded,
	}, outcomes(report))
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "C", report.Failed()[0].Name)
	assert.Len(t, f.errorLines(t), 1)

	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "C is broken")
	assert.Equal(t, 1, report.ExitCode())
}

func TestRun_ResumesFromPrefix(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.stepLog.MarkCompleted(context.Background(), "A"))

	var order []string
	mk := func(name string) steps.Step {
		return steps.Step{Name: name, Body: func(context.Context) error {
			order = append(order, name)
			return nil
		}}
	}

	report, err := f.runner.Run(context.Background(), []steps.Step{mk("A"), mk("B"), mk("C")}, f.stepLog, f.errorLog)
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C"}, order)
	assert.Equal(t, []string{"A", "B", "C"}, f.completed(t))
	assert.Equal(t, steps.OutcomeSkipped, report.Outcome("A"))
	assert.True(t, report.Succeeded())
	assert.Equal(t, 0, report.ExitCode())
	assert.NoError(t, report.Err())
	assert.Empty(t, f.errorLines(t))
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	c := counter{}
	list := []steps.Step{c.ok("A"), c.ok("B")}

	_, err := f.runner.Run(context.Background(), list, f.stepLog, f.errorLog)
	require.NoError(t, err)
	report, err := f.runner.Run(context.Background(), list, f.stepLog, f.errorLog)
	require.NoError(t, err)

	assert.Equal(t, 1, c["A"])
	assert.Equal(t, 1, c["B"])
	assert.Equal(t, []string{"A", "B"}, f.completed(t))
	for _, e := range report.Entries {
		assert.Equal(t, steps.OutcomeSkipped, e.Outcome)
	}

	data, err := os.ReadFile(filepath.Join(f.dir, "steps.log"))
	require.NoError(t, err)
	assert.Equal(t, "A\nB\n", string(data))
}

func TestRun_ResumeAfterHalt(t *testing.T) {
	f := newFixture(t)
	c := counter{}
	broken := true
	flaky := steps.Step{Name: "C", Retries: 1, Body: func(context.Context) error {
		c["C"]++
		if broken {
			return errors.New("nginx -t failed")
		}
		return nil
	}}
	list := []steps.Step{c.ok("A"), c.ok("B"), flaky, c.ok("D")}

	first, err := f.runner.Run(context.Background(), list, f.stepLog, f.errorLog)
	require.NoError(t, err)
	require.True(t, first.Aborted)

	broken = false
	second, err := f.runner.Run(context.Background(), list, f.stepLog, f.errorLog)
	require.NoError(t, err)

	assert.True(t, second.Succeeded())
	assert.Equal(t, 1, c["A"])
	assert.Equal(t, 2, c["C"])
	assert.Equal(t, 1, c["D"])
	assert.Equal(t, []string{"A", "B", "C", "D"}, f.completed(t))
}

func TestRun_FatalErrorSkipsRetries(t *testing.T) {
	f := newFixture(t)
	calls := 0
	step := steps.Step{Name: "setup-postgres", Retries: 5, Body: func(context.Context) error {
		calls++
		return hestia_err.Fatalf("postgres 9.6 is too old")
	}}

	report, err := f.runner.Run(context.Background(), []steps.Step{step}, f.stepLog, f.errorLog)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.True(t, report.Aborted)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, 1, report.Entries[0].Attempts)
	assert.True(t, hestia_err.IsFatal(report.Entries[0].Err))
}

func TestRun_InvalidSteps(t *testing.T) {
	f := newFixture(t)
	c := counter{}

	_, err := f.runner.Run(context.Background(), []steps.Step{c.ok("A"), c.ok("A")}, f.stepLog, f.errorLog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
	assert.Zero(t, c["A"])
}

func TestRun_CancelledBetweenSteps(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	c := counter{}
	list := []steps.Step{
		{Name: "A", Body: func(context.Context) error { c["A"]++; cancel(); return nil }},
		c.ok("B"),
	}

	report, err := f.runner.Run(ctx, list, f.stepLog, f.errorLog)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, c["A"])
	assert.Zero(t, c["B"])
	assert.True(t, report.Aborted)
	assert.Equal(t, "B", report.AbortedAt)
	assert.Equal(t, []string{"A"}, f.completed(t))
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.stepLog.MarkCompleted(context.Background(), "A"))
	c := counter{}

	report, err := f.runner.WithDryRun(true).Run(context.Background(),
		[]steps.Step{c.ok("A"), c.ok("B"), c.ok("C")}, f.stepLog, f.errorLog)
	require.NoError(t, err)

	assert.Empty(t, c)
	assert.Equal(t, []string{"A"}, f.completed(t))
	assert.True(t, report.DryRun)
	assert.Equal(t, steps.OutcomeSkipped, report.Outcome("A"))
	assert.Equal(t, steps.OutcomePending, report.Outcome("B"))
	assert.Len(t, report.Entries, 3)
}

// brokenStepLog fails whichever operation is configured to fail.
type brokenStepLog struct {
	steplog.StepLog
	failRead  bool
	failWrite bool
	marked    []string
}

func (b *brokenStepLog) IsCompleted(ctx context.Context, name string) (bool, error) {
	if b.failRead {
		return false, errors.New("input/output error")
	}
	return false, nil
}

func (b *brokenStepLog) MarkCompleted(ctx context.Context, name string) error {
	if b.failWrite {
		return errors.New("no space left on device")
	}
	b.marked = append(b.marked, name)
	return nil
}

func (b *brokenStepLog) Close() error { return nil }

type brokenErrorLog struct{}

func (brokenErrorLog) Record(context.Context, string, int, error) error {
	return errors.New("read-only file system")
}

func (brokenErrorLog) Close() error { return nil }

func TestRun_StepLogReadFailureStops(t *testing.T) {
	f := newFixture(t)
	c := counter{}

	report, err := f.runner.Run(context.Background(), []steps.Step{c.ok("A"), c.ok("B")},
		&brokenStepLog{failRead: true}, f.errorLog)
	require.Error(t, err)
	assert.True(t, hestia_err.IsIO(err))

	assert.Empty(t, c)
	assert.True(t, report.Aborted)
	assert.Equal(t, "A", report.AbortedAt)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, steps.OutcomeFailed, report.Entries[0].Outcome)
}

func TestRun_MarkCompletedFailureFailsStep(t *testing.T) {
	f := newFixture(t)
	c := counter{}

	report, err := f.runner.Run(context.Background(), []steps.Step{c.ok("A"), c.ok("B")},
		&brokenStepLog{failWrite: true}, f.errorLog)
	require.Error(t, err)
	assert.True(t, hestia_err.IsIO(err))

	assert.Equal(t, 1, c["A"])
	assert.Zero(t, c["B"])
	assert.Equal(t, steps.OutcomeFailed, report.Outcome("A"))
	assert.True(t, report.Aborted)
	assert.Equal(t, 1, report.ExitCode())

	lines := f.errorLines(t)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "no space left on device")
}

func TestRun_ErrorLogFailureStops(t *testing.T) {
	f := newFixture(t)
	c := counter{}
	list := []steps.Step{c.failing("A", steps.ContinueNext), c.ok("B")}

	report, err := f.runner.Run(context.Background(), list, f.stepLog, brokenErrorLog{})
	require.Error(t, err)
	assert.True(t, hestia_err.IsIO(err))

	assert.Zero(t, c["B"])
	assert.True(t, report.Aborted)
	assert.Equal(t, "A", report.AbortedAt)
}

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) OnStepStart(_ context.Context, s steps.Step) {
	r.events = append(r.events, "start:"+s.Name)
}

func (r *recordingObserver) OnStepFinish(_ context.Context, e Entry) {
	r.events = append(r.events, e.Outcome.String()+":"+e.Name)
}

func TestRun_LogsCarryRunID(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.DebugLevel)
	otelzap.ReplaceGlobals(otelzap.New(zap.New(core)))

	report, err := f.runner.Run(context.Background(), []steps.Step{
		{Name: "only", Body: func(context.Context) error { return nil }},
	}, f.stepLog, f.errorLog)
	require.NoError(t, err)

	started := logs.FilterMessage("Starting provisioning run").All()
	require.Len(t, started, 1)
	assert.Equal(t, report.RunID, started[0].ContextMap()["run_id"])
}

type outcomeMeter struct {
	noop.Meter
	counts map[string]int64
}

func (m *outcomeMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if name != "hestia_step_outcomes_total" {
		return noop.Int64Counter{}, nil
	}
	return &outcomeCounter{m: m}, nil
}

type outcomeCounter struct {
	noop.Int64Counter
	m *outcomeMeter
}

func (c *outcomeCounter) Add(_ context.Context, incr int64, opts ...metric.AddOption) {
	set := metric.NewAddConfig(opts).Attributes()
	v, _ := set.Value("outcome")
	c.m.counts[v.AsString()] += incr
}

func TestRun_RecordsOutcomeMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.stepLog.MarkCompleted(ctx, "done"))

	meter := &outcomeMeter{counts: map[string]int64{}}
	m, err := telemetry.NewStepMetrics(meter)
	require.NoError(t, err)

	_, err = f.runner.WithMetrics(m).Run(ctx, []steps.Step{
		{Name: "done", Body: func(context.Context) error { return nil }},
		{Name: "ok", Body: func(context.Context) error { return nil }},
		{Name: "broken", Body: func(context.Context) error { return hestia_err.Fatal(errors.New("no")) }, OnFailure: steps.ContinueNext},
	}, f.stepLog, f.errorLog)
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"skipped": 1, "succeeded": 1, "failed": 1}, meter.counts)
}

func TestRun_Observer(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.stepLog.MarkCompleted(context.Background(), "A"))
	c := counter{}
	obs := &recordingObserver{}

	_, err := f.runner.WithObserver(obs).Run(context.Background(),
		[]steps.Step{c.ok("A"), c.failing("B", steps.ContinueNext), c.ok("C")}, f.stepLog, f.errorLog)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"skipped:A",
		"start:B", "failed:B",
		"start:C", "succeeded:C",
	}, obs.events)
}

func TestConsoleObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := NewConsoleObserver(&buf)

	obs.OnStepStart(context.Background(), steps.Step{Name: "configure-firewall", Description: "Configure UFW"})
	obs.OnStepFinish(context.Background(), Entry{
		Name:     "configure-firewall",
		Outcome:  steps.OutcomeFailed,
		Policy:   steps.ContinueNext,
		Attempts: 3,
		Err:      errors.New("ufw: command not found"),
	})

	out := buf.String()
	assert.Contains(t, out, "Configure UFW")
	assert.Contains(t, out, "configure-firewall failed after 3 attempt(s): ufw: command not found")
	assert.Contains(t, out, "continuing with the next step")
}

func TestReport_RenderAndYAML(t *testing.T) {
	report := &RunReport{
		RunID: "run-1",
		Entries: []Entry{
			{Name: "update-packages", Outcome: steps.OutcomeSkipped},
			{Name: "install-packages", Outcome: steps.OutcomeSucceeded, Attempts: 1, Duration: 2 * time.Second},
			{Name: "configure-firewall", Outcome: steps.OutcomeFailed, Attempts: 3, Err: errors.New("ufw exited 1")},
		},
		Aborted:   true,
		AbortedAt: "configure-firewall",
	}

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf))
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "STEP"))
	assert.Contains(t, out, "already completed")
	assert.Contains(t, out, "after 3 attempt(s), policy halt: ufw exited 1")
	assert.Contains(t, out, `1 succeeded, 1 skipped, 1 failed; aborted at "configure-firewall"`)

	buf.Reset()
	require.NoError(t, report.WriteYAML(&buf))
	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, true, decoded["aborted"])
	assert.Equal(t, 1, decoded["exit_code"])
	stepsOut, ok := decoded["steps"].([]interface{})
	require.True(t, ok)
	require.Len(t, stepsOut, 3)
	last := stepsOut[2].(map[string]interface{})
	assert.Equal(t, "failed", last["outcome"])
	assert.Equal(t, "ufw exited 1", last["error"])
}
