// pkg/execute/execute.go

// Package execute runs the external commands that step bodies are made of.
// Output is captured and logged; nothing is written to the terminal.
package execute

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single command. apt upgrades on a fresh host are
// the slowest thing we run.
const DefaultTimeout = 30 * time.Minute

// Options describes one command. There is no shell: Command is executed
// directly with Args.
type Options struct {
	Command string
	Args    []string
	Dir     string
	// Env entries are added to the current environment.
	Env     []string
	Stdin   string
	Timeout time.Duration
	// Capture returns combined output to the caller. Output is logged either way.
	Capture bool
}

// String renders the command line with shell quoting, for logs.
func (o Options) String() string {
	return CommandString(o.Command, o.Args...)
}

// Runner runs commands. Step bodies take a Runner so tests and dry runs can
// substitute one that does not touch the host.
type Runner interface {
	Run(ctx context.Context, opts Options) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// Run executes opts. A failure is classified: a missing binary or a
// permission error is fatal, anything else may be retried.
func (ExecRunner) Run(ctx context.Context, opts Options) (string, error) {
	logger := otelzap.Ctx(ctx)
	cmdStr := opts.String()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := telemetry.Start(ctx, "execute.Run",
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")))
	defer span.End()

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	if opts.Stdin != "" {
		cmd.Stdin = strings.NewReader(opts.Stdin)
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	logger.Debug("Executing command", zap.String("command", cmdStr))
	start := time.Now()
	err := cmd.Run()
	output := buf.String()

	if err != nil {
		summary := hestia_err.ExtractSummary(output, 2)
		span.RecordError(err)
		span.SetStatus(codes.Error, summary)
		logger.Warn("Command failed",
			zap.String("command", cmdStr),
			zap.Duration("duration", time.Since(start)),
			zap.String("summary", summary),
			zap.Error(err))
		if ctx.Err() == context.DeadlineExceeded {
			err = cerr.Wrapf(err, "timed out after %s", timeout)
		}
		return output, hestia_err.ClassifyCommandError(
			cerr.Wrapf(err, "%s: %s", cmdStr, summary), opts.Command)
	}

	logger.Debug("Command succeeded",
		zap.String("command", cmdStr),
		zap.Duration("duration", time.Since(start)),
		zap.Int("output_bytes", len(output)))

	if opts.Capture {
		return output, nil
	}
	return "", nil
}
