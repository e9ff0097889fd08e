// pkg/runner/report.go

package runner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steps"
	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/go-multierror"
)

var (
	styleSucceeded = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff00"))
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")).Bold(true)
	styleSkipped   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	stylePending   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0099ff"))
)

// Entry is the outcome of one visited step.
type Entry struct {
	Name     string
	Outcome  steps.Outcome
	Policy   steps.FailurePolicy
	Attempts int
	Duration time.Duration
	Err      error
}

// RunReport lists every step a run visited, in order. Steps after a halt are
// absent.
type RunReport struct {
	RunID      string
	Entries    []Entry
	Aborted    bool
	AbortedAt  string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *RunReport) abort(step string) {
	r.Aborted = true
	r.AbortedAt = step
}

// Failed returns the failed entries in run order.
func (r *RunReport) Failed() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Outcome == steps.OutcomeFailed {
			out = append(out, e)
		}
	}
	return out
}

// Succeeded is true when nothing failed and the run was not aborted.
func (r *RunReport) Succeeded() bool {
	return !r.Aborted && len(r.Failed()) == 0
}

// Err combines every step failure, or nil.
func (r *RunReport) Err() error {
	var result *multierror.Error
	for _, e := range r.Failed() {
		result = multierror.Append(result, fmt.Errorf("%s: %w", e.Name, e.Err))
	}
	return result.ErrorOrNil()
}

// ExitCode is 0 for a clean run and 1 otherwise.
func (r *RunReport) ExitCode() int {
	if r.Succeeded() {
		return 0
	}
	return 1
}

// Outcome returns the recorded outcome for name, or OutcomePending if the
// run never reached it.
func (r *RunReport) Outcome(name string) steps.Outcome {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Outcome
		}
	}
	return steps.OutcomePending
}

// Render writes one line per visited step followed by a summary line.
func (r *RunReport) Render(w io.Writer) error {
	width := len("STEP")
	for _, e := range r.Entries {
		if len(e.Name) > width {
			width = len(e.Name)
		}
	}
	col := lipgloss.NewStyle().Width(width + 2)
	outcomeCol := lipgloss.NewStyle().Width(len("succeeded") + 2)

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s%s\n", col.Render("STEP"), outcomeCol.Render("OUTCOME"), "DETAIL")
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%s%s%s\n",
			col.Render(e.Name),
			outcomeCol.Render(styleFor(e.Outcome).Render(e.Outcome.String())),
			detail(e))
	}
	b.WriteString("\n")
	b.WriteString(r.summary())
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *RunReport) summary() string {
	var ok, skipped, failed, pending int
	for _, e := range r.Entries {
		switch e.Outcome {
		case steps.OutcomeSucceeded:
			ok++
		case steps.OutcomeSkipped:
			skipped++
		case steps.OutcomeFailed:
			failed++
		case steps.OutcomePending:
			pending++
		}
	}
	s := fmt.Sprintf("%d succeeded, %d skipped, %d failed", ok, skipped, failed)
	if r.DryRun {
		s = fmt.Sprintf("dry run: %d would run, %d skipped", pending, skipped)
	}
	if r.Aborted {
		s += fmt.Sprintf("; aborted at %q", r.AbortedAt)
	}
	return s
}

func detail(e Entry) string {
	switch e.Outcome {
	case steps.OutcomeFailed:
		msg := ""
		if e.Err != nil {
			msg = hestia_err.ExtractSummary(e.Err.Error(), 1)
		}
		if e.Attempts > 0 {
			return fmt.Sprintf("after %d attempt(s), policy %s: %s", e.Attempts, e.Policy, msg)
		}
		return msg
	case steps.OutcomeSucceeded:
		return fmt.Sprintf("%d attempt(s) in %s", e.Attempts, e.Duration.Round(time.Millisecond))
	case steps.OutcomeSkipped:
		return "already completed"
	case steps.OutcomePending:
		return "would run"
	}
	return ""
}

func styleFor(o steps.Outcome) lipgloss.Style {
	switch o {
	case steps.OutcomeSucceeded:
		return styleSucceeded
	case steps.OutcomeFailed:
		return styleFailed
	case steps.OutcomeSkipped:
		return styleSkipped
	default:
		return stylePending
	}
}
