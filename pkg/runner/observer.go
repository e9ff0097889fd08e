// pkg/runner/observer.go

package runner

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steps"
)

// ConsoleObserver prints progress lines for an operator watching the run.
// Failures are printed as soon as they happen.
type ConsoleObserver struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleObserver writes progress to out.
func NewConsoleObserver(out io.Writer) *ConsoleObserver {
	return &ConsoleObserver{out: out}
}

func (c *ConsoleObserver) OnStepStart(_ context.Context, step steps.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	desc := step.Description
	if desc == "" {
		desc = step.Name
	}
	fmt.Fprintf(c.out, "▶ %s\n", desc)
}

func (c *ConsoleObserver) OnStepFinish(_ context.Context, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e.Outcome {
	case steps.OutcomeSucceeded:
		fmt.Fprintf(c.out, "✅ %s\n", e.Name)
	case steps.OutcomeSkipped:
		fmt.Fprintf(c.out, "⏭  %s (already completed)\n", e.Name)
	case steps.OutcomePending:
		fmt.Fprintf(c.out, "•  %s (would run)\n", e.Name)
	case steps.OutcomeFailed:
		fmt.Fprintf(c.out, "❌ %s failed after %d attempt(s): %v\n", e.Name, e.Attempts, e.Err)
		if e.Policy == steps.ContinueNext {
			fmt.Fprintf(c.out, "   continuing with the next step\n")
		}
	}
}
