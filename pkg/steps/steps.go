// Package steps defines the unit of provisioning work and its outcomes.
package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	cerr "github.com/cockroachdb/errors"
)

// DefaultRetries is used when a step does not set Retries.
const DefaultRetries = 3

// Body is the opaque action a step performs. A nil error is success.
// Bodies must be safe to re-run: a step interrupted mid-attempt runs in full
// on the next invocation.
type Body func(ctx context.Context) error

// Step is a named unit of provisioning work.
type Step struct {
	// Name is unique within a run and is the key in the step log.
	Name        string
	Description string
	Body        Body
	// Retries is the maximum number of attempts. Zero or negative means DefaultRetries.
	Retries    int
	RetryDelay time.Duration
	OnFailure  FailurePolicy
}

// Attempts returns the effective attempt bound.
func (s Step) Attempts() int {
	if s.Retries <= 0 {
		return DefaultRetries
	}
	return s.Retries
}

// FailurePolicy decides what a failed step does to the rest of the run.
type FailurePolicy string

const (
	// Halt stops the entire run. It is the zero value.
	Halt FailurePolicy = ""
	// ContinueNext records the failure and moves on.
	ContinueNext FailurePolicy = "continue"
)

func (p FailurePolicy) String() string {
	if p == Halt {
		return "halt"
	}
	return string(p)
}

// ParseFailurePolicy accepts "halt", "continue" and "continue-next".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "halt":
		return Halt, nil
	case "continue", "continue-next", "continue_next":
		return ContinueNext, nil
	default:
		return Halt, hestia_err.NewValidationError(
			fmt.Sprintf("unknown failure policy %q", s),
			`Use "halt" or "continue"`,
		)
	}
}

// Outcome is the final state of a step as seen by a run report.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

func (o Outcome) String() string {
	return string(o)
}

// ExecutionResult is what the executor reports for one step.
type ExecutionResult struct {
	Success      bool
	LastError    error
	AttemptsUsed int
	Duration     time.Duration
}

// Validate checks that names are usable as step log keys.
func Validate(list []Step) error {
	seen := make(map[string]struct{}, len(list))
	for i, s := range list {
		if strings.TrimSpace(s.Name) == "" {
			return hestia_err.NewValidationError(fmt.Sprintf("step #%d has an empty name", i+1))
		}
		if strings.ContainsAny(s.Name, "\r\n") {
			return hestia_err.NewValidationError(
				fmt.Sprintf("step name %q contains a newline", s.Name),
				"Step names are stored one per line in the step log",
			)
		}
		if s.Name != strings.TrimSpace(s.Name) {
			return hestia_err.NewValidationError(fmt.Sprintf("step name %q has surrounding whitespace", s.Name))
		}
		if _, dup := seen[s.Name]; dup {
			return hestia_err.NewValidationError(fmt.Sprintf("duplicate step name %q", s.Name))
		}
		if s.Body == nil {
			return cerr.AssertionFailedf("step %q has no body", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
