// pkg/hestia_cli/wrap.go

package hestia_cli

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Wrap ensures panic recovery, telemetry and logging around a command body.
// The runtime context inherits cmd.Context(), so a signal handler installed
// by the caller reaches every step.
func Wrap(fn func(rc *hestia_io.RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}

		rc := hestia_io.NewContext(parent, cmd.Name())
		defer rc.End(&err)

		// Panic recovery
		defer func() {
			if r := recover(); r != nil {
				err = cerr.AssertionFailedf("panic: %v", r)
				rc.Log.Error("Panic recovered", zap.Any("panic", r))
			}
		}()

		hestia_io.LogRuntimeExecutionContext(rc)

		err = fn(rc, cmd, args)
		if err != nil && !hestia_err.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}
