// cmd/provision.go

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/executor"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_cli"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_io"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/runner"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/server"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	outputText = "text"
	outputYAML = "yaml"
)

var provisionFlags struct {
	dryRun bool
	output string
}

// ProvisionCmd runs every registered step that has not completed yet.
var ProvisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision this server, resuming from the first unfinished step",
	Long: `Run the provisioning steps in order. Steps already recorded in the step
log are skipped. A failing step is retried per its policy; if it still fails
the run either stops (halt) or moves on (continue), depending on the step.

Examples:
  # Provision using /etc/hestia/hestia.yaml
  sudo hestia provision

  # Show what would run without changing anything
  hestia provision --dry-run

  # Machine-readable report
  sudo hestia provision --output yaml > report.yaml`,
	Args: cobra.NoArgs,
	RunE: hestia_cli.Wrap(runProvision),
}

func init() {
	ProvisionCmd.Flags().BoolVar(&provisionFlags.dryRun, "dry-run", false, "report which steps would run without running them")
	ProvisionCmd.Flags().StringVarP(&provisionFlags.output, "output", "o", outputText, "report format: text or yaml")
}

func runProvision(rc *hestia_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)
	out := cmd.OutOrStdout()

	// ASSESS
	if provisionFlags.output != outputText && provisionFlags.output != outputYAML {
		return hestia_err.NewValidationError("--output must be text or yaml")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !provisionFlags.dryRun && os.Geteuid() != 0 {
		logger.Warn("Not running as root; most steps will fail with permission errors")
	}

	list, err := server.Build(rc.Ctx, cfg, server.Deps{})
	if err != nil {
		return err
	}

	stepLog, errorLog, err := openLogs(rc.Ctx, cfg, provisionFlags.dryRun)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stepLog.Close(); closeErr != nil {
			logger.Warn("Failed to close step log", zap.Error(closeErr))
		}
		if closeErr := errorLog.Close(); closeErr != nil {
			logger.Warn("Failed to close error log", zap.Error(closeErr))
		}
	}()
	if signals != nil {
		signals.RegisterCleanup(stepLog.Close)
		signals.RegisterCleanup(errorLog.Close)
	}

	logger.Info("Starting provisioning run",
		zap.String("config", cfg.Source()),
		zap.String("state_dir", cfg.State.Dir),
		zap.String("backend", cfg.State.Backend),
		zap.Int("steps", len(list)),
		zap.Bool("dry_run", provisionFlags.dryRun))

	// INTERVENE
	var progress io.Writer = out
	if provisionFlags.output == outputYAML {
		progress = cmd.ErrOrStderr()
	}
	r := runner.New(executor.New()).
		WithObserver(runner.NewConsoleObserver(progress)).
		WithDryRun(provisionFlags.dryRun)

	report, runErr := r.Run(rc.Ctx, list, stepLog, errorLog)
	if report != nil {
		rc.Attributes["run_id"] = report.RunID
		if err := writeReport(out, report); err != nil {
			return err
		}
	}

	// EVALUATE
	if runErr != nil {
		if cerr.Is(runErr, context.Canceled) {
			return hestia_err.NewUserCancelledError("provision")
		}
		return runErr
	}
	if !report.Succeeded() {
		failure := report.Err()
		if failure == nil {
			failure = cerr.Newf("run aborted at %q", report.AbortedAt)
		}
		return hestia_err.NewExpectedError(cerr.WithHint(
			cerr.Wrap(failure, "provisioning did not complete"),
			"Fix the cause and run 'hestia provision' again; completed steps are skipped"))
	}

	if provisionFlags.dryRun {
		logger.Info("Dry run complete; nothing was changed")
	} else {
		logger.Info("✅ Provisioning complete", zap.String("run_id", report.RunID))
	}
	return nil
}

func writeReport(w io.Writer, report *runner.RunReport) error {
	if provisionFlags.output == outputYAML {
		return report.WriteYAML(w)
	}
	return report.Render(w)
}
