// cmd/reset.go

package cmd

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/config"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_cli"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_io"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/server"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steplog"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var resetFlags struct {
	all bool
	yes bool
}

// ResetCmd removes steps from the step log so the next run repeats them.
var ResetCmd = &cobra.Command{
	Use:   "reset <step>... | --all",
	Short: "Forget completed steps so the next run executes them again",
	Long: `Remove steps from the step log. This is the same as deleting their lines
from the log by hand. It does not undo anything the steps did on the host.

Examples:
  # Re-run nginx configuration on the next provision
  sudo hestia reset configure-nginx

  # Start over
  sudo hestia reset --all --yes`,
	RunE: hestia_cli.Wrap(runReset),
}

func init() {
	ResetCmd.Flags().BoolVar(&resetFlags.all, "all", false, "forget every step")
	ResetCmd.Flags().BoolVarP(&resetFlags.yes, "yes", "y", false, "do not ask for confirmation with --all")
}

func runReset(rc *hestia_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)
	out := cmd.OutOrStdout()

	// ASSESS
	if resetFlags.all == (len(args) > 0) {
		return hestia_err.NewValidationError("name one or more steps, or pass --all",
			"hestia reset configure-nginx", "hestia reset --all")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if resetFlags.all && !resetFlags.yes {
		ok, err := interaction.New(cmd.InOrStdin(), out).YesNo("Forget every completed step?", false)
		if err != nil {
			return err
		}
		if !ok {
			return hestia_err.NewUserCancelledError("reset")
		}
	}

	registered := make(map[string]bool)
	for _, s := range server.Registry(cfg, server.Deps{}) {
		registered[s.Name] = true
	}
	for _, name := range args {
		if !registered[name] {
			logger.Warn("Step is not registered for this config; removing it anyway", zap.String("step", name))
		}
	}

	// INTERVENE
	if resetFlags.all {
		if err := forgetAll(rc, cfg); err != nil {
			return err
		}
		fmt.Fprintln(out, "✅ Step log cleared; the next run starts from the first step")
		logger.Info("Step log cleared", zap.String("backend", cfg.State.Backend))
		return nil
	}

	removed, err := forget(rc, cfg, args)
	if err != nil {
		return err
	}

	// EVALUATE
	if len(removed) == 0 {
		fmt.Fprintln(out, "Nothing to reset; none of those steps are recorded")
		return nil
	}
	for _, name := range removed {
		fmt.Fprintf(out, "✅ %s will run again\n", name)
	}
	logger.Info("Steps forgotten", zap.Strings("steps", removed))
	return nil
}

func forget(rc *hestia_io.RuntimeContext, cfg *config.Config, names []string) ([]string, error) {
	if cfg.State.Backend == backendPostgres {
		pg, err := steplog.OpenPostgres(rc.Ctx, cfg.State.DSN)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		return pg.Forget(rc.Ctx, names...)
	}
	return steplog.Forget(stepLogPath(cfg), names...)
}

func forgetAll(rc *hestia_io.RuntimeContext, cfg *config.Config) error {
	if cfg.State.Backend == backendPostgres {
		pg, err := steplog.OpenPostgres(rc.Ctx, cfg.State.DSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		return pg.ForgetAll(rc.Ctx)
	}
	return steplog.ForgetAll(stepLogPath(cfg))
}
