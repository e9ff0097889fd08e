// cmd/status.go

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/backup/schedule"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/config"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_cli"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_io"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/server"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steplog"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steps"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var statusFlags struct {
	lines int
}

// StatusCmd shows which steps are recorded as completed.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show completed and pending steps and recent failures",
	Long: `List the registered steps in run order with their state in the step log,
followed by the last lines of the error log. Reads state only; never takes
the step log lock.`,
	Args: cobra.NoArgs,
	RunE: hestia_cli.Wrap(runStatus),
}

func init() {
	StatusCmd.Flags().IntVarP(&statusFlags.lines, "lines", "n", 10, "number of error log lines to show")
}

var (
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

func runStatus(rc *hestia_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	completed, err := completedSteps(rc.Ctx, cfg)
	if err != nil {
		return err
	}
	list := server.Registry(cfg, server.Deps{})
	logger.Debug("Read step log",
		zap.Int("registered", len(list)),
		zap.Int("completed", len(completed)))

	printSteps(out, list, completed)

	if cfg.Backup.Enabled {
		if next, err := schedule.NextRun(cfg.Backup.Schedule, time.Now()); err == nil {
			fmt.Fprintf(out, "\nNext backup: %s\n", next.Format(time.RFC1123))
		} else {
			logger.Warn("Cannot compute next backup time", zap.Error(err))
		}
	}

	return printErrorTail(out, cfg, statusFlags.lines)
}

func printSteps(w io.Writer, list []steps.Step, completed []string) {
	done := make(map[string]bool, len(completed))
	for _, n := range completed {
		done[n] = true
	}

	width := len("STEP")
	for _, s := range list {
		if len(s.Name) > width {
			width = len(s.Name)
		}
	}
	nameCol := lipgloss.NewStyle().Width(width + 2)

	fmt.Fprintln(w, headerStyle.Render(nameCol.Render("STEP")+"STATE"))
	pending := 0
	registered := make(map[string]bool, len(list))
	for _, s := range list {
		registered[s.Name] = true
		state := doneStyle.Render("completed")
		if !done[s.Name] {
			state = pendingStyle.Render(string(steps.OutcomePending))
			pending++
		}
		fmt.Fprintln(w, nameCol.Render(s.Name)+state)
	}

	for _, n := range completed {
		if !registered[n] {
			fmt.Fprintf(w, "⚠️  %q is recorded but not registered for this config\n", n)
		}
	}

	if pending == 0 {
		fmt.Fprintln(w, "\n✅ All steps completed")
	} else {
		fmt.Fprintf(w, "\n%d of %d steps pending\n", pending, len(list))
	}
}

func printErrorTail(w io.Writer, cfg *config.Config, n int) error {
	lines, err := steplog.ReadTail(errorLogPath(cfg), n)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nLast %d error log line(s) from %s:\n", len(lines), errorLogPath(cfg))
	for _, l := range lines {
		fmt.Fprintln(w, "  "+l)
	}
	return nil
}
