/* cmd/root.go */

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_cli"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_io"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/telemetry"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/xdg"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Global flags shared by every subcommand.
var globalFlags struct {
	configPath string
	stateDir   string
	logLevel   string
	quiet      bool
}

var helpLogged bool // global guard to log help only once

// signals is set by Execute; provision registers log cleanup with it.
var signals *hestia_cli.SignalHandler

// RootCmd is the base command for hestia.
var RootCmd = &cobra.Command{
	Use:   "hestia",
	Short: "Idempotent, resumable provisioning for a single Ubuntu server",
	Long: `Hestia provisions one Ubuntu server as an ordered list of named steps:
packages, firewall, SSH key, PostgreSQL, nginx, TLS, the application service
and backups.

Every step that succeeds is recorded in the step log. Running hestia again
skips recorded steps, so a failed run is resumed by simply running it again.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Initialize(logger.Options{
			Level: globalFlags.logLevel,
			Quiet: globalFlags.quiet,
		})
		if err := telemetry.Init(shared.HestiaID, xdg.XDGStatePath(shared.HestiaID, "")); err != nil {
			logger.L().Warn("Telemetry disabled", zap.Error(err))
		}
		return nil
	},
	RunE: hestia_cli.Wrap(func(rc *hestia_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "⚠️  No subcommand provided. Try `hestia help`.")
		return cmd.Help()
	}),
}

// HelpCmd wraps help so that it can be invoked like a normal command.
var HelpCmd = &cobra.Command{
	Use:   "help",
	Short: "Help about any command",
	Long:  "Displays help for hestia or a specific subcommand.",
	RunE: hestia_cli.Wrap(func(rc *hestia_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return RootCmd.Help()
		}
		c, _, err := RootCmd.Find(args)
		if err != nil || c == nil {
			return hestia_err.NewExpectedError(fmt.Errorf("command not found: %s", strings.Join(args, " ")))
		}
		return c.Help()
	}),
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVarP(&globalFlags.configPath, "config", "c", "",
		"config file (default: "+shared.DefaultConfigPath+", then $XDG_CONFIG_HOME/hestia, then ./hestia.yaml)")
	pf.StringVar(&globalFlags.stateDir, "state-dir", "", "directory holding the step and error logs (overrides state.dir)")
	pf.StringVar(&globalFlags.logLevel, "log-level", "", "log level: debug, info, warn, error (default $LOG_LEVEL or info)")
	pf.BoolVarP(&globalFlags.quiet, "quiet", "q", false, "only print warnings and errors to the console log")

	RootCmd.SetHelpCommand(HelpCmd)
	RootCmd.AddCommand(
		ProvisionCmd,
		StatusCmd,
		ResetCmd,
		ConfigCmd,
		TelemetryCmd,
		VersionCmd,
	)
}

// RegisterHelp logs the first help request.
func RegisterHelp() {
	RootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if !helpLogged {
			logger.L().Debug("Help requested", zap.String("command", cmd.Name()))
			helpLogged = true
		}
		if err := cmd.Usage(); err != nil {
			logger.L().Warn("Failed to print usage", zap.Error(err))
		}
	})
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Failed to flush logs: %v\n", err)
		}
	}()

	signals = hestia_cli.NewSignalHandler(context.Background())
	defer signals.Stop()

	RegisterHelp()
	err := RootCmd.ExecuteContext(signals.Context())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := telemetry.Shutdown(shutdownCtx); serr != nil {
		logger.L().Warn("Failed to flush telemetry", zap.Error(serr))
	}

	if err == nil {
		return 0
	}
	if hestia_err.IsExpectedUserError(err) {
		logger.L().Warn("hestia finished with a user error", zap.Error(err))
	} else {
		logger.L().Error("hestia execution error", zap.Error(err))
	}
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	return hestia_err.GetExitCode(err)
}
