// cmd/config.go

package cmd

import (
	"fmt"
	"os"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/config"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_cli"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_io"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/server"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var configInitFlags struct {
	force bool
}

// ConfigCmd groups config file operations.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and check the hestia config file",
}

// ConfigInitCmd asks for every value a run needs and writes the config file.
var ConfigInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create the config file",
	Long: `Ask for the domain, database, application service, TLS and backup
settings and write them to the config file (--config, default ` + shared.DefaultConfigPath + `).
The file holds secrets and is written with mode 0600.`,
	Args: cobra.NoArgs,
	RunE: hestia_cli.Wrap(runConfigInit),
}

// ConfigValidateCmd loads and validates the config file.
var ConfigValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file and list the steps it registers",
	Args:  cobra.NoArgs,
	RunE:  hestia_cli.Wrap(runConfigValidate),
}

func init() {
	ConfigInitCmd.Flags().BoolVarP(&configInitFlags.force, "force", "f", false, "overwrite an existing config file")
	ConfigCmd.AddCommand(ConfigInitCmd, ConfigValidateCmd)
}

func runConfigInit(rc *hestia_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)
	out := cmd.OutOrStdout()

	path := globalFlags.configPath
	if path == "" {
		path = shared.DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil && !configInitFlags.force {
		return hestia_err.NewExpectedError(cerr.WithHint(
			cerr.Newf("%s already exists", path),
			"Pass --force to replace it"))
	}

	cfg := config.Default()
	if globalFlags.stateDir != "" {
		cfg.State.Dir = globalFlags.stateDir
	}
	if err := config.Wizard(interaction.New(cmd.InOrStdin(), out), cfg); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}

	logger.Info("Config written", zap.String("path", path))
	fmt.Fprintf(out, "\n✅ Config written to %s\n   Next: sudo hestia provision --config %s\n", path, path)
	return nil
}

func runConfigValidate(rc *hestia_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	list, err := server.Build(rc.Ctx, cfg, server.Deps{})
	if err != nil {
		return err
	}

	source := cfg.Source()
	if source == "" {
		source = "defaults and environment"
	}
	fmt.Fprintf(out, "✅ %s is valid; %d steps registered:\n", source, len(list))
	for _, s := range list {
		fmt.Fprintf(out, "  %-20s retries=%d delay=%s on_failure=%s\n", s.Name, s.Retries, s.RetryDelay, s.OnFailure)
	}
	return nil
}
