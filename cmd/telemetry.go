// cmd/telemetry.go

package cmd

import (
	"fmt"
	"os"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_cli"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_io"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/telemetry"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/xdg"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// TelemetryCmd toggles local span collection.
var TelemetryCmd = &cobra.Command{
	Use:   "telemetry [on|off|status]",
	Short: "Manage local telemetry collection",
	Long: `Manage local telemetry for hestia commands.

Spans are stored locally in JSONL format and never sent anywhere.
HESTIA_TELEMETRY=1 or 0 overrides this setting.

Commands:
  on     - Enable telemetry collection
  off    - Disable telemetry collection
  status - Show telemetry status and where spans are written`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "status"},
	RunE:      hestia_cli.Wrap(runTelemetry),
}

func runTelemetry(rc *hestia_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	log := otelzap.Ctx(rc.Ctx)
	out := cmd.OutOrStdout()
	path := telemetry.FilePath(xdg.XDGStatePath(shared.HestiaID, ""))

	switch args[0] {
	case "on":
		if err := telemetry.Enable(); err != nil {
			return err
		}
		log.Info("Telemetry enabled", zap.String("file_path", path))
		fmt.Fprintf(out, "✅ Telemetry enabled; spans are written to %s\n", path)
	case "off":
		if err := telemetry.Disable(); err != nil {
			return err
		}
		log.Info("Telemetry disabled")
		fmt.Fprintln(out, "✅ Telemetry disabled")
	case "status":
		state := "disabled"
		if telemetry.IsEnabled() {
			state = "enabled"
		}
		fmt.Fprintf(out, "Telemetry: %s\nFile: %s\n", state, path)
		if info, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "Size: %d bytes\n", info.Size())
			fmt.Fprintf(out, "Run spans: jq -r 'select(.Name==\"runner.Run\") | .Attributes' %s\n", path)
		}
	default:
		return hestia_err.NewValidationError("usage: hestia telemetry [on|off|status]")
	}
	return nil
}
