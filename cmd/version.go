// cmd/version.go

package cmd

import (
	"fmt"
	"runtime"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_cli"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_io"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	"github.com/spf13/cobra"
)

// VersionCmd prints the build version.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hestia version",
	Args:  cobra.NoArgs,
	RunE: hestia_cli.Wrap(func(rc *hestia_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "hestia %s (%s, %s/%s)\n",
			shared.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	}),
}
