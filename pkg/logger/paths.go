/* pkg/logger/paths.go */

package logger

import (
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/xdg"
)

// PlatformLogPaths returns log paths in order of preference.
func PlatformLogPaths() []string {
	return []string{
		shared.HestiaLogs, // best if writable (running as root)
		xdg.XDGStatePath(shared.HestiaID, "hestia.log"),
		shared.HestiaLogsPWD,
	}
}
