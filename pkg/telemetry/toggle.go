// pkg/telemetry/toggle.go

package telemetry

import (
	"os"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
)

const fileName = "telemetry.jsonl"

func markerPath() string {
	return filepath.Join(os.Getenv("HOME"), ".hestia", "telemetry_on")
}

// FilePath is where spans are written for stateDir.
func FilePath(stateDir string) string {
	return filepath.Join(stateDir, fileName)
}

// Enable opts this user in. HESTIA_TELEMETRY still wins when set.
func Enable() error {
	path := markerPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return cerr.Wrap(err, "create telemetry config directory")
	}
	if err := os.WriteFile(path, []byte("on\n"), 0600); err != nil {
		return cerr.Wrap(err, "enable telemetry")
	}
	return nil
}

// Disable removes the opt-in marker.
func Disable() error {
	if err := os.Remove(markerPath()); err != nil && !os.IsNotExist(err) {
		return cerr.Wrap(err, "disable telemetry")
	}
	return nil
}
