// pkg/steplog/forget.go

package steplog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	cerr "github.com/cockroachdb/errors"
)

// Forget removes the named steps from the step log file at path so the next
// run executes them again. It is an operator action, the equivalent of deleting
// the lines by hand, and refuses to run while a provisioning run holds the log.
// It returns the names that were actually removed.
func Forget(path string, names ...string) ([]string, error) {
	lock, err := acquireLock(path + ".lock")
	if err != nil {
		if cerr.Is(err, ErrLocked) {
			return nil, hestia_err.NewExpectedError(cerr.Wrapf(err, "%s", path))
		}
		return nil, hestia_err.IO(err, "lock step log")
	}
	defer func() { _ = lock.release() }()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, hestia_err.IO(err, "read step log")
	}

	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	var kept []string
	var removed []string
	for _, n := range dedupe(parseLines(string(data))) {
		if drop[n] {
			removed = append(removed, n)
			continue
		}
		kept = append(kept, n)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	body := ""
	if len(kept) > 0 {
		body = strings.Join(kept, "\n") + "\n"
	}
	if err := writeAtomic(path, []byte(body)); err != nil {
		return nil, err
	}
	return removed, nil
}

// ForgetAll empties the step log file at path.
func ForgetAll(path string) error {
	lock, err := acquireLock(path + ".lock")
	if err != nil {
		if cerr.Is(err, ErrLocked) {
			return hestia_err.NewExpectedError(cerr.Wrapf(err, "%s", path))
		}
		return hestia_err.IO(err, "lock step log")
	}
	defer func() { _ = lock.release() }()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return writeAtomic(path, nil)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return hestia_err.IO(err, "rewrite step log")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return hestia_err.IO(err, "rewrite step log")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return hestia_err.IO(err, "rewrite step log")
	}
	if err := tmp.Close(); err != nil {
		return hestia_err.IO(err, "rewrite step log")
	}
	if err := os.Chmod(tmp.Name(), shared.FilePermOwnerReadWrite); err != nil {
		return hestia_err.IO(err, "rewrite step log")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return hestia_err.IO(err, "rewrite step log")
	}
	return nil
}
