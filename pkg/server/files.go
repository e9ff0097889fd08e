// pkg/server/files.go

package server

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	cerr "github.com/cockroachdb/errors"
)

// writeFile replaces path with data unless it already holds exactly that.
// It reports whether the file changed. The write goes through a temp file
// and rename so a crash never leaves a half-written config behind.
func writeFile(path string, data []byte, perm os.FileMode) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		info, statErr := os.Stat(path)
		if statErr == nil && info.Mode().Perm() == perm {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, shared.DirPermStandard); err != nil {
		return false, fileError(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return false, fileError(err, "create temp file for %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, fileError(err, "write %s", path)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return false, fileError(err, "chmod %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, fileError(err, "sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		return false, fileError(err, "close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, fileError(err, "replace %s", path)
	}
	return true, nil
}

// ensureSymlink points link at target, replacing a link that points elsewhere.
func ensureSymlink(target, link string) (bool, error) {
	if current, err := os.Readlink(link); err == nil {
		if current == target {
			return false, nil
		}
		if err := os.Remove(link); err != nil {
			return false, fileError(err, "remove stale link %s", link)
		}
	} else if _, statErr := os.Lstat(link); statErr == nil {
		return false, hestia_err.Fatalf("%s exists and is not a symlink; move it aside", link)
	}

	if err := os.MkdirAll(filepath.Dir(link), shared.DirPermStandard); err != nil {
		return false, fileError(err, "create %s", filepath.Dir(link))
	}
	if err := os.Symlink(target, link); err != nil {
		return false, fileError(err, "link %s", link)
	}
	return true, nil
}

// fileError marks permission problems fatal and everything else transient.
func fileError(err error, format string, args ...interface{}) error {
	wrapped := cerr.Wrapf(err, format, args...)
	if os.IsPermission(err) {
		return hestia_err.Fatal(cerr.WithHint(wrapped, "Run hestia as root"))
	}
	return hestia_err.Transient(wrapped)
}
