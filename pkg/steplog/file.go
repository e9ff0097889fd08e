// pkg/steplog/file.go

package steplog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// FileStepLog stores one step name per line. Every query re-reads the file and
// every append reopens it, so an operator replacing or editing the file mid-run
// is honoured on the next lookup and never loses a later record.
type FileStepLog struct {
	path string

	mu     sync.Mutex
	closed bool
	lock   *fileLock
}

var _ StepLog = (*FileStepLog)(nil)

// OpenFile opens (creating if absent) the step log at path and takes an
// exclusive advisory lock next to it.
func OpenFile(path string) (*FileStepLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), shared.RuntimeDirPerms); err != nil {
		return nil, hestia_err.IO(err, "create step log directory")
	}

	lock, err := acquireLock(path + ".lock")
	if err != nil {
		if cerr.Is(err, ErrLocked) {
			return nil, hestia_err.NewExpectedError(cerr.Wrapf(err, "%s", path))
		}
		return nil, hestia_err.IO(err, "lock step log")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, shared.FilePermOwnerReadWrite)
	if err != nil {
		_ = lock.release()
		return nil, hestia_err.IO(err, "open step log")
	}
	if err := f.Close(); err != nil {
		_ = lock.release()
		return nil, hestia_err.IO(err, "open step log")
	}

	return &FileStepLog{path: path, lock: lock}, nil
}

// Path returns the file backing this log.
func (l *FileStepLog) Path() string {
	return l.path
}

func (l *FileStepLog) IsCompleted(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	names, _, err := l.read()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (l *FileStepLog) Completed(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	names, _, err := l.read()
	if err != nil {
		return nil, err
	}
	return dedupe(names), nil
}

func (l *FileStepLog) MarkCompleted(ctx context.Context, name string) error {
	if strings.ContainsAny(name, "\r\n") || strings.TrimSpace(name) == "" {
		return hestia_err.NewValidationError("step name must be non-empty and on a single line")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	names, terminated, err := l.read()
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}

	// One write call per record keeps the line intact for anyone tailing the file.
	record := name + "\n"
	if !terminated {
		record = "\n" + record
	}
	if err := l.append(record); err != nil {
		return err
	}

	otelzap.Ctx(ctx).Debug("Step recorded as completed",
		zap.String("step", name),
		zap.String("log", l.path))
	return nil
}

func (l *FileStepLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.lock.release(); err != nil {
		return hestia_err.IO(err, "close step log")
	}
	return nil
}

// append opens the path as it is now, not the inode seen at OpenFile, writes
// record in one call and syncs before returning.
func (l *FileStepLog) append(record string) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, shared.FilePermOwnerReadWrite)
	if err != nil {
		return hestia_err.IO(err, "open step log")
	}
	if _, err := f.WriteString(record); err != nil {
		_ = f.Close()
		return hestia_err.IO(err, "append step log")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return hestia_err.IO(err, "sync step log")
	}
	if err := f.Close(); err != nil {
		return hestia_err.IO(err, "close step log")
	}
	return nil
}

// read returns the names in the file and whether it ends in a newline (or is empty).
func (l *FileStepLog) read() ([]string, bool, error) {
	if l.closed {
		return nil, false, hestia_err.IO(ErrClosed, "read step log")
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, false, hestia_err.IO(err, "read step log")
	}
	terminated := len(data) == 0 || data[len(data)-1] == '\n'
	return parseLines(string(data)), terminated, nil
}

// parseLines splits a step log body, ignoring blank lines and stray whitespace.
// A final line without a newline still counts; operators edit this file by hand.
func parseLines(body string) []string {
	var names []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
