// pkg/steplog/errorlog.go

package steplog

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
)

// FileErrorLog appends one human-readable line per failed step:
//
//	2025-06-01T10:04:05Z [configure-nginx] attempts=3 nginx -t failed | ...
type FileErrorLog struct {
	path string

	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

var _ ErrorLog = (*FileErrorLog)(nil)

// OpenErrorLog opens (creating if absent) the error log at path.
func OpenErrorLog(path string) (*FileErrorLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), shared.RuntimeDirPerms); err != nil {
		return nil, hestia_err.IO(err, "create error log directory")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, shared.FilePermOwnerReadWrite)
	if err != nil {
		return nil, hestia_err.IO(err, "open error log")
	}
	return &FileErrorLog{path: path, file: f, now: time.Now}, nil
}

// Path returns the file backing this log.
func (l *FileErrorLog) Path() string {
	return l.path
}

func (l *FileErrorLog) Record(ctx context.Context, step string, attempts int, err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return hestia_err.IO(ErrClosed, "append error log")
	}

	msg := "unknown error"
	if err != nil {
		msg = flatten(err.Error())
	}
	line := fmt.Sprintf("%s [%s] attempts=%d %s\n",
		l.now().UTC().Format(time.RFC3339), step, attempts, msg)

	if _, werr := l.file.WriteString(line); werr != nil {
		return hestia_err.IO(werr, "append error log")
	}
	if serr := l.file.Sync(); serr != nil {
		return hestia_err.IO(serr, "sync error log")
	}
	return nil
}

// Tail returns the last n lines of the log.
func (l *FileErrorLog) Tail(n int) ([]string, error) {
	return ReadTail(l.path, n)
}

func (l *FileErrorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return hestia_err.IO(err, "close error log")
	}
	return nil
}

// ReadTail returns up to the last n non-empty lines of the file at path.
// A missing file yields no lines.
func ReadTail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, hestia_err.IO(err, "read error log")
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, hestia_err.IO(err, "read error log")
	}
	return ring, nil
}

// flatten keeps one record per line; multi-line command output is joined with " | ".
func flatten(msg string) string {
	lines := strings.Split(strings.TrimSpace(msg), "\n")
	parts := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " | ")
}
