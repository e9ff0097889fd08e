// pkg/steplog/memory.go

package steplog

import (
	"context"
	"os"
	"sync"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
)

// MemoryStepLog keeps completed names in memory. Dry runs seed one from the
// real log so nothing on disk changes.
type MemoryStepLog struct {
	mu     sync.Mutex
	names  []string
	closed bool
}

var _ StepLog = (*MemoryStepLog)(nil)

func NewMemory(names ...string) *MemoryStepLog {
	return &MemoryStepLog{names: dedupe(names)}
}

func (m *MemoryStepLog) IsCompleted(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, hestia_err.IO(ErrClosed, "read step log")
	}
	for _, n := range m.names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStepLog) MarkCompleted(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return hestia_err.IO(ErrClosed, "append step log")
	}
	for _, n := range m.names {
		if n == name {
			return nil
		}
	}
	m.names = append(m.names, name)
	return nil
}

func (m *MemoryStepLog) Completed(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, hestia_err.IO(ErrClosed, "read step log")
	}
	return append([]string(nil), m.names...), nil
}

func (m *MemoryStepLog) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// MemoryErrorLog collects failure records.
type MemoryErrorLog struct {
	mu      sync.Mutex
	Records []string
}

var _ ErrorLog = (*MemoryErrorLog)(nil)

func (m *MemoryErrorLog) Record(_ context.Context, step string, _ int, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, step+": "+flatten(err.Error()))
	return nil
}

func (m *MemoryErrorLog) Close() error { return nil }

// Snapshot reads the completed names from the step log file at path without
// locking or creating it. A missing file means nothing has completed.
func Snapshot(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, hestia_err.IO(err, "read step log")
	}
	return dedupe(parseLines(string(data))), nil
}
