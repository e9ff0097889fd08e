// pkg/logger/writer.go

package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	"go.uber.org/zap/zapcore"
)

// GetLogFileWriter opens path for appending, creating it and its directory.
func GetLogFileWriter(path string) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(path), shared.FilePermOwnerRWX); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, shared.FilePermOwnerReadWrite)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.AddSync(file), nil
}

// FindWritableLogPath returns the first usable platform log path and its writer.
func FindWritableLogPath() (string, zapcore.WriteSyncer, error) {
	var lastErr error
	for _, path := range PlatformLogPaths() {
		w, err := GetLogFileWriter(path)
		if err == nil {
			return path, w, nil
		}
		lastErr = err
	}
	return "", nil, fmt.Errorf("no writable log path found: %w", lastErr)
}
