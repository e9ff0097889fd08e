package logger

import (
	"strings"
	"sync"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var (
	mu  sync.Mutex
	log *zap.Logger
)

// L returns the global logger, initializing the fallback logger on first use.
func L() *zap.Logger {
	mu.Lock()
	l := log
	mu.Unlock()
	if l == nil {
		InitializeWithFallback()
		mu.Lock()
		l = log
		mu.Unlock()
	}
	return l
}

// Set installs l as the global logger for zap.L(), otelzap.Ctx and L().
func Set(l *zap.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
	zap.ReplaceGlobals(l)
	otelzap.ReplaceGlobals(otelzap.New(l))
}

// Sync flushes any buffered log entries. Should be called before the application exits.
// The EINVAL/ENOTTY zap reports when stderr is a terminal or pipe is dropped.
func Sync() error {
	mu.Lock()
	l := log
	mu.Unlock()
	if l == nil {
		return nil
	}
	if err := l.Sync(); err != nil && !isSyncNoise(err) {
		return err
	}
	return nil
}

func isSyncNoise(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}
