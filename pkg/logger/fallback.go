/* pkg/logger/fallback.go */

package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls Initialize. Zero values give the defaults used by the CLI.
type Options struct {
	// Level overrides LOG_LEVEL when non-empty.
	Level string
	// LogPath forces the JSON log file location; otherwise the platform paths are tried.
	LogPath string
	// Quiet drops console output below warn.
	Quiet bool
}

// NewFallbackLogger logs to stderr only.
func NewFallbackLogger() *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()),
		zapcore.Lock(os.Stderr),
		ParseLogLevel(os.Getenv("LOG_LEVEL")),
	)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
}

// InitializeWithFallback sets up console + file logging with default options.
func InitializeWithFallback() {
	Initialize(Options{})
}

// Initialize tees a human console encoder on stderr with a JSON encoder on
// the first writable log file. If no file is writable it logs to stderr only.
func Initialize(opts Options) {
	levelName := opts.Level
	if levelName == "" {
		levelName = os.Getenv("LOG_LEVEL")
	}
	level := ParseLogLevel(levelName)

	consoleLevel := level
	if opts.Quiet && consoleLevel < zapcore.WarnLevel {
		consoleLevel = zapcore.WarnLevel
	}
	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()),
		zapcore.Lock(os.Stderr),
		consoleLevel,
	)

	var (
		path   = opts.LogPath
		writer zapcore.WriteSyncer
		err    error
	)
	if path != "" {
		writer, err = GetLogFileWriter(path)
	} else {
		path, writer, err = FindWritableLogPath()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "⚠️  No writable log path found. Logging to console only:", err)
		Set(zap.New(console, zap.AddStacktrace(zapcore.ErrorLevel)))
		return
	}

	jsonCfg := zap.NewProductionEncoderConfig()
	jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewTee(
		console,
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), writer, level),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	Set(l)
	l.Debug("Logger initialized",
		zap.String("log_level", level.String()),
		zap.String("log_path", path))
}
