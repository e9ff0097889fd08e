// cmd/state.go

package cmd

import (
	"context"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/config"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steplog"
)

const (
	backendFile     = "file"
	backendPostgres = "postgres"
)

// loadConfig reads the config named by --config and applies --state-dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalFlags.configPath)
	if err != nil {
		return nil, err
	}
	if globalFlags.stateDir != "" {
		cfg.State.Dir = globalFlags.stateDir
	}
	return cfg, nil
}

func stepLogPath(cfg *config.Config) string {
	return filepath.Join(cfg.State.Dir, shared.StepLogFilename)
}

func errorLogPath(cfg *config.Config) string {
	return filepath.Join(cfg.State.Dir, shared.ErrorLogFilename)
}

// openLogs opens the step log for the configured backend and the error log.
// A dry run gets in-memory logs seeded from the real step log, so it writes
// nothing.
func openLogs(ctx context.Context, cfg *config.Config, dryRun bool) (steplog.StepLog, steplog.ErrorLog, error) {
	if dryRun {
		completed, err := completedSteps(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return steplog.NewMemory(completed...), &steplog.MemoryErrorLog{}, nil
	}

	var (
		stepLog steplog.StepLog
		err     error
	)
	switch cfg.State.Backend {
	case backendPostgres:
		stepLog, err = steplog.OpenPostgres(ctx, cfg.State.DSN)
	default:
		stepLog, err = steplog.OpenFile(stepLogPath(cfg))
	}
	if err != nil {
		return nil, nil, err
	}

	errorLog, err := steplog.OpenErrorLog(errorLogPath(cfg))
	if err != nil {
		_ = stepLog.Close()
		return nil, nil, err
	}
	return stepLog, errorLog, nil
}

// completedSteps reads the step log without taking its lock.
func completedSteps(ctx context.Context, cfg *config.Config) ([]string, error) {
	if cfg.State.Backend == backendPostgres {
		pg, err := steplog.OpenPostgres(ctx, cfg.State.DSN)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		return pg.Completed(ctx)
	}
	return steplog.Snapshot(stepLogPath(cfg))
}
