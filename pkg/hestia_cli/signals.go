// pkg/hestia_cli/signals.go
//
// Signal handling for provisioning runs. The first Ctrl-C cancels the
// context so the runner stops before the next step and the step log stays
// consistent. A second one runs cleanup and exits.

package hestia_cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// CleanupFunc is a function that performs cleanup operations
type CleanupFunc func() error

// SignalHandler turns SIGINT and SIGTERM into context cancellation.
type SignalHandler struct {
	ctx    context.Context
	cancel context.CancelFunc
	out    io.Writer
	exit   func(int)

	mu           sync.Mutex
	cleanupFuncs []CleanupFunc
	interrupted  bool

	sigChan  chan os.Signal
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewSignalHandler starts listening for SIGINT and SIGTERM.
func NewSignalHandler(ctx context.Context) *SignalHandler {
	return newSignalHandler(ctx, os.Stderr, os.Exit)
}

func newSignalHandler(ctx context.Context, out io.Writer, exit func(int)) *SignalHandler {
	ctx, cancel := context.WithCancel(ctx)

	h := &SignalHandler{
		ctx:      ctx,
		cancel:   cancel,
		out:      out,
		exit:     exit,
		sigChan:  make(chan os.Signal, 2),
		doneChan: make(chan struct{}),
	}

	signal.Notify(h.sigChan, os.Interrupt, syscall.SIGTERM)
	go h.handleSignals()

	return h
}

// RegisterCleanup adds a function run before a forced exit.
// Cleanup functions are called in REVERSE order (LIFO)
func (h *SignalHandler) RegisterCleanup(cleanup CleanupFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanupFuncs = append(h.cleanupFuncs, cleanup)
}

// Context is cancelled by the first signal.
func (h *SignalHandler) Context() context.Context {
	return h.ctx
}

// Interrupted reports whether a signal cancelled the context.
func (h *SignalHandler) Interrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

func (h *SignalHandler) handleSignals() {
	logger := otelzap.Ctx(h.ctx)

	select {
	case sig := <-h.sigChan:
		logger.Info("Received signal, stopping after the current step",
			zap.String("signal", sig.String()))
		fmt.Fprintf(h.out, "\n⚠️  Received %v, stopping after the current step (press again to force)\n", sig)

		h.mu.Lock()
		h.interrupted = true
		h.mu.Unlock()
		h.cancel()
	case <-h.doneChan:
		return
	}

	select {
	case sig := <-h.sigChan:
		logger.Error("Received second signal, forcing exit",
			zap.String("signal", sig.String()))
		fmt.Fprintln(h.out, "\n⚠️  Received second interrupt, forcing exit!")

		if err := h.runCleanup(); err != nil {
			fmt.Fprintf(h.out, "Cleanup completed with errors: %v\n", err)
		}
		h.exit(130)
	case <-h.doneChan:
	}
}

// runCleanup executes all cleanup functions with a timeout
func (h *SignalHandler) runCleanup() error {
	logger := otelzap.Ctx(h.ctx)

	h.mu.Lock()
	funcs := append([]CleanupFunc(nil), h.cleanupFuncs...)
	h.mu.Unlock()

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var lastErr error
		for i := len(funcs) - 1; i >= 0; i-- {
			if err := funcs[i](); err != nil {
				logger.Warn("Cleanup function failed",
					zap.Int("index", i),
					zap.Error(err))
				lastErr = err
			}
		}
		done <- lastErr
	}()

	select {
	case err := <-done:
		return err
	case <-cleanupCtx.Done():
		logger.Error("Cleanup timed out after 5 seconds")
		return fmt.Errorf("cleanup timed out")
	}
}

// Stop detaches the handler from the process signals. Safe to call twice.
func (h *SignalHandler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.doneChan)
		h.cancel()
	})
}
