// pkg/telemetry/telemetry.go
package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	mu       sync.Mutex
	tracer   trace.Tracer
	shutdown func(context.Context) error
)

// Init configures OpenTelemetry; call this early in main(). When telemetry is
// off a noop provider is installed. When on, spans are written as JSON lines
// to <stateDir>/telemetry.jsonl.
func Init(service, stateDir string) error {
	mu.Lock()
	defer mu.Unlock()

	if !IsEnabled() {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		tracer = tp.Tracer(service)
		shutdown = nil
		return nil
	}

	if err := os.MkdirAll(stateDir, shared.RuntimeDirPerms); err != nil {
		return cerr.Wrap(err, "failed to create telemetry directory")
	}

	file, err := os.OpenFile(FilePath(stateDir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, shared.FilePermOwnerReadWrite)
	if err != nil {
		return cerr.Wrap(err, "failed to open telemetry file")
	}

	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(file),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		_ = file.Close()
		return cerr.Wrap(err, "failed to create file exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(
			sdkresource.NewWithAttributes(
				semconv.SchemaURL,
				attribute.String("service.name", service),
				attribute.String("service.version", shared.Version),
				attribute.String("host.name", hostname()),
				attribute.String("hestia.install_id", InstallID()),
			),
		),
	)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(service)
	shutdown = func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		return err
	}
	return nil
}

// Start a telemetry span with optional attributes. Safe to call before Init.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	mu.Lock()
	t := tracer
	mu.Unlock()
	if t == nil {
		t = otel.Tracer(shared.HestiaID)
	}
	return t.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown flushes pending spans. A no-op when telemetry is off.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	fn := shutdown
	shutdown = nil
	mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// IsEnabled reports whether the operator opted in, via HESTIA_TELEMETRY=1 or
// the ~/.hestia/telemetry_on marker file.
func IsEnabled() bool {
	switch os.Getenv("HESTIA_TELEMETRY") {
	case "1", "true", "on":
		return true
	case "0", "false", "off":
		return false
	}
	_, err := os.Stat(markerPath())
	return err == nil
}

// InstallID returns a stable anonymous identifier for this machine.
func InstallID() string {
	path := filepath.Join(os.Getenv("HOME"), ".hestia", "telemetry_id")

	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return string(data)
	}

	id := "anon-" + uuid.New().String()
	_ = os.MkdirAll(filepath.Dir(path), 0700)
	_ = os.WriteFile(path, []byte(id), 0600)

	return id
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
