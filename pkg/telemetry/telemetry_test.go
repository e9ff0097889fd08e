package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_BeforeInit(t *testing.T) {
	ctx, span := Start(context.Background(), "no-init")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestInit_Disabled(t *testing.T) {
	t.Setenv("HESTIA_TELEMETRY", "0")
	dir := t.TempDir()

	require.NoError(t, Init("hestia-test", dir))
	_, span := Start(context.Background(), "disabled")
	span.End()
	require.NoError(t, Shutdown(context.Background()))

	_, err := os.Stat(filepath.Join(dir, "telemetry.jsonl"))
	assert.True(t, os.IsNotExist(err))
}

func TestInit_EnabledWritesSpans(t *testing.T) {
	t.Setenv("HESTIA_TELEMETRY", "1")
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	require.NoError(t, Init("hestia-test", dir))
	_, span := Start(context.Background(), "enabled-span")
	span.End()
	require.NoError(t, Shutdown(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "enabled-span")

	// Reset to a noop provider for other tests.
	t.Setenv("HESTIA_TELEMETRY", "0")
	require.NoError(t, Init("hestia-test", dir))
}

func TestInstallID_Stable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	first := InstallID()
	assert.Contains(t, first, "anon-")
	assert.Equal(t, first, InstallID())
}

func TestEnableDisable(t *testing.T) {
	t.Setenv("HESTIA_TELEMETRY", "")
	t.Setenv("HOME", t.TempDir())

	assert.False(t, IsEnabled())
	require.NoError(t, Enable())
	assert.True(t, IsEnabled())

	t.Setenv("HESTIA_TELEMETRY", "off")
	assert.False(t, IsEnabled(), "environment overrides the marker")
	t.Setenv("HESTIA_TELEMETRY", "")

	require.NoError(t, Disable())
	require.NoError(t, Disable())
	assert.False(t, IsEnabled())
}

func TestFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/var/lib/hestia", "telemetry.jsonl"), FilePath("/var/lib/hestia"))
}
