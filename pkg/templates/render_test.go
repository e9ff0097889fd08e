package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRender_NginxSite(t *testing.T) {
	r := NewRenderer(zaptest.NewLogger(t))

	out, err := r.Render(context.Background(), NginxSite, map[string]interface{}{
		"Domain":       "example.com",
		"UpstreamPort": 8000,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "server_name example.com;")
	assert.Contains(t, out, "proxy_pass http://127.0.0.1:8000;")
}

func TestRender_MissingKeyFails(t *testing.T) {
	r := NewRenderer(zaptest.NewLogger(t))

	_, err := r.Render(context.Background(), NginxSite, map[string]interface{}{
		"Domain": "example.com",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UpstreamPort")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := Render(context.Background(), "nope.tmpl", nil)
	require.Error(t, err)
}

func TestRender_SizeLimit(t *testing.T) {
	r := NewRenderer(zaptest.NewLogger(t))
	r.MaxSize = 10

	_, err := r.Render(context.Background(), NginxSite, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestRender_CancelledContext(t *testing.T) {
	r := NewRenderer(zaptest.NewLogger(t))
	r.Timeout = time.Nanosecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, NginxSite, map[string]interface{}{
		"Domain":       "example.com",
		"UpstreamPort": 8000,
	})
	// Either the render wins or the deadline does; it must never hang.
	if err != nil {
		assert.Contains(t, err.Error(), "timed out")
	}
}

func TestRender_AppServiceEscaping(t *testing.T) {
	r := NewRenderer(zaptest.NewLogger(t))

	out, err := r.Render(context.Background(), AppService, map[string]interface{}{
		"Name":        "web",
		"Description": "",
		"User":        "www-data",
		"WorkingDir":  "",
		"Environment": []string{`GREETING=say "hi" at 100%`},
		"ExecStart":   "/usr/bin/web",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Description=web\n")
	assert.Contains(t, out, `Environment="GREETING=say \"hi\" at 100%%"`)
	assert.NotContains(t, out, "WorkingDirectory=")
}

func TestRender_BackupScriptQuoting(t *testing.T) {
	r := NewRenderer(zaptest.NewLogger(t))

	out, err := r.Render(context.Background(), BackupScript, map[string]interface{}{
		"RcloneConfig":  "/etc/hestia/rclone.conf",
		"Target":        "hestia-crypt:db",
		"Database":      "app db",
		"RetentionDays": 0,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "pg_dump --clean --if-exists 'app db'")
	assert.NotContains(t, out, "rclone delete")
	assert.True(t, strings.HasPrefix(out, "#!/bin/bash\n"))
}

func TestRender_BackupTimer(t *testing.T) {
	out, err := Render(context.Background(), BackupTimer, map[string]string{
		"Cron":       "0 3 * * *",
		"OnCalendar": "*-*-* 03:00:00",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "OnCalendar=*-*-* 03:00:00\n")
	assert.Contains(t, out, "Persistent=true")
}
