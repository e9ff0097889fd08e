package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/interaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizard(t *testing.T) {
	answers := strings.Join([]string{
		"example.com", // domain
		"3000",        // port
		"",            // admin user, keep default
		"app",         // db name
		"app",         // db user
		"pw",          // db password
		"relative/bin", "/opt/app/bin/server",
		"y", "ops@example.com",
		"n",
	}, "\n") + "\n"

	cfg := Default()
	out := &bytes.Buffer{}
	require.NoError(t, Wizard(interaction.New(strings.NewReader(answers), out), cfg))

	assert.Equal(t, "example.com", cfg.Nginx.Domain)
	assert.Equal(t, 3000, cfg.Nginx.UpstreamPort)
	assert.Equal(t, "root", cfg.Server.AdminUser)
	assert.Equal(t, "pw", cfg.Database.Password)
	assert.Equal(t, "/opt/app/bin/server", cfg.Service.ExecStart)
	assert.True(t, cfg.TLS.Enabled)
	assert.Equal(t, "ops@example.com", cfg.TLS.Email)
	assert.False(t, cfg.Backup.Enabled)
	assert.Contains(t, out.String(), "must start with an absolute path")

	assert.NoError(t, Validate(cfg))
}

func TestWizard_Backups(t *testing.T) {
	answers := strings.Join([]string{
		"example.com", "", "", "app", "app", "pw", "/opt/app/bin/server",
		"n",
		"y", "https://s3.example.com", "backups", "", "AKIA", "secret", "hunter2",
		"every night", "30 2 * * *",
	}, "\n") + "\n"

	cfg := Default()
	require.NoError(t, Wizard(interaction.New(strings.NewReader(answers), &bytes.Buffer{}), cfg))

	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, "us-east-1", cfg.Backup.Region)
	assert.Equal(t, "30 2 * * *", cfg.Backup.Schedule)
	assert.NoError(t, Validate(cfg))
}
