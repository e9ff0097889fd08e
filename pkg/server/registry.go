// pkg/server/registry.go

// Package server is the step registry for a single Ubuntu host running a web
// application behind nginx with a local PostgreSQL database.
package server

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/config"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steps"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/templates"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Step names. They are the keys in the step log, so renaming one makes
// every existing host run it again.
const (
	StepUpdatePackages    = "update-packages"
	StepInstallPackages   = "install-packages"
	StepConfigureFirewall = "configure-firewall"
	StepGenerateSSHKey    = "generate-ssh-key"
	StepSetupPostgres     = "setup-postgres"
	StepCreateDatabase    = "create-database"
	StepVerifyDatabase    = "verify-database"
	StepConfigureNginx    = "configure-nginx"
	StepObtainCertificate = "obtain-certificate"
	StepInstallService    = "install-service"
	StepScheduleBackups   = "schedule-backups"
)

// Deps are the collaborators step bodies use to touch the host.
type Deps struct {
	Exec     execute.Runner
	Paths    Paths
	Renderer *templates.Renderer
	// Ping checks that a PostgreSQL DSN accepts connections.
	Ping func(ctx context.Context, dsn string) error
}

func (d Deps) withDefaults() Deps {
	if d.Exec == nil {
		d.Exec = execute.ExecRunner{}
	}
	if d.Renderer == nil {
		d.Renderer = templates.NewRenderer(nil)
	}
	if d.Ping == nil {
		d.Ping = PingPostgres
	}
	return d
}

// provisioner binds the config and deps that every step body closes over.
type provisioner struct {
	cfg  *config.Config
	deps Deps
}

// Registry returns the ordered steps for cfg. Optional features that are
// switched off are not registered at all. Retry policy comes from each
// step's defaults here; Build layers the config on top.
func Registry(cfg *config.Config, deps Deps) []steps.Step {
	p := &provisioner{cfg: cfg, deps: deps.withDefaults()}

	list := []steps.Step{
		{
			Name:        StepUpdatePackages,
			Description: "Update package index and upgrade installed packages",
			Body:        p.updatePackages,
			RetryDelay:  10 * time.Second,
		},
		{
			Name:        StepInstallPackages,
			Description: "Install ufw, PostgreSQL, nginx, certbot and rclone",
			Body:        p.installPackages,
			RetryDelay:  10 * time.Second,
		},
		{
			Name:        StepConfigureFirewall,
			Description: "Configure and enable the UFW firewall",
			Body:        p.configureFirewall,
		},
		{
			Name:        StepGenerateSSHKey,
			Description: "Generate an ed25519 SSH key for the admin user",
			Body:        p.generateSSHKey,
			OnFailure:   steps.ContinueNext,
		},
		{
			Name:        StepSetupPostgres,
			Description: "Enable PostgreSQL and check its version",
			Body:        p.setupPostgres,
		},
		{
			Name:        StepCreateDatabase,
			Description: "Create the application database and role",
			Body:        p.createDatabase,
		},
		{
			Name:        StepVerifyDatabase,
			Description: "Connect to the database as the application role",
			Body:        p.verifyDatabase,
			RetryDelay:  3 * time.Second,
		},
		{
			Name:        StepConfigureNginx,
			Description: "Configure nginx as a reverse proxy",
			Body:        p.configureNginx,
		},
	}

	if cfg.TLS.Enabled {
		list = append(list, steps.Step{
			Name:        StepObtainCertificate,
			Description: "Obtain a Let's Encrypt certificate with certbot",
			Body:        p.obtainCertificate,
			RetryDelay:  30 * time.Second,
			OnFailure:   steps.ContinueNext,
		})
	}

	list = append(list, steps.Step{
		Name:        StepInstallService,
		Description: "Install and start the application systemd service",
		Body:        p.installService,
	})

	if cfg.Backup.Enabled {
		list = append(list, steps.Step{
			Name:        StepScheduleBackups,
			Description: "Schedule encrypted database backups to S3",
			Body:        p.scheduleBackups,
			OnFailure:   steps.ContinueNext,
		})
	}
	return list
}

// Build is Registry with the config's retry settings and per-step
// overrides applied.
func Build(ctx context.Context, cfg *config.Config, deps Deps) ([]steps.Step, error) {
	list, unknown, err := cfg.ApplyAll(Registry(cfg, deps))
	if err != nil {
		return nil, err
	}
	for _, name := range unknown {
		otelzap.Ctx(ctx).Warn("Config overrides a step that is not registered",
			zap.String("step", name))
	}
	return list, nil
}

func (p *provisioner) run(ctx context.Context, command string, args ...string) error {
	_, err := p.deps.Exec.Run(ctx, execute.Options{Command: command, Args: args})
	return err
}

func (p *provisioner) output(ctx context.Context, command string, args ...string) (string, error) {
	return p.deps.Exec.Run(ctx, execute.Options{Command: command, Args: args, Capture: true})
}

func (p *provisioner) systemctl(ctx context.Context, args ...string) error {
	return p.run(ctx, "systemctl", args...)
}
