// pkg/server/service.go

package server

import (
	"context"
	"sort"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/templates"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type unitData struct {
	Name        string
	Description string
	User        string
	WorkingDir  string
	Environment []string
	ExecStart   string
}

func (p *provisioner) installService(ctx context.Context) error {
	svc := p.cfg.Service
	unit := svc.Name + ".service"

	env := make([]string, 0, len(svc.Environment))
	for k, v := range svc.Environment {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	body, err := p.deps.Renderer.Render(ctx, templates.AppService, unitData{
		Name:        svc.Name,
		Description: svc.Description,
		User:        svc.User,
		WorkingDir:  svc.WorkingDir,
		Environment: env,
		ExecStart:   svc.ExecStart,
	})
	if err != nil {
		return err
	}

	changed, err := writeFile(p.deps.Paths.SystemdUnit(unit), []byte(body), shared.FilePermStandard)
	if err != nil {
		return err
	}
	if err := p.systemctl(ctx, "daemon-reload"); err != nil {
		return err
	}
	if err := p.systemctl(ctx, "enable", "--now", unit); err != nil {
		return err
	}
	if changed {
		// enable --now leaves an already running unit on its old definition.
		if err := p.systemctl(ctx, "restart", unit); err != nil {
			return err
		}
	}

	otelzap.Ctx(ctx).Info("Service installed",
		zap.String("unit", unit),
		zap.Bool("changed", changed))
	return nil
}
