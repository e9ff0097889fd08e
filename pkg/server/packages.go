// pkg/server/packages.go

package server

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/execute"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// BasePackages are installed on every host.
var BasePackages = []string{
	"ufw",
	"postgresql",
	"postgresql-contrib",
	"nginx",
	"certbot",
	"python3-certbot-nginx",
	"rclone",
	"gzip",
}

var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive", "NEEDRESTART_MODE=a"}

func (p *provisioner) apt(ctx context.Context, args ...string) error {
	_, err := p.deps.Exec.Run(ctx, execute.Options{
		Command: "apt-get",
		Args:    args,
		Env:     aptEnv,
	})
	return err
}

func (p *provisioner) updatePackages(ctx context.Context) error {
	if err := p.apt(ctx, "update"); err != nil {
		return err
	}
	return p.apt(ctx, "-y",
		"-o", "Dpkg::Options::=--force-confdef",
		"-o", "Dpkg::Options::=--force-confold",
		"upgrade")
}

func (p *provisioner) installPackages(ctx context.Context) error {
	pkgs := append([]string{}, BasePackages...)
	seen := make(map[string]bool, len(pkgs))
	for _, name := range pkgs {
		seen[name] = true
	}
	for _, name := range p.cfg.Server.Packages {
		if !seen[name] {
			pkgs = append(pkgs, name)
			seen[name] = true
		}
	}

	otelzap.Ctx(ctx).Info("Installing packages", zap.Strings("packages", pkgs))
	return p.apt(ctx, append([]string{"install", "-y", "--no-install-recommends"}, pkgs...)...)
}
