// pkg/server/nginx.go

package server

import (
	"context"
	"os"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/templates"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type nginxSite struct {
	Domain       string
	UpstreamPort int
}

func (p *provisioner) configureNginx(ctx context.Context) error {
	logger := otelzap.Ctx(ctx)
	n := p.cfg.Nginx

	body, err := p.deps.Renderer.Render(ctx, templates.NginxSite, nginxSite{
		Domain:       n.Domain,
		UpstreamPort: n.UpstreamPort,
	})
	if err != nil {
		return err
	}

	available := p.deps.Paths.NginxAvailable(n.SiteName)
	changed, err := writeFile(available, []byte(body), shared.FilePermStandard)
	if err != nil {
		return err
	}
	linked, err := ensureSymlink(available, p.deps.Paths.NginxEnabled(n.SiteName))
	if err != nil {
		return err
	}

	// The stock site also listens on :80 as default_server.
	defaultSite := p.deps.Paths.NginxEnabled("default")
	if _, err := os.Lstat(defaultSite); err == nil {
		if err := os.Remove(defaultSite); err != nil {
			return fileError(err, "disable default nginx site")
		}
		logger.Info("Disabled default nginx site")
	}

	if err := p.run(ctx, "nginx", "-t"); err != nil {
		return err
	}
	if err := p.systemctl(ctx, "reload", "nginx"); err != nil {
		return err
	}

	logger.Info("nginx configured",
		zap.String("domain", n.Domain),
		zap.Int("upstream_port", n.UpstreamPort),
		zap.Bool("site_changed", changed),
		zap.Bool("site_linked", linked))
	return nil
}

// obtainCertificate runs certbot's nginx plugin. Its inputs come from the
// config on every run, so a resumed run requests the same certificate.
func (p *provisioner) obtainCertificate(ctx context.Context) error {
	if err := p.run(ctx, "certbot",
		"--nginx",
		"-d", p.cfg.Nginx.Domain,
		"-m", p.cfg.TLS.Email,
		"--agree-tos",
		"--non-interactive",
		"--redirect",
		"--keep-until-expiring",
	); err != nil {
		return err
	}
	otelzap.Ctx(ctx).Info("Certificate installed", zap.String("domain", p.cfg.Nginx.Domain))
	return nil
}
