// pkg/server/firewall.go

package server

import (
	"context"
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// firewallRules returns the configured rules with SSH access guaranteed, so
// enabling the firewall can never lock the operator out.
func firewallRules(allow []string) []string {
	rules := make([]string, 0, len(allow)+1)
	hasSSH := false
	for _, r := range allow {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		switch strings.ToLower(r) {
		case "openssh", "ssh", "22", "22/tcp":
			hasSSH = true
		}
		rules = append(rules, r)
	}
	if !hasSSH {
		rules = append([]string{"OpenSSH"}, rules...)
	}
	return rules
}

func (p *provisioner) configureFirewall(ctx context.Context) error {
	logger := otelzap.Ctx(ctx)
	rules := firewallRules(p.cfg.Firewall.Allow)

	for _, rule := range rules {
		logger.Debug("Allowing through firewall", zap.String("rule", rule))
		if err := p.run(ctx, "ufw", "allow", rule); err != nil {
			return err
		}
	}
	if err := p.run(ctx, "ufw", "--force", "enable"); err != nil {
		return err
	}
	logger.Info("Firewall enabled", zap.Strings("rules", rules))
	return nil
}
