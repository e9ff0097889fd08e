// pkg/config/wizard.go

package config

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/interaction"
	"go.uber.org/zap"
)

// Wizard fills cfg interactively. Existing values are offered as defaults so
// re-running it only changes what the operator types over.
func Wizard(p *interaction.Prompter, cfg *Config) error {
	var err error
	log := zap.L().Named("config.wizard")

	// Web
	if cfg.Nginx.Domain, err = p.Validated("Domain name", cfg.Nginx.Domain, interaction.ValidateDomain); err != nil {
		return err
	}
	if cfg.Nginx.UpstreamPort, err = p.Port("Application port", cfg.Nginx.UpstreamPort); err != nil {
		return err
	}
	if cfg.Server.AdminUser, err = p.Validated("Admin user", cfg.Server.AdminUser, interaction.ValidateUsername); err != nil {
		return err
	}

	// Database
	if cfg.Database.Name, err = p.Validated("Database name", cfg.Database.Name, interaction.ValidatePGIdentifier); err != nil {
		return err
	}
	if cfg.Database.User, err = p.Validated("Database user", cfg.Database.User, interaction.ValidatePGIdentifier); err != nil {
		return err
	}
	if cfg.Database.Password == "" {
		if cfg.Database.Password, err = p.Secret("Database password"); err != nil {
			return err
		}
	}

	// Service
	if cfg.Service.ExecStart, err = p.Validated("Service command (absolute path)", cfg.Service.ExecStart, validateExecStart); err != nil {
		return err
	}

	// TLS
	if cfg.TLS.Enabled, err = p.YesNo("Obtain a Let's Encrypt certificate?", cfg.TLS.Enabled); err != nil {
		return err
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.Email, err = p.Validated("Certificate contact email", cfg.TLS.Email, interaction.ValidateEmail); err != nil {
			return err
		}
	}

	// Backups
	if cfg.Backup.Enabled, err = p.YesNo("Schedule encrypted S3 backups?", cfg.Backup.Enabled); err != nil {
		return err
	}
	if cfg.Backup.Enabled {
		if cfg.Backup.Endpoint, err = p.Validated("S3 endpoint URL", cfg.Backup.Endpoint, interaction.ValidateURL); err != nil {
			return err
		}
		if cfg.Backup.Bucket, err = p.Validated("S3 bucket", cfg.Backup.Bucket, interaction.ValidateNonEmpty); err != nil {
			return err
		}
		if cfg.Backup.Region, err = p.Input("S3 region", cfg.Backup.Region); err != nil {
			return err
		}
		if cfg.Backup.AccessKey, err = p.Validated("S3 access key", cfg.Backup.AccessKey, interaction.ValidateNonEmpty); err != nil {
			return err
		}
		if cfg.Backup.SecretKey == "" {
			if cfg.Backup.SecretKey, err = p.Secret("S3 secret key"); err != nil {
				return err
			}
		}
		if cfg.Backup.EncryptionPassword == "" {
			if cfg.Backup.EncryptionPassword, err = p.Secret("Backup encryption password"); err != nil {
				return err
			}
		}
		if cfg.Backup.Schedule, err = p.Validated("Backup schedule (cron)", cfg.Backup.Schedule, validateCron); err != nil {
			return err
		}
	}

	log.Info("Configuration collected",
		zap.String("domain", cfg.Nginx.Domain),
		zap.Bool("tls", cfg.TLS.Enabled),
		zap.Bool("backup", cfg.Backup.Enabled))
	return nil
}

func validateExecStart(s string) error {
	if err := interaction.ValidateNonEmpty(s); err != nil {
		return err
	}
	if !strings.HasPrefix(s, "/") {
		return errNotAbsolute
	}
	return nil
}

func validateCron(s string) error {
	if len(strings.Fields(s)) != 5 {
		return errCronFields
	}
	return nil
}
