// pkg/server/backup.go

package server

import (
	"context"
	"strings"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/backup/schedule"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/templates"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"mvdan.cc/sh/v3/syntax"
)

const (
	backupS3Remote    = "hestia-s3"
	backupCryptRemote = "hestia-crypt"
	backupUnit        = "hestia-backup"
)

type rcloneData struct {
	S3Remote         string
	CryptRemote      string
	AccessKey        string
	SecretKey        string
	Endpoint         string
	Region           string
	Bucket           string
	Prefix           string
	ObscuredPassword string
}

type backupScriptData struct {
	RcloneConfig  string
	Target        string
	Database      string
	RetentionDays int
}

// RcloneConfigPath is where the backup remotes are defined.
func (p Paths) RcloneConfigPath() string {
	return p.Etc("rclone.conf")
}

func (p *provisioner) scheduleBackups(ctx context.Context) error {
	logger := otelzap.Ctx(ctx)
	b := p.cfg.Backup
	paths := p.deps.Paths

	// ASSESS
	onCalendar, err := schedule.CronToOnCalendar(ctx, b.Schedule)
	if err != nil {
		return hestia_err.Fatal(err)
	}

	// INTERVENE
	obscured, err := p.deps.Exec.Run(ctx, execute.Options{
		Command: "rclone",
		Args:    []string{"obscure", "-"},
		Stdin:   b.EncryptionPassword + "\n",
		Capture: true,
	})
	if err != nil {
		return err
	}

	rcloneConf, err := p.deps.Renderer.Render(ctx, templates.RcloneConfig, rcloneData{
		S3Remote:         backupS3Remote,
		CryptRemote:      backupCryptRemote,
		AccessKey:        b.AccessKey,
		SecretKey:        b.SecretKey,
		Endpoint:         b.Endpoint,
		Region:           b.Region,
		Bucket:           b.Bucket,
		Prefix:           shared.HestiaID,
		ObscuredPassword: strings.TrimSpace(obscured),
	})
	if err != nil {
		return err
	}
	if _, err := writeFile(paths.RcloneConfigPath(), []byte(rcloneConf), shared.FilePermOwnerReadWrite); err != nil {
		return err
	}

	// The script runs on the host, so it refers to host paths, not Root.
	script, err := p.deps.Renderer.Render(ctx, templates.BackupScript, backupScriptData{
		RcloneConfig:  strings.TrimPrefix(paths.RcloneConfigPath(), paths.Root),
		Target:        backupCryptRemote + ":db",
		Database:      p.cfg.Database.Name,
		RetentionDays: b.RetentionDays,
	})
	if err != nil {
		return err
	}
	if err := checkScript(script); err != nil {
		return err
	}
	scriptPath := paths.BackupScript()
	if _, err := writeFile(scriptPath, []byte(script), shared.FilePermOwnerRWX); err != nil {
		return err
	}

	service, err := p.deps.Renderer.Render(ctx, templates.BackupService, map[string]string{
		"Script": strings.TrimPrefix(scriptPath, paths.Root),
	})
	if err != nil {
		return err
	}
	if _, err := writeFile(paths.SystemdUnit(backupUnit+".service"), []byte(service), shared.FilePermStandard); err != nil {
		return err
	}
	timer, err := p.deps.Renderer.Render(ctx, templates.BackupTimer, map[string]string{
		"Cron":       b.Schedule,
		"OnCalendar": onCalendar,
	})
	if err != nil {
		return err
	}
	if _, err := writeFile(paths.SystemdUnit(backupUnit+".timer"), []byte(timer), shared.FilePermStandard); err != nil {
		return err
	}

	if err := p.systemctl(ctx, "daemon-reload"); err != nil {
		return err
	}
	if err := p.systemctl(ctx, "enable", "--now", backupUnit+".timer"); err != nil {
		return err
	}

	// EVALUATE
	logger.Info("Backups scheduled",
		zap.String("schedule", b.Schedule),
		zap.String("on_calendar", onCalendar),
		zap.String("bucket", b.Bucket),
		zap.Int("retention_days", b.RetentionDays))
	return nil
}

// checkScript parses a generated script as bash so a template mistake is
// caught before it is installed.
func checkScript(script string) error {
	if _, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(script), "hestia-backup"); err != nil {
		return hestia_err.Fatal(cerr.Wrap(err, "generated backup script does not parse"))
	}
	return nil
}
