// pkg/templates/render.go
//
// Renders the configuration files hestia writes to a host: the nginx site,
// systemd units, the rclone config and the backup script. Templates are
// embedded in the binary.

package templates

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"text/template"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	DefaultMaxTemplateSize = 1 * 1024 * 1024 // 1MB
	DefaultTemplateTimeout = 10 * time.Second
)

// Embedded template names.
const (
	NginxSite     = "nginx-site.conf.tmpl"
	AppService    = "app.service.tmpl"
	RcloneConfig  = "rclone.conf.tmpl"
	BackupScript  = "hestia-backup.sh.tmpl"
	BackupService = "hestia-backup.service.tmpl"
	BackupTimer   = "hestia-backup.timer.tmpl"
)

//go:embed files/*.tmpl
var files embed.FS

var funcMap = template.FuncMap{
	"default": func(def, val string) string {
		if val == "" {
			return def
		}
		return val
	},
	// quote makes a value safe to splice into a shell script.
	"quote": execute.Quote,
	// systemdEscape doubles "%" and quotes values for Environment= lines.
	"systemdEscape": func(s string) string {
		out := make([]byte, 0, len(s)+2)
		out = append(out, '"')
		for i := 0; i < len(s); i++ {
			switch s[i] {
			case '%':
				out = append(out, '%', '%')
			case '"', '\\':
				out = append(out, '\\', s[i])
			default:
				out = append(out, s[i])
			}
		}
		return string(append(out, '"'))
	},
}

// Renderer renders embedded templates with size and time limits.
type Renderer struct {
	logger  *zap.Logger
	MaxSize int64
	Timeout time.Duration
}

// NewRenderer creates a new template renderer
func NewRenderer(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.L()
	}
	return &Renderer{
		logger:  logger.Named("template-renderer"),
		MaxSize: DefaultMaxTemplateSize,
		Timeout: DefaultTemplateTimeout,
	}
}

// Render executes the embedded template name with data. Missing keys are
// errors, so a renamed config field cannot silently produce an empty value.
func (r *Renderer) Render(ctx context.Context, name string, data interface{}) (string, error) {
	raw, err := files.ReadFile("files/" + name)
	if err != nil {
		return "", cerr.Wrapf(err, "read embedded template %s", name)
	}
	if int64(len(raw)) > r.MaxSize {
		return "", fmt.Errorf("template %s size %d exceeds limit %d", name, len(raw), r.MaxSize)
	}

	tmpl, err := template.New(name).Funcs(funcMap).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return "", cerr.Wrapf(err, "parse template %s", name)
	}

	renderCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	resultChan := make(chan string, 1)
	errChan := make(chan error, 1)
	go func() {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			errChan <- cerr.Wrapf(err, "execute template %s", name)
			return
		}
		resultChan <- buf.String()
	}()

	select {
	case <-renderCtx.Done():
		r.logger.Error("Template rendering timed out",
			zap.String("template", name),
			zap.Duration("timeout", r.Timeout))
		return "", fmt.Errorf("template %s rendering timed out after %s", name, r.Timeout)
	case err := <-errChan:
		return "", err
	case result := <-resultChan:
		r.logger.Debug("Template rendered",
			zap.String("template", name),
			zap.Int("output_size", len(result)))
		return result, nil
	}
}

// Render is a convenience wrapper using the global logger.
func Render(ctx context.Context, name string, data interface{}) (string, error) {
	return NewRenderer(nil).Render(ctx, name, data)
}
