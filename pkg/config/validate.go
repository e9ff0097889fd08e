// pkg/config/validate.go

package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

var (
	pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)
	validate  = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config key, not the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Names spliced into SQL, file names and the backup script.
	_ = v.RegisterValidation("pgident", func(fl validator.FieldLevel) bool {
		return pgIdentRe.MatchString(fl.Field().String())
	})
	// Values written into line-oriented files (rclone.conf, stdin of rclone obscure).
	_ = v.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "\r\n")
	})
	return v
}

// Validate checks cfg against its field rules. All problems are reported
// together.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return hestia_err.NewValidationError(err.Error())
	}

	var result *multierror.Error
	for _, fe := range verrs {
		result = multierror.Append(result, fmt.Errorf("%s: %s", configKey(fe.Namespace()), describe(fe)))
	}
	result.ErrorFormat = func(errs []error) string {
		lines := make([]string, len(errs))
		for i, e := range errs {
			lines[i] = "  - " + e.Error()
		}
		return fmt.Sprintf("invalid configuration:\n%s", strings.Join(lines, "\n"))
	}
	return hestia_err.NewValidationError(result.Error(),
		"Fix the listed keys in the config file, or run 'hestia config init'")
}

// configKey turns "Config.database.port" into "database.port".
func configKey(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return fmt.Sprintf("is required when %s", strings.Replace(fe.Param(), " ", " is ", 1))
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be an email address"
	case "url":
		return "must be a URL"
	case "hostname_rfc1123":
		return "must be a hostname"
	case "pgident":
		return "must be letters, digits and underscore, starting with a letter"
	case "singleline":
		return "must not contain line breaks"
	case "excludesall":
		return fmt.Sprintf("must not contain any of %q", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

var (
	errNotAbsolute = errors.New("must start with an absolute path")
	errCronFields  = errors.New("cron expression needs five fields")
)
