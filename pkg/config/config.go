// pkg/config/config.go

// Package config loads the hestia configuration file. Every input a
// provisioning step needs is read from here on every run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/xdg"
	cerr "github.com/cockroachdb/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to environment overrides, e.g. HESTIA_DATABASE_PASSWORD.
const EnvPrefix = "HESTIA"

// secretKeys are bound to the environment explicitly so they can be supplied
// through .env without ever appearing in the config file.
var secretKeys = []string{
	"state.dsn",
	"database.password",
	"backup.access_key",
	"backup.secret_key",
	"backup.encryption_password",
}

// Load reads path, or the first config found in the default locations when
// path is empty. A .env file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, hestia_err.NewExpectedError(cerr.WithHint(
				cerr.Newf("config file %s does not exist", path),
				"Run 'hestia config init' to create one"))
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hestia")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Dir(shared.DefaultConfigPath))
		v.AddConfigPath(filepath.Dir(xdg.XDGConfigPath(shared.HestiaID, "hestia.yaml")))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, cerr.Wrapf(err, "bind env for %s", key)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// No file in the search path. Defaults and env may still be enough.
		default:
			return nil, cerr.Wrapf(err, "read config %s", v.ConfigFileUsed())
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, hestia_err.NewValidationError(
			fmt.Sprintf("config %s is malformed: %v", v.ConfigFileUsed(), err))
	}
	cfg.source = v.ConfigFileUsed()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default filled in and no
// site-specific values.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults are typed literals, decoding them cannot fail.
	_ = v.Unmarshal(cfg, viper.DecodeHook(durationHook()))
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("state.dir", shared.DefaultStateDir)
	v.SetDefault("state.backend", "file")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", "5s")

	v.SetDefault("server.admin_user", "root")

	v.SetDefault("firewall.allow", []string{"OpenSSH", "Nginx Full"})

	v.SetDefault("ssh.comment", "hestia")

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.min_version", "14")

	v.SetDefault("nginx.upstream_port", 8000)
	v.SetDefault("nginx.site_name", "hestia")

	v.SetDefault("service.name", "hestia-app")
	v.SetDefault("service.user", "www-data")

	v.SetDefault("backup.schedule", "0 3 * * *")
	v.SetDefault("backup.retention_days", 14)
	v.SetDefault("backup.region", "us-east-1")
}

func loadDotEnv() error {
	path := xdg.GetEnvOrDefault("HESTIA_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return cerr.Wrapf(err, "load env file %s", path)
	}
	return nil
}

// Save writes cfg to path as YAML, replacing any existing file atomically.
// The file holds secrets, so it is readable by the owner only.
func Save(cfg *Config, path string) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return cerr.Wrap(err, "encode config")
	}

	if err := os.MkdirAll(filepath.Dir(path), shared.DirPermStandard); err != nil {
		return cerr.Wrapf(err, "create config directory for %s", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".hestia-config-*")
	if err != nil {
		return cerr.Wrap(err, "create temp config")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return cerr.Wrap(err, "write temp config")
	}
	if err := tmp.Chmod(shared.FilePermOwnerReadWrite); err != nil {
		tmp.Close()
		return cerr.Wrap(err, "chmod temp config")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return cerr.Wrap(err, "sync temp config")
	}
	if err := tmp.Close(); err != nil {
		return cerr.Wrap(err, "close temp config")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return cerr.Wrapf(err, "replace %s", path)
	}
	cfg.source = path
	return nil
}
