// pkg/config/types.go

package config

// Config is everything a provisioning run needs. Every input a step reads
// comes from here, so a resumed run sees the same values as the first one.
type Config struct {
	State    StateConfig             `mapstructure:"state" yaml:"state"`
	Retry    RetryConfig             `mapstructure:"retry" yaml:"retry"`
	Steps    map[string]StepOverride `mapstructure:"steps" yaml:"steps,omitempty" validate:"dive"`
	Server   ServerConfig            `mapstructure:"server" yaml:"server"`
	Firewall FirewallConfig          `mapstructure:"firewall" yaml:"firewall"`
	SSH      SSHConfig               `mapstructure:"ssh" yaml:"ssh"`
	Database DatabaseConfig          `mapstructure:"database" yaml:"database"`
	Nginx    NginxConfig             `mapstructure:"nginx" yaml:"nginx"`
	TLS      TLSConfig               `mapstructure:"tls" yaml:"tls"`
	Service  ServiceConfig           `mapstructure:"service" yaml:"service"`
	Backup   BackupConfig            `mapstructure:"backup" yaml:"backup"`

	source string
}

// Source is the file the config was read from, empty if none.
func (c *Config) Source() string {
	return c.source
}

type StateConfig struct {
	Dir     string `mapstructure:"dir" yaml:"dir" validate:"required"`
	Backend string `mapstructure:"backend" yaml:"backend" validate:"oneof=file postgres"`
	DSN     string `mapstructure:"dsn" yaml:"dsn,omitempty" validate:"required_if=Backend postgres"`
}

type RetryConfig struct {
	Attempts int      `mapstructure:"attempts" yaml:"attempts" validate:"gte=1,lte=50"`
	Delay    Duration `mapstructure:"delay" yaml:"delay"`
}

// StepOverride replaces the retry policy of one step. Zero fields keep the
// step's own setting.
type StepOverride struct {
	Retries    int      `mapstructure:"retries" yaml:"retries,omitempty" validate:"gte=0,lte=50"`
	RetryDelay Duration `mapstructure:"retry_delay" yaml:"retry_delay,omitempty"`
	OnFailure  string   `mapstructure:"on_failure" yaml:"on_failure,omitempty" validate:"omitempty,oneof=halt continue continue-next continue_next"`
}

type ServerConfig struct {
	Hostname  string   `mapstructure:"hostname" yaml:"hostname,omitempty" validate:"omitempty,hostname_rfc1123"`
	AdminUser string   `mapstructure:"admin_user" yaml:"admin_user" validate:"required"`
	Packages  []string `mapstructure:"packages" yaml:"packages,omitempty" validate:"dive,required,excludesall= ;&0x7C"`
}

type FirewallConfig struct {
	// Allow entries are passed to "ufw allow" one at a time: a port, a
	// port/proto pair, or an application profile name.
	Allow []string `mapstructure:"allow" yaml:"allow" validate:"dive,required"`
}

type SSHConfig struct {
	KeyPath string `mapstructure:"key_path" yaml:"key_path,omitempty"`
	Comment string `mapstructure:"comment" yaml:"comment,omitempty"`
}

type DatabaseConfig struct {
	Name       string `mapstructure:"name" yaml:"name" validate:"required,pgident"`
	User       string `mapstructure:"user" yaml:"user" validate:"required,pgident"`
	Password   string `mapstructure:"password" yaml:"password" validate:"required"`
	Host       string `mapstructure:"host" yaml:"host" validate:"required"`
	Port       int    `mapstructure:"port" yaml:"port" validate:"gte=1,lte=65535"`
	MinVersion string `mapstructure:"min_version" yaml:"min_version" validate:"required"`
}

type NginxConfig struct {
	Domain       string `mapstructure:"domain" yaml:"domain" validate:"required,hostname_rfc1123"`
	UpstreamPort int    `mapstructure:"upstream_port" yaml:"upstream_port" validate:"gte=1,lte=65535"`
	SiteName     string `mapstructure:"site_name" yaml:"site_name" validate:"required,excludesall=/ "`
}

type TLSConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Email   string `mapstructure:"email" yaml:"email,omitempty" validate:"required_if=Enabled true,omitempty,email"`
}

type ServiceConfig struct {
	Name        string            `mapstructure:"name" yaml:"name" validate:"required,excludesall=/ "`
	Description string            `mapstructure:"description" yaml:"description,omitempty"`
	ExecStart   string            `mapstructure:"exec_start" yaml:"exec_start" validate:"required"`
	User        string            `mapstructure:"user" yaml:"user" validate:"required"`
	WorkingDir  string            `mapstructure:"working_dir" yaml:"working_dir,omitempty"`
	Environment map[string]string `mapstructure:"environment" yaml:"environment,omitempty"`
}

type BackupConfig struct {
	Enabled            bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint           string `mapstructure:"endpoint" yaml:"endpoint,omitempty" validate:"required_if=Enabled true,omitempty,url"`
	Bucket             string `mapstructure:"bucket" yaml:"bucket,omitempty" validate:"required_if=Enabled true,singleline"`
	Region             string `mapstructure:"region" yaml:"region,omitempty" validate:"singleline"`
	AccessKey          string `mapstructure:"access_key" yaml:"access_key,omitempty" validate:"required_if=Enabled true,singleline"`
	SecretKey          string `mapstructure:"secret_key" yaml:"secret_key,omitempty" validate:"required_if=Enabled true,singleline"`
	EncryptionPassword string `mapstructure:"encryption_password" yaml:"encryption_password,omitempty" validate:"required_if=Enabled true,singleline"`
	// Schedule is a five-field cron expression.
	Schedule      string `mapstructure:"schedule" yaml:"schedule" validate:"required_if=Enabled true"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days" validate:"gte=0"`
}
