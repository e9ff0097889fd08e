// pkg/shared/constants.go

package shared

const (
	HestiaID = "hestia"

	HestiaLogDir  = "/var/log/hestia/"
	HestiaLogs    = HestiaLogDir + "hestia.log"
	HestiaLogsPWD = "./hestia.log"

	// State lives here unless state.dir says otherwise.
	DefaultStateDir   = "/var/lib/hestia"
	StepLogFilename   = "steps.log"
	ErrorLogFilename  = "errors.log"
	DefaultConfigPath = "/etc/hestia/hestia.yaml"
)

const (
	// Permission modes (in octal)
	DirPermStandard        = 0755
	RuntimeDirPerms        = 0750
	FilePermOwnerRWX       = 0700
	RuntimeFilePerms       = 0640
	FilePermStandard       = 0644
	FilePermOwnerReadWrite = 0600
)
