// pkg/shared/version.go

package shared

// Version is overridden at build time with -ldflags "-X .../pkg/shared.Version=...".
var Version = "dev"
