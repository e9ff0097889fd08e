// pkg/server/paths.go

package server

import "path/filepath"

// Paths locates every file hestia writes on the host. Root is prepended to
// each path and is empty on a real host.
type Paths struct {
	Root string
}

func (p Paths) join(elem ...string) string {
	return filepath.Join(append([]string{p.Root, "/"}, elem...)...)
}

func (p Paths) NginxAvailable(site string) string {
	return p.join("etc", "nginx", "sites-available", site)
}

func (p Paths) NginxEnabled(site string) string {
	return p.join("etc", "nginx", "sites-enabled", site)
}

func (p Paths) SystemdUnit(name string) string {
	return p.join("etc", "systemd", "system", name)
}

// Etc is hestia's own config directory.
func (p Paths) Etc(name string) string {
	return p.join("etc", "hestia", name)
}

func (p Paths) BackupScript() string {
	return p.join("usr", "local", "sbin", "hestia-backup")
}

// Home is the home directory of user, following Ubuntu's defaults.
func (p Paths) Home(user string) string {
	if user == "root" {
		return p.join("root")
	}
	return p.join("home", user)
}
