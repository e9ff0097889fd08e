// pkg/server/sshkey.go

package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const (
	sshKeyPrivatePerm = 0600
	sshKeyPublicPerm  = 0644
)

func (p *provisioner) sshKeyPath() string {
	if p.cfg.SSH.KeyPath != "" {
		return filepath.Join(p.deps.Paths.Root, p.cfg.SSH.KeyPath)
	}
	return filepath.Join(p.deps.Paths.Home(p.cfg.Server.AdminUser), ".ssh", "id_ed25519")
}

// generateSSHKey creates an ed25519 key pair for the admin user unless one
// already exists, and authorises its public half for login.
func (p *provisioner) generateSSHKey(ctx context.Context) error {
	logger := otelzap.Ctx(ctx)
	keyPath := p.sshKeyPath()
	sshDir := filepath.Dir(keyPath)

	// ASSESS
	pubLine, err := readPublicKey(keyPath)
	if err != nil {
		return err
	}

	// INTERVENE
	if pubLine == "" {
		logger.Info("Generating ed25519 SSH key", zap.String("path", keyPath))
		if err := os.MkdirAll(sshDir, shared.FilePermOwnerRWX); err != nil {
			return fileError(err, "create %s", sshDir)
		}
		if pubLine, err = writeKeyPair(keyPath, p.cfg.SSH.Comment); err != nil {
			return err
		}
	} else {
		logger.Info("SSH key already exists, keeping it", zap.String("path", keyPath))
	}

	if err := authorize(filepath.Join(sshDir, "authorized_keys"), pubLine); err != nil {
		return err
	}

	if p.cfg.Server.AdminUser != "root" {
		owner := p.cfg.Server.AdminUser + ":" + p.cfg.Server.AdminUser
		if err := p.run(ctx, "chown", "-R", owner, sshDir); err != nil {
			return err
		}
	}

	// EVALUATE
	logger.Info("SSH key ready", zap.String("public_key", pubLine))
	return nil
}

// readPublicKey returns the authorized_keys line for an existing key pair,
// or "" if no private key exists yet.
func readPublicKey(keyPath string) (string, error) {
	raw, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fileError(err, "read %s", keyPath)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		// An unreadable key is the operator's to fix; overwriting it could
		// lock someone out.
		return "", hestia_err.Fatal(cerr.WithHint(
			cerr.Wrapf(err, "parse existing key %s", keyPath),
			"Move the file aside to have a new key generated"))
	}
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
	if pub, err := os.ReadFile(keyPath + ".pub"); err == nil {
		// Keep the comment the operator sees in the .pub file.
		if fields := strings.Fields(string(pub)); len(fields) >= 2 && fields[0]+" "+fields[1] == line {
			return strings.TrimSpace(string(pub)), nil
		}
	}
	return line, nil
}

func writeKeyPair(keyPath, comment string) (string, error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", cerr.Wrap(err, "generate ed25519 key")
	}
	block, err := ssh.MarshalPrivateKey(privKey, comment)
	if err != nil {
		return "", cerr.Wrap(err, "marshal private key")
	}
	sshPub, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return "", cerr.Wrap(err, "create ssh public key")
	}

	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		line += " " + comment
	}

	if _, err := writeFile(keyPath, pem.EncodeToMemory(block), sshKeyPrivatePerm); err != nil {
		return "", err
	}
	if _, err := writeFile(keyPath+".pub", []byte(line+"\n"), sshKeyPublicPerm); err != nil {
		return "", err
	}
	return line, nil
}

// authorize appends line to authorized_keys unless the key is already there.
func authorize(path, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return cerr.AssertionFailedf("malformed public key line %q", line)
	}
	keyID := []byte(fields[0] + " " + fields[1])

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fileError(err, "read %s", path)
	}
	for _, l := range bytes.Split(existing, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimSpace(l), keyID) {
			return nil
		}
	}

	data := append([]byte{}, existing...)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	data = append(data, line...)
	data = append(data, '\n')
	_, err = writeFile(path, data, sshKeyPrivatePerm)
	return err
}
