// pkg/server/postgres.go

package server

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-version"
	"github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var psqlVersionRe = regexp.MustCompile(`\(PostgreSQL\)\s+(\d+(?:\.\d+)*)`)

// ParsePsqlVersion extracts the version from "psql --version" output.
func ParsePsqlVersion(out string) (*version.Version, error) {
	m := psqlVersionRe.FindStringSubmatch(out)
	if m == nil {
		return nil, cerr.Newf("cannot find a version in %q", strings.TrimSpace(out))
	}
	return version.NewVersion(m[1])
}

func (p *provisioner) setupPostgres(ctx context.Context) error {
	logger := otelzap.Ctx(ctx)

	if err := p.systemctl(ctx, "enable", "--now", "postgresql"); err != nil {
		return err
	}

	out, err := p.output(ctx, "psql", "--version")
	if err != nil {
		return err
	}
	have, err := ParsePsqlVersion(out)
	if err != nil {
		return hestia_err.Fatal(err)
	}
	want, err := version.NewVersion(p.cfg.Database.MinVersion)
	if err != nil {
		return hestia_err.Fatal(cerr.Wrapf(err, "database.min_version %q", p.cfg.Database.MinVersion))
	}
	if have.LessThan(want) {
		// Waiting will not upgrade the server.
		return hestia_err.Fatal(cerr.WithHint(
			cerr.Newf("PostgreSQL %s is older than the required %s", have, want),
			"Install a newer release from apt.postgresql.org or lower database.min_version"))
	}

	logger.Info("PostgreSQL is running",
		zap.String("version", have.String()),
		zap.String("min_version", want.String()))
	return nil
}

// psql runs sql as the postgres superuser. SQL goes in on stdin so the
// role password never appears in the process list.
func (p *provisioner) psql(ctx context.Context, sql string) (string, error) {
	out, err := p.deps.Exec.Run(ctx, execute.Options{
		Command: "sudo",
		Args:    []string{"-u", "postgres", "psql", "-v", "ON_ERROR_STOP=1", "-tA"},
		Stdin:   sql,
		Capture: true,
	})
	return strings.TrimSpace(out), err
}

// createDatabase creates the role and database if missing. An existing
// role has its password reset so the config stays authoritative.
func (p *provisioner) createDatabase(ctx context.Context) error {
	logger := otelzap.Ctx(ctx)
	db := p.cfg.Database

	roleIdent := pq.QuoteIdentifier(db.User)
	dbIdent := pq.QuoteIdentifier(db.Name)

	// ASSESS
	roleExists, err := p.psql(ctx, fmt.Sprintf("SELECT 1 FROM pg_roles WHERE rolname = %s;", pq.QuoteLiteral(db.User)))
	if err != nil {
		return err
	}

	// INTERVENE
	verb := "CREATE"
	if roleExists == "1" {
		verb = "ALTER"
	}
	if _, err := p.psql(ctx, fmt.Sprintf("%s ROLE %s WITH LOGIN PASSWORD %s;", verb, roleIdent, pq.QuoteLiteral(db.Password))); err != nil {
		return err
	}
	logger.Info("Database role ready", zap.String("role", db.User), zap.Bool("created", verb == "CREATE"))

	dbExists, err := p.psql(ctx, fmt.Sprintf("SELECT 1 FROM pg_database WHERE datname = %s;", pq.QuoteLiteral(db.Name)))
	if err != nil {
		return err
	}
	if dbExists != "1" {
		if _, err := p.psql(ctx, fmt.Sprintf("CREATE DATABASE %s OWNER %s;", dbIdent, roleIdent)); err != nil {
			return err
		}
		logger.Info("Database created", zap.String("database", db.Name))
	} else {
		if _, err := p.psql(ctx, fmt.Sprintf("ALTER DATABASE %s OWNER TO %s;", dbIdent, roleIdent)); err != nil {
			return err
		}
		logger.Info("Database already exists", zap.String("database", db.Name))
	}

	// EVALUATE
	_, err = p.psql(ctx, fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s;", dbIdent, roleIdent))
	return err
}

// DSN is the connection string the application role uses.
func DSN(host string, port int, user, password, name string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + name,
		RawQuery: "sslmode=disable&connect_timeout=5",
	}
	return u.String()
}

func (p *provisioner) verifyDatabase(ctx context.Context) error {
	db := p.cfg.Database
	dsn := DSN(db.Host, db.Port, db.User, db.Password, db.Name)
	if err := p.deps.Ping(ctx, dsn); err != nil {
		return err
	}
	otelzap.Ctx(ctx).Info("Connected to database",
		zap.String("database", db.Name),
		zap.String("user", db.User),
		zap.String("host", db.Host))
	return nil
}

// PingPostgres opens dsn with lib/pq and pings it. Authentication failures
// are fatal; anything else may be a server that is still starting.
func PingPostgres(ctx context.Context, dsn string) error {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return hestia_err.Fatal(cerr.Wrap(err, "open database"))
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return classifyPQ(conn.PingContext(ctx))
}

func classifyPQ(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if cerr.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "28": // invalid authorization
			return hestia_err.Fatal(cerr.Wrapf(err, "database rejected credentials (%s)", pqErr.Code.Name()))
		case "3D": // invalid catalog name
			return hestia_err.Fatal(cerr.Wrapf(err, "database does not exist (%s)", pqErr.Code.Name()))
		}
	}
	return hestia_err.Transient(cerr.Wrap(err, "ping database"))
}
