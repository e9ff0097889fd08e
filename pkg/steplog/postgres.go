// pkg/steplog/postgres.go

package steplog

import (
	"context"
	"database/sql"
	"time"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	cerr "github.com/cockroachdb/errors"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const createStepsTable = `
create table if not exists hestia_steps(
	name text primary key,
	completed_at timestamptz not null default now()
)`

// PostgresStepLog keeps completed step names in a table. Useful when the state
// directory is ephemeral (rebuilt images, tmpfs) but a database is not.
type PostgresStepLog struct {
	db *sql.DB
}

var _ StepLog = (*PostgresStepLog)(nil)

// OpenPostgres connects with lib/pq and prepares the table.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStepLog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, hestia_err.IO(err, "open postgres step log")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, hestia_err.IO(err, "connect postgres step log")
	}
	log, err := NewPostgres(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return log, nil
}

// NewPostgres creates the table if needed and wraps db. The log owns db from here on.
func NewPostgres(ctx context.Context, db *sql.DB) (*PostgresStepLog, error) {
	if _, err := db.ExecContext(ctx, createStepsTable); err != nil {
		return nil, hestia_err.IO(err, "create hestia_steps table")
	}
	return &PostgresStepLog{db: db}, nil
}

func (p *PostgresStepLog) IsCompleted(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := p.db.QueryRowContext(ctx,
		`select exists(select 1 from hestia_steps where name=$1)`, name).Scan(&ok)
	if err != nil {
		return false, hestia_err.IO(err, "query postgres step log")
	}
	return ok, nil
}

func (p *PostgresStepLog) MarkCompleted(ctx context.Context, name string) error {
	if _, err := p.db.ExecContext(ctx,
		`insert into hestia_steps(name) values($1) on conflict (name) do nothing`, name); err != nil {
		return hestia_err.IO(err, "insert into postgres step log")
	}
	return nil
}

func (p *PostgresStepLog) Completed(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `select name from hestia_steps order by completed_at, name`)
	if err != nil {
		return nil, hestia_err.IO(err, "list postgres step log")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, hestia_err.IO(err, "scan postgres step log")
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, hestia_err.IO(err, "list postgres step log")
	}
	return names, nil
}

// Forget deletes the named rows; the postgres counterpart of the file Forget.
func (p *PostgresStepLog) Forget(ctx context.Context, names ...string) ([]string, error) {
	var removed []string
	for _, n := range names {
		res, err := p.db.ExecContext(ctx, `delete from hestia_steps where name=$1`, n)
		if err != nil {
			return removed, hestia_err.IO(err, "delete from postgres step log")
		}
		if affected, err := res.RowsAffected(); err == nil && affected > 0 {
			removed = append(removed, n)
		}
	}
	return removed, nil
}

// ForgetAll empties the table.
func (p *PostgresStepLog) ForgetAll(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `delete from hestia_steps`); err != nil {
		return hestia_err.IO(err, "truncate postgres step log")
	}
	return nil
}

func (p *PostgresStepLog) Close() error {
	if err := p.db.Close(); err != nil {
		return hestia_err.IO(cerr.WithStack(err), "close postgres step log")
	}
	return nil
}
