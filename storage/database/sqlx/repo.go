// Package sqlxrepos implements the domain repositories on top of sqlx.
// Queries are written with `?` placeholders and rebound to the executor's dialect.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/questtrack/questtrack/core"
)

type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps sql "no rows" err to notFoundErr
func trapNoRowsErr(err, notFoundErr error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFoundErr
	}
	return errors.Wrap(err, msg)
}

// insertReturningID runs an INSERT and returns the generated id.
// lib/pq does not support LastInsertId: postgres inserts go through `RETURNING id`.
func insertReturningID(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int, error) {
	if exec.DriverName() == "postgres" {
		var id int
		err := exec.QueryRowxContext(ctx, exec.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return int(id), err
}

// execAffecting runs a write and returns notFoundErr if it matched no row.
func execAffecting(ctx context.Context, exec core.DBExecutor, notFoundErr error, query string, args ...interface{}) error {
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
