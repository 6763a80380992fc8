package repository

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	mls_errors "mls-delivery/pkg/errors"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// translateErr maps driver errors onto the service error kinds. Anything
// that looks like a connectivity failure becomes ErrUnavailable so callers
// can distinguish "storage down" from a domain failure.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return mls_errors.ErrNotFound
	case isUniqueViolation(err):
		return mls_errors.ErrConflict
	case isForeignKeyViolation(err):
		return mls_errors.ErrNotFound
	case isConnectivityErr(err):
		return fmt.Errorf("%w: %s", mls_errors.ErrUnavailable, "postgres unreachable")
	default:
		return err
	}
}

func isConnectivityErr(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// withTx runs fn inside a transaction, rolling back on error or panic.
func withTx(ctx context.Context, db *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return translateErr(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return translateErr(tx.Commit(ctx))
}
