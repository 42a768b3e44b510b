// Package txutil propagates a single *sql.Tx through a context.Context so
// that nested repository calls within one WithTransaction share the same
// transaction, against an injected *sql.DB rather than a package global.
package txutil

import (
	"context"
	"database/sql"
)

type txKeyType struct{}

var txKey = txKeyType{}

// Queryer is satisfied by both *sql.DB and *sql.Tx, letting repository
// code run unmodified whether or not it is inside a transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Statement returns the *sql.Tx stashed in ctx, or db if none is present.
func Statement(ctx context.Context, db *sql.DB) Queryer {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return db
}

// WithTransaction runs fn within a single database transaction on db. If a
// transaction is already active on ctx, fn reuses it instead of nesting
// (transaction propagation). On fn's error or panic, the transaction is
// rolled back; otherwise it is committed.
func WithTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	ctx = context.WithValue(ctx, txKey, tx)

	if err = fn(ctx); err != nil {
		return err
	}

	return tx.Commit()
}
