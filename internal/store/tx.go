package store

import (
	"context"
	"database/sql"
	"time"
)

const defaultTxTimeout = 5 * time.Second

type txKey struct{}

// WithTx stores a SQL transaction in context for downstream repository usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom extracts a SQL transaction from context if present.
func TxFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, or db.
func conn(ctx context.Context, db *sql.DB) querier {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return db
}

// TxManager runs units of work in a single database transaction.
type TxManager struct {
	db      *sql.DB
	timeout time.Duration
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db, timeout: defaultTxTimeout}
}

// RunInTx calls fn with a context carrying a new transaction. The transaction
// commits when fn returns nil and rolls back otherwise. Nested calls join the
// outer transaction.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := TxFrom(ctx); ok {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
