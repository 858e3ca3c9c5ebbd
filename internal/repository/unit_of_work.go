package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// UnitOfWork wraps the begin/commit/rollback dance so that every
// multi-record transition (reservation + seat + event log +
// notification) is atomic by construction rather than by convention.
// State-machine operations receive the *sql.Tx and pass it to the
// repositories' ...Tx methods.
type UnitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork returns a UnitOfWork bound to the given database.
func NewUnitOfWork(db *sql.DB) *UnitOfWork { return &UnitOfWork{db: db} }

// DB exposes the underlying handle for plain reads that do not need a
// transaction.
func (u *UnitOfWork) DB() *sql.DB { return u.db }

// Do runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise; a rollback failure never masks
// fn's error.
func (u *UnitOfWork) Do(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
