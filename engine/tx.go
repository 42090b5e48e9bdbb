package engine

import (
	"context"
	"errors"

	"github.com/Konsultn-Engineering/esql/database"
)

var (
	ErrTxActive    = errors.New("engine: transaction already active")
	ErrNoTx        = errors.New("engine: no active transaction")
	errNoSavepoint = errors.New("engine: savepoint requires an active transaction")
)

// Begin starts a transaction. With a savepoint name it sets a savepoint
// inside the open transaction instead.
func (e *Engine) Begin(ctx context.Context, savepoint string) error {
	if savepoint != "" {
		return e.savepoint(ctx, "SAVEPOINT %n", savepoint)
	}

	conn, err := e.connection(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tx != nil {
		return ErrTxActive
	}
	tx, err := conn.Database().BeginTx(ctx)
	if err != nil {
		return err
	}
	e.tx = tx
	e.logger.Debug("transaction started")
	return nil
}

// Commit commits the transaction, or releases the named savepoint.
func (e *Engine) Commit(ctx context.Context, savepoint string) error {
	if savepoint != "" {
		return e.savepoint(ctx, "RELEASE SAVEPOINT %n", savepoint)
	}
	tx, err := e.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	e.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls the transaction back, or back to the named savepoint.
func (e *Engine) Rollback(ctx context.Context, savepoint string) error {
	if savepoint != "" {
		return e.savepoint(ctx, "ROLLBACK TO SAVEPOINT %n", savepoint)
	}
	tx, err := e.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Rollback(ctx); err != nil {
		return err
	}
	e.logger.Debug("transaction rolled back")
	return nil
}

// InTransaction reports whether a transaction is open.
func (e *Engine) InTransaction() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tx != nil
}

func (e *Engine) takeTx() (database.Tx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tx == nil {
		return nil, ErrNoTx
	}
	tx := e.tx
	e.tx = nil
	return tx, nil
}

func (e *Engine) savepoint(ctx context.Context, tpl, name string) error {
	if !e.InTransaction() {
		return errNoSavepoint
	}
	sql, err := e.translator.Translate([]string{tpl}, []any{name})
	if err != nil {
		return err
	}
	_, err = e.NativeExec(ctx, sql)
	return err
}
