package database

import (
	"context"
	"database/sql"
	"strings"
)

// SqlDatabase implements Database for *sql.DB.
type SqlDatabase struct {
	db *sql.DB
}

// NewSqlDatabase creates a new SqlDatabase.
func NewSqlDatabase(db *sql.DB) *SqlDatabase {
	return &SqlDatabase{db: db}
}

// DB exposes the underlying handle for pool tuning and stats.
func (s *SqlDatabase) DB() *sql.DB { return s.db }

// QueryContext executes a query that returns rows.
func (s *SqlDatabase) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &SqlRows{rows: rows}, nil
}

// ExecContext executes a query without returning rows.
func (s *SqlDatabase) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	return s.db.ExecContext(ctx, query, args...) // database/sql.Result implements Result
}

// BeginTx starts a transaction.
func (s *SqlDatabase) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &SqlTx{tx: tx}, nil
}

// PingContext verifies the connection to the database is alive.
func (s *SqlDatabase) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SqlDatabase) Close() error { return s.db.Close() }

// SqlTx implements Tx for *sql.Tx. database/sql binds the context at
// BeginTx, so the contexts passed to Commit and Rollback are unused.
type SqlTx struct {
	tx *sql.Tx
}

func (t *SqlTx) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &SqlRows{rows: rows}, nil
}

func (t *SqlTx) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *SqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *SqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

// SqlRows implements Rows for *sql.Rows.
type SqlRows struct {
	rows  *sql.Rows
	types []*sql.ColumnType
}

// Next prepares the next result row for reading.
func (s *SqlRows) Next() bool { return s.rows.Next() }

// Scan copies the columns from the current row into the provided destinations.
func (s *SqlRows) Scan(dest ...any) error { return s.rows.Scan(dest...) }

// Close closes the rows iterator.
func (s *SqlRows) Close() error { return s.rows.Close() }

// Err returns the error, if any, that was encountered during iteration.
func (s *SqlRows) Err() error { return s.rows.Err() }

// Columns returns the column names.
func (s *SqlRows) Columns() ([]string, error) { return s.rows.Columns() }

// Values scans the current row into driver values. database/sql may return
// []byte for text columns; those become strings unless the column is
// declared binary.
func (s *SqlRows) Values() ([]any, error) {
	if s.types == nil {
		types, err := s.rows.ColumnTypes()
		if err != nil {
			return nil, err
		}
		s.types = types
	}
	vals := make([]any, len(s.types))
	ptrs := make([]any, len(s.types))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range vals {
		b, ok := v.([]byte)
		if !ok {
			continue
		}
		if binaryTypes[strings.ToUpper(s.types[i].DatabaseTypeName())] {
			vals[i] = append([]byte(nil), b...)
		} else {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

var binaryTypes = map[string]bool{
	"BLOB": true, "BYTEA": true, "BINARY": true, "VARBINARY": true,
	"TINYBLOB": true, "MEDIUMBLOB": true, "LONGBLOB": true,
}

// Assert that SqlDatabase implements the Database interface.
var _ Database = (*SqlDatabase)(nil)
