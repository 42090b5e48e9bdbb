package database

import (
	"context"
	"fmt"
	"slices"
)

// Database is the execution side of a connection. SQL handed to it is
// already fully escaped; no bind arguments are used by this module, but the
// variadic args are kept so drivers can be used directly.
type Database interface {
	Querier
	BeginTx(ctx context.Context) (Tx, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Querier is implemented by both Database and Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (Result, error)
}

type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Result mirrors database/sql.Result.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Columns() ([]string, error)
	// Values returns the current row as driver values.
	Values() ([]any, error)
	Err() error
}

// FetchAll drains rows into column → value maps and closes them.
func FetchAll(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if i < len(vals) {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FetchSingle returns the first column of the first row, or nil when there
// are no rows.
func FetchSingle(rows Rows) (any, error) {
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	vals, err := rows.Values()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals[0], nil
}

// KeyValue is one row of FetchPairs.
type KeyValue struct {
	Key   any
	Value any
}

// FetchPairs drains rows into key → value pairs in row order and closes
// them. With both column names empty the first column is the key and the
// second the value.
func FetchPairs(rows Rows, key, value string) ([]KeyValue, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	ki, vi, err := pairColumns(cols, key, value)
	if err != nil {
		return nil, err
	}
	var out []KeyValue
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, KeyValue{Key: vals[ki], Value: vals[vi]})
	}
	return out, rows.Err()
}

func pairColumns(cols []string, key, value string) (int, int, error) {
	if key == "" && value == "" {
		if len(cols) < 2 {
			return 0, 0, fmt.Errorf("fetch pairs: result has %d column(s), need two", len(cols))
		}
		return 0, 1, nil
	}
	ki, vi := slices.Index(cols, key), slices.Index(cols, value)
	if ki < 0 {
		return 0, 0, fmt.Errorf("fetch pairs: unknown key column %q", key)
	}
	if vi < 0 {
		return 0, 0, fmt.Errorf("fetch pairs: unknown value column %q", value)
	}
	return ki, vi, nil
}
