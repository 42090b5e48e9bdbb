// Package datasource wraps a table or a SELECT statement so it can be
// narrowed, sorted, paged and counted without rewriting its SQL.
package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Konsultn-Engineering/esql/database"
	"github.com/Konsultn-Engineering/esql/query"
	"github.com/Konsultn-Engineering/esql/translator"
)

// Conn is the part of an engine a DataSource needs.
type Conn interface {
	Translator() *translator.Translator
	NativeQuery(ctx context.Context, sql string) (database.Rows, error)
	Command() *query.Fluent
}

type DataSource struct {
	conn    Conn
	source  translator.SubTemplate
	cols    translator.Pairs
	conds   []any
	sorting translator.Pairs
	limit   int
	offset  int

	count      *int64
	totalCount *int64
}

// New wraps source. A string without whitespace is a table name, any other
// string is SQL and is used as a derived table; an Expander such as a
// template or a fluent builder is expanded into a derived table.
func New(conn Conn, source any) *DataSource {
	ds := &DataSource{conn: conn, limit: -1}
	switch s := source.(type) {
	case string:
		if strings.ContainsAny(s, " \t\r\n") {
			ds.source = translator.Sub("(%SQL) t", s)
		} else {
			ds.source = translator.Sub("%n", s)
		}
	case translator.Expander:
		ds.source = translator.Sub("(%ex) t", s)
	default:
		ds.source = translator.Sub("%n", source)
	}
	return ds
}

// Select adds a column with an optional alias.
func (ds *DataSource) Select(col string, alias string) *DataSource {
	ds.cols = ds.cols.Set(col, alias)
	ds.reset()
	return ds
}

// SelectAll adds several columns without aliases.
func (ds *DataSource) SelectAll(cols ...string) *DataSource {
	for _, c := range cols {
		ds.cols = ds.cols.Set(c, nil)
	}
	ds.reset()
	return ds
}

// Where adds a condition. Several arguments form a template with its
// arguments; a single one is any %and condition.
func (ds *DataSource) Where(args ...any) *DataSource {
	switch len(args) {
	case 0:
		return ds
	case 1:
		ds.conds = append(ds.conds, args[0])
	default:
		ds.conds = append(ds.conds, args)
	}
	ds.reset()
	return ds
}

// OrderBy sorts by col; a later call for the same column replaces its
// direction.
func (ds *DataSource) OrderBy(col string, dir string) *DataSource {
	ds.sorting = ds.sorting.Set(col, dir)
	ds.reset()
	return ds
}

// ApplyLimit pages the result. A negative limit means no limit.
func (ds *DataSource) ApplyLimit(limit, offset int) *DataSource {
	ds.limit, ds.offset = limit, offset
	ds.reset()
	return ds
}

func (ds *DataSource) reset() {
	ds.count = nil
}

// Release drops cached counts.
func (ds *DataSource) Release() {
	ds.count = nil
	ds.totalCount = nil
}

// Expand returns the SELECT over the source with every applied column,
// condition, sort and page.
func (ds *DataSource) Expand() ([]string, []any, error) {
	var cols any = "*"
	if len(ds.cols) > 0 {
		cols = ds.cols
	}
	tpl := translator.SQL("SELECT %n FROM %ex", cols, ds.source).
		AppendIf(len(ds.conds) > 0, "WHERE %and", ds.conds).
		AppendIf(len(ds.sorting) > 0, "ORDER BY %by", ds.sorting)
	if ds.limit >= 0 || ds.offset > 0 {
		var limit any
		if ds.limit >= 0 {
			limit = ds.limit
		}
		tpl.Append("%lmt %ofs", limit, ds.offset)
	}
	return tpl.Expand()
}

func (ds *DataSource) SQL() (string, error) {
	return ds.conn.Translator().TranslateTemplate(ds)
}

// String returns the SQL, or "" when it cannot be translated.
func (ds *DataSource) String() string {
	sql, err := ds.SQL()
	if err != nil {
		return ""
	}
	return sql
}

// Fetch runs the query and returns every row.
func (ds *DataSource) Fetch(ctx context.Context) ([]map[string]any, error) {
	sql, err := ds.SQL()
	if err != nil {
		return nil, err
	}
	rows, err := ds.conn.NativeQuery(ctx, sql)
	if err != nil {
		return nil, err
	}
	return database.FetchAll(rows)
}

// FetchPairs runs the query and returns key → value pairs; see
// database.FetchPairs.
func (ds *DataSource) FetchPairs(ctx context.Context, key, value string) ([]database.KeyValue, error) {
	sql, err := ds.SQL()
	if err != nil {
		return nil, err
	}
	rows, err := ds.conn.NativeQuery(ctx, sql)
	if err != nil {
		return nil, err
	}
	return database.FetchPairs(rows, key, value)
}

// Count returns the number of rows Fetch would return. The value is cached
// until the data source is changed or released.
func (ds *DataSource) Count(ctx context.Context) (int64, error) {
	if ds.count == nil {
		n, err := ds.countOf(ctx, "SELECT COUNT(*) FROM (%ex) t", ds)
		if err != nil {
			return 0, err
		}
		ds.count = &n
	}
	return *ds.count, nil
}

// TotalCount counts the rows of the source, ignoring conditions and
// paging. It is cached until Release.
func (ds *DataSource) TotalCount(ctx context.Context) (int64, error) {
	if ds.totalCount == nil {
		n, err := ds.countOf(ctx, "SELECT COUNT(*) FROM %ex", ds.source)
		if err != nil {
			return 0, err
		}
		ds.totalCount = &n
	}
	return *ds.totalCount, nil
}

func (ds *DataSource) countOf(ctx context.Context, tpl string, e translator.Expander) (int64, error) {
	sql, err := ds.conn.Translator().Translate([]string{tpl}, []any{e})
	if err != nil {
		return 0, err
	}
	rows, err := ds.conn.NativeQuery(ctx, sql)
	if err != nil {
		return 0, err
	}
	v, err := database.FetchSingle(rows)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// toInt64 converts a COUNT(*) cell. Drivers return it as an integer, a
// float or decimal text.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		if n > 1<<63-1 {
			return 0, fmt.Errorf("datasource: count %d overflows int64", n)
		}
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return parseCount(n)
	case []byte:
		return parseCount(string(n))
	}
	return 0, fmt.Errorf("datasource: count has unexpected type %T", v)
}

func parseCount(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("datasource: parse count: %w", err)
	}
	return n, nil
}

// ToFluent wraps the data source in a fluent SELECT so it can be refined
// further.
func (ds *DataSource) ToFluent() *query.Fluent {
	return ds.conn.Command().Select("*").From("(%ex) t", ds)
}
