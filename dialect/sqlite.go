package dialect

import (
	"encoding/hex"
	"strconv"
	"time"
)

type SQLite struct{}

func NewSQLiteDialect() Dialect {
	return &SQLite{}
}

func (s SQLite) Name() string {
	return "sqlite"
}

func (s SQLite) QuoteIdentifier(name string) string {
	return quoteWith('"', name)
}

func (s SQLite) EscapeString(v string) string {
	return quoteDoubled(v)
}

func (s SQLite) EscapeBinary(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

func (s SQLite) EscapeBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (s SQLite) EscapeDate(t time.Time) string {
	return "'" + t.Format(dateLayout) + "'"
}

func (s SQLite) EscapeDateTime(t time.Time) string {
	return "'" + formatDateTime(t) + "'"
}

func (s SQLite) EscapeTime(t time.Time) string {
	return "'" + formatTime(t) + "'"
}

func (s SQLite) Null() string {
	return "NULL"
}

func (s SQLite) ApplyLimit(sql string, limit, offset int) string {
	if limit < 0 && offset <= 0 {
		return sql
	}
	sql += " LIMIT " + strconv.Itoa(max(limit, -1))
	if offset > 0 {
		sql += " OFFSET " + strconv.Itoa(offset)
	}
	return sql
}

func (s SQLite) Placeholder(n int) string {
	return "?"
}
