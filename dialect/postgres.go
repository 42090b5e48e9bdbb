package dialect

import (
	"encoding/hex"
	"strconv"
	"time"
)

type Postgres struct{}

func NewPostgresDialect() Dialect {
	return &Postgres{}
}

func (p Postgres) Name() string {
	return "postgres"
}

func (p Postgres) QuoteIdentifier(name string) string {
	return quoteWith('"', name)
}

// EscapeString assumes standard_conforming_strings=on, the default since 9.1.
func (p Postgres) EscapeString(s string) string {
	return quoteDoubled(s)
}

func (p Postgres) EscapeBinary(b []byte) string {
	return `'\x` + hex.EncodeToString(b) + `'::bytea`
}

func (p Postgres) EscapeBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (p Postgres) EscapeDate(t time.Time) string {
	return "'" + t.Format(dateLayout) + "'"
}

func (p Postgres) EscapeDateTime(t time.Time) string {
	return "'" + formatDateTime(t) + "'"
}

func (p Postgres) EscapeTime(t time.Time) string {
	return "'" + formatTime(t) + "'"
}

func (p Postgres) Null() string {
	return "NULL"
}

func (p Postgres) ApplyLimit(sql string, limit, offset int) string {
	if limit >= 0 {
		sql += " LIMIT " + strconv.Itoa(limit)
	}
	if offset > 0 {
		sql += " OFFSET " + strconv.Itoa(offset)
	}
	return sql
}

func (p Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
