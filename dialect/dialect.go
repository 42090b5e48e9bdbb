package dialect

import (
	"fmt"
	"strings"
	"time"
)

// Dialect is the backend capability the translator escapes through. Every
// backend-specific literal rule lives behind this interface; the translator
// never branches on the backend itself.
type Dialect interface {
	Name() string

	// QuoteIdentifier quotes a single identifier segment. Occurrences of the
	// quote character inside name are doubled.
	QuoteIdentifier(name string) string

	EscapeString(s string) string
	EscapeBinary(b []byte) string
	EscapeBool(v bool) string
	EscapeDate(t time.Time) string
	EscapeDateTime(t time.Time) string
	EscapeTime(t time.Time) string
	Null() string

	// ApplyLimit appends the backend's LIMIT/OFFSET syntax to sql. A negative
	// limit means no limit; offset <= 0 means no offset.
	ApplyLimit(sql string, limit, offset int) string

	// Placeholder returns the driver bind parameter for the nth argument.
	Placeholder(n int) string
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
	timeLayout     = "15:04:05"
	fracLayout     = ".000000"
)

// Lookup resolves a dialect by its configuration name.
func Lookup(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "mariadb":
		return NewMySQLDialect(), nil
	case "tidb":
		return NewTiDBDialect(), nil
	case "postgres", "postgresql", "pgx", "pg":
		return NewPostgresDialect(), nil
	case "sqlite", "sqlite3":
		return NewSQLiteDialect(), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

func quoteWith(q byte, name string) string {
	var sb strings.Builder
	sb.Grow(len(name) + 2)
	sb.WriteByte(q)
	for i := 0; i < len(name); i++ {
		if name[i] == q {
			sb.WriteByte(q)
		}
		sb.WriteByte(name[i])
	}
	sb.WriteByte(q)
	return sb.String()
}

func quoteDoubled(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatDateTime(t time.Time) string {
	if t.Nanosecond() != 0 {
		return t.Format(dateTimeLayout + fracLayout)
	}
	return t.Format(dateTimeLayout)
}

func formatTime(t time.Time) string {
	if t.Nanosecond() != 0 {
		return t.Format(timeLayout + fracLayout)
	}
	return t.Format(timeLayout)
}
