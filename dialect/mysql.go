package dialect

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

type MySQL struct{}

func NewMySQLDialect() Dialect {
	return &MySQL{}
}

func (m MySQL) Name() string {
	return "mysql"
}

func (m MySQL) QuoteIdentifier(name string) string {
	return quoteWith('`', name)
}

// mysqlEscaper covers the characters MySQL treats specially inside quoted
// strings with the default sql_mode.
var mysqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

func (m MySQL) EscapeString(s string) string {
	return "'" + mysqlEscaper.Replace(s) + "'"
}

func (m MySQL) EscapeBinary(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

func (m MySQL) EscapeBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (m MySQL) EscapeDate(t time.Time) string {
	return "'" + t.Format(dateLayout) + "'"
}

func (m MySQL) EscapeDateTime(t time.Time) string {
	return "'" + formatDateTime(t) + "'"
}

func (m MySQL) EscapeTime(t time.Time) string {
	return "'" + formatTime(t) + "'"
}

func (m MySQL) Null() string {
	return "NULL"
}

func (m MySQL) ApplyLimit(sql string, limit, offset int) string {
	if limit < 0 && offset <= 0 {
		return sql
	}
	if limit < 0 {
		// MySQL has no OFFSET without LIMIT; use the documented maximum.
		sql += " LIMIT 18446744073709551615"
	} else {
		sql += " LIMIT " + strconv.Itoa(limit)
	}
	if offset > 0 {
		sql += " OFFSET " + strconv.Itoa(offset)
	}
	return sql
}

func (m MySQL) Placeholder(n int) string {
	return "?"
}
