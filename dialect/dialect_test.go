package dialect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifierDoublesQuoteChar(t *testing.T) {
	assert.Equal(t, "`users`", MySQL{}.QuoteIdentifier("users"))
	assert.Equal(t, "`a``b`", MySQL{}.QuoteIdentifier("a`b"))
	assert.Equal(t, `"a""b"`, Postgres{}.QuoteIdentifier(`a"b`))
	assert.Equal(t, `"it's"`, SQLite{}.QuoteIdentifier("it's"))
}

func TestEscapeString(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		in      string
		want    string
	}{
		{"mysql quote", NewMySQLDialect(), "O'Reilly", `'O\'Reilly'`},
		{"mysql backslash", NewMySQLDialect(), `a\b`, `'a\\b'`},
		{"mysql newline", NewMySQLDialect(), "a\nb", `'a\nb'`},
		{"postgres quote", NewPostgresDialect(), "O'Reilly", "'O''Reilly'"},
		{"postgres backslash", NewPostgresDialect(), `a\b`, `'a\b'`},
		{"sqlite quote", NewSQLiteDialect(), "it's", "'it''s'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.EscapeString(tt.in))
		})
	}
}

func TestEscapeTemporal(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	withMicros := ts.Add(1500 * time.Microsecond)

	for _, d := range []Dialect{NewMySQLDialect(), NewPostgresDialect(), NewSQLiteDialect()} {
		assert.Equal(t, "'2024-03-09'", d.EscapeDate(ts), d.Name())
		assert.Equal(t, "'2024-03-09 14:05:07'", d.EscapeDateTime(ts), d.Name())
		assert.Equal(t, "'2024-03-09 14:05:07.001500'", d.EscapeDateTime(withMicros), d.Name())
		assert.Equal(t, "'14:05:07'", d.EscapeTime(ts), d.Name())
	}
}

func TestEscapeBinaryAndBool(t *testing.T) {
	b := []byte{0x01, 0xab}
	assert.Equal(t, "X'01ab'", MySQL{}.EscapeBinary(b))
	assert.Equal(t, `'\x01ab'::bytea`, Postgres{}.EscapeBinary(b))
	assert.Equal(t, "X'01ab'", SQLite{}.EscapeBinary(b))

	assert.Equal(t, "1", MySQL{}.EscapeBool(true))
	assert.Equal(t, "FALSE", Postgres{}.EscapeBool(false))
}

func TestApplyLimit(t *testing.T) {
	tests := []struct {
		name          string
		dialect       Dialect
		limit, offset int
		want          string
	}{
		{"mysql none", NewMySQLDialect(), -1, 0, "SELECT 1"},
		{"mysql limit", NewMySQLDialect(), 10, 0, "SELECT 1 LIMIT 10"},
		{"mysql both", NewMySQLDialect(), 10, 20, "SELECT 1 LIMIT 10 OFFSET 20"},
		{"mysql offset only", NewMySQLDialect(), -1, 5, "SELECT 1 LIMIT 18446744073709551615 OFFSET 5"},
		{"postgres offset only", NewPostgresDialect(), -1, 5, "SELECT 1 OFFSET 5"},
		{"postgres zero limit", NewPostgresDialect(), 0, 0, "SELECT 1 LIMIT 0"},
		{"sqlite offset only", NewSQLiteDialect(), -1, 5, "SELECT 1 LIMIT -1 OFFSET 5"},
		{"sqlite both", NewSQLiteDialect(), 3, 6, "SELECT 1 LIMIT 3 OFFSET 6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.ApplyLimit("SELECT 1", tt.limit, tt.offset))
		})
	}
}

func TestLookup(t *testing.T) {
	d, err := Lookup("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = Lookup("tidb")
	require.NoError(t, err)
	assert.Equal(t, "tidb", d.Name())
	assert.Equal(t, "`x`", d.QuoteIdentifier("x"))

	_, err = Lookup("oracle")
	assert.Error(t, err)
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$3", Postgres{}.Placeholder(3))
	assert.Equal(t, "?", MySQL{}.Placeholder(3))
}
