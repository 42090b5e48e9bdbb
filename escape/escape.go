// Package escape turns typed Go values into SQL literal text for a given
// dialect. Every function here is pure: the same value, kind and dialect
// always produce the same text.
package escape

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/Konsultn-Engineering/esql/dialect"
	"github.com/Konsultn-Engineering/esql/modifier"
	"github.com/Konsultn-Engineering/esql/sqlerr"
)

// Literal is SQL text inserted verbatim wherever a value is escaped with
// automatic typing, e.g. NOW() inside an assignment list.
type Literal string

// Value escapes v as kind. NULL-like values (nil, nil pointers, invalid
// sql.Null* values) escape to the dialect NULL literal for every kind
// except modifier.Raw, which inserts v unchanged.
func Value(v any, kind modifier.Kind, d dialect.Dialect) (string, error) {
	if kind == modifier.Raw {
		return raw(v)
	}
	if !kind.Scalar() {
		return "", sqlerr.New(sqlerr.CodeUnknownModifier, "%s is not a value modifier", kind)
	}

	v, err := normalize(v)
	if err != nil {
		return "", err
	}
	if v == nil {
		return d.Null(), nil
	}

	switch kind {
	case modifier.Identifier:
		s, ok := v.(string)
		if !ok || s == "" {
			return "", mismatch(v, kind)
		}
		return Identifier(s, d), nil

	case modifier.Text, modifier.TextOrNull:
		s, ok := text(v)
		if !ok {
			return "", mismatch(v, kind)
		}
		if s == "" && kind == modifier.TextOrNull {
			return d.Null(), nil
		}
		return d.EscapeString(s), nil

	case modifier.Bool:
		b, ok := boolean(v)
		if !ok {
			return "", mismatch(v, kind)
		}
		return d.EscapeBool(b), nil

	case modifier.Integer:
		s, ok := integer(v)
		if !ok {
			return "", mismatch(v, kind)
		}
		return s, nil

	case modifier.Float:
		s, ok := float(v)
		if !ok {
			return "", mismatch(v, kind)
		}
		return s, nil

	case modifier.Date, modifier.DateTime, modifier.Time:
		t, ok := temporal(v, kind)
		if !ok {
			return "", mismatch(v, kind)
		}
		switch kind {
		case modifier.Date:
			return d.EscapeDate(t), nil
		case modifier.Time:
			return d.EscapeTime(t), nil
		}
		return d.EscapeDateTime(t), nil

	case modifier.Binary:
		b, ok := binary(v)
		if !ok {
			return "", mismatch(v, kind)
		}
		return d.EscapeBinary(b), nil

	case modifier.Auto:
		return auto(v, d)
	}

	return "", sqlerr.New(sqlerr.CodeUnknownModifier, "%s is not a value modifier", kind)
}

// Identifier quotes every dotted segment of name independently. A "*"
// segment is left bare so "t.*" stays a wildcard.
func Identifier(name string, d dialect.Dialect) string {
	if name == "*" {
		return name
	}
	segments := strings.Split(name, ".")
	for i, seg := range segments {
		if seg == "*" {
			continue
		}
		segments[i] = d.QuoteIdentifier(seg)
	}
	return strings.Join(segments, ".")
}

// IsNull reports whether v escapes to NULL.
func IsNull(v any) bool {
	n, err := normalize(v)
	return err == nil && n == nil
}

func mismatch(v any, kind modifier.Kind) error {
	return sqlerr.New(sqlerr.CodeTypeMismatch, "%T is not valid for %s", v, kind)
}

// normalize strips pointers and driver.Valuer wrappers down to a plain value.
func normalize(v any) (any, error) {
	for {
		switch x := v.(type) {
		case nil:
			return nil, nil
		case string, []byte, bool, time.Time, Literal, uuid.UUID, ulid.ULID, decimal.Decimal:
			return v, nil
		case decimal.NullDecimal:
			if !x.Valid {
				return nil, nil
			}
			return x.Decimal, nil
		case uuid.NullUUID:
			if !x.Valid {
				return nil, nil
			}
			return x.UUID, nil
		}

		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, nil
			}
			v = rv.Elem().Interface()
			continue
		}

		if valuer, ok := v.(driver.Valuer); ok {
			dv, err := valuer.Value()
			if err != nil {
				return nil, sqlerr.New(sqlerr.CodeTypeMismatch, "%T: %w", v, err)
			}
			v = dv
			continue
		}
		return v, nil
	}
}

func raw(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case Literal:
		return string(x), nil
	case []byte:
		return string(x), nil
	case bool:
		return "", mismatch(v, modifier.Raw)
	case fmt.Stringer:
		return x.String(), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if s, ok := float(v); ok {
			return s, nil
		}
	}
	return "", mismatch(v, modifier.Raw)
}

func text(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case Literal:
		return string(x), true
	case []byte:
		return string(x), true
	case uuid.UUID:
		return x.String(), true
	case ulid.ULID:
		return x.String(), true
	case decimal.Decimal:
		return x.String(), true
	case bool:
		return "", false
	case fmt.Stringer:
		return x.String(), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return float(v)
	}
	return "", false
}

func boolean(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, true
	}
	return false, false
}

// integer re-serializes v through strconv so malformed numeric text can
// never reach the SQL.
func integer(v any) (string, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		if !x.IsInteger() {
			return "", false
		}
		return x.String(), true
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return strconv.FormatUint(n, 10), true
		}
		return "", false
	case bool:
		return "", false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', 0, 64), true
	}
	return "", false
}

func float(v any) (string, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String(), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return "", false
		}
		return d.String(), true
	case bool:
		return "", false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, rv.Type().Bits()), true
	}
	return "", false
}

var (
	dateLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	timeLayouts = []string{
		"15:04:05.999999999",
		"15:04:05",
		"15:04",
	}
)

// temporal accepts time.Time, unix seconds, or text in one of the layouts
// above. Parsed text is re-formatted by the dialect, never copied.
func temporal(v any, kind modifier.Kind) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		layouts := dateLayouts
		if kind == modifier.Time {
			layouts = append(append([]string{}, timeLayouts...), dateLayouts...)
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case bool:
		return time.Time{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Unix(rv.Int(), 0).UTC(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return time.Time{}, false
		}
		return time.Unix(int64(rv.Uint()), 0).UTC(), true
	}
	return time.Time{}, false
}

func binary(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	case uuid.UUID:
		return x[:], true
	case ulid.ULID:
		return x[:], true
	}
	return nil, false
}

func auto(v any, d dialect.Dialect) (string, error) {
	switch x := v.(type) {
	case Literal:
		return string(x), nil
	case string:
		return d.EscapeString(x), nil
	case []byte:
		return d.EscapeBinary(x), nil
	case bool:
		return d.EscapeBool(x), nil
	case time.Time:
		return d.EscapeDateTime(x), nil
	case decimal.Decimal:
		return x.String(), nil
	case uuid.UUID:
		return d.EscapeString(x.String()), nil
	case ulid.ULID:
		return d.EscapeString(x.String()), nil
	case fmt.Stringer:
		return d.EscapeString(x.String()), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return d.EscapeBool(rv.Bool()), nil
	case reflect.String:
		return d.EscapeString(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		s, _ := integer(v)
		return s, nil
	case reflect.Float32, reflect.Float64:
		if s, ok := float(v); ok {
			return s, nil
		}
	}
	return "", mismatch(v, modifier.Auto)
}
