package translator

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/Konsultn-Engineering/esql/escape"
	"github.com/Konsultn-Engineering/esql/modifier"
	"github.com/Konsultn-Engineering/esql/sqlerr"
)

func mismatch(format string, args ...any) error {
	return sqlerr.New(sqlerr.CodeTypeMismatch, format, args...)
}

func (t *Translator) render(kind modifier.Kind, v any, depth int) (string, error) {
	switch kind {
	case modifier.Identifier:
		return t.identifiers(v)
	case modifier.List:
		return t.list(v, depth)
	case modifier.Assign:
		return t.assignments(v, depth)
	case modifier.Values:
		return t.values(v, depth)
	case modifier.MultiValues:
		return t.multiValues(v, depth)
	case modifier.And:
		return t.conjunction(v, " AND ", "1=1", depth)
	case modifier.Or:
		return t.conjunction(v, " OR ", "1=0", depth)
	case modifier.OrderBy:
		return t.orderBy(v)
	case modifier.Expand:
		return t.expandValue(v, depth)
	}
	if kind.Scalar() {
		return t.scalar(v, kind, depth)
	}
	return "", sqlerr.New(sqlerr.CodeUnknownModifier, "%s cannot render a value", kind)
}

// scalar escapes v as kind. A slice renders as its escaped elements joined
// by ", " without parentheses; an Expander is translated in place.
func (t *Translator) scalar(v any, kind modifier.Kind, depth int) (string, error) {
	if kind == modifier.Identifier {
		return t.identifiers(v)
	}
	if e, ok := v.(Expander); ok {
		return t.expandValue(e, depth)
	}
	if items, ok := sliceOf(v); ok && kind != modifier.Raw {
		parts := make([]string, len(items))
		for i, item := range items {
			s, err := t.scalar(item, kind, depth)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ", "), nil
	}
	return escape.Value(v, kind, t.dialect)
}

// value renders one pair or list value under kind, which may be composite
// when a key carries a suffix such as "ids%in".
func (t *Translator) value(v any, kind modifier.Kind, depth int) (string, error) {
	if kind.Scalar() {
		return t.scalar(v, kind, depth)
	}
	return t.render(kind, v, depth)
}

func (t *Translator) identifier(name string) (string, error) {
	if name == "" {
		return "", mismatch("empty identifier")
	}
	if strings.IndexByte(name, ':') >= 0 {
		resolved, err := t.subst.Replace(name)
		if err != nil {
			return "", err
		}
		name = resolved
	}
	return escape.Identifier(name, t.dialect), nil
}

// identifiers renders %n: a name, a list of names, or Pairs of
// column → alias.
func (t *Translator) identifiers(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return t.dialect.Null(), nil
	case string:
		return t.identifier(x)
	}

	if pairs, ok := pairsOf(v); ok {
		parts := make([]string, 0, len(pairs))
		for _, p := range pairs {
			col, err := t.identifier(p.Key)
			if err != nil {
				return "", err
			}
			switch alias := p.Value.(type) {
			case nil:
			case string:
				if alias != "" {
					a, err := t.identifier(alias)
					if err != nil {
						return "", err
					}
					col += " AS " + a
				}
			default:
				return "", mismatch("alias for %q is %T, not string", p.Key, p.Value)
			}
			parts = append(parts, col)
		}
		if len(parts) == 0 {
			return "", mismatch("empty identifier list")
		}
		return strings.Join(parts, ", "), nil
	}

	items, ok := sliceOf(v)
	if !ok {
		return "", mismatch("%T is not valid for %s", v, modifier.Identifier)
	}
	if len(items) == 0 {
		return "", mismatch("empty identifier list")
	}
	parts := make([]string, len(items))
	for i, item := range items {
		s, err := t.identifiers(item)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, ", "), nil
}

// splitKey separates a pair key from its optional modifier suffix.
func splitKey(key string, fallback modifier.Kind) (string, modifier.Kind, error) {
	i := strings.IndexByte(key, '%')
	if i < 0 {
		return key, fallback, nil
	}
	kind, ok := modifier.Lookup(key[i+1:])
	if !ok || !kind.Consumes() || kind == modifier.If || kind == modifier.Limit || kind == modifier.Offset {
		return "", modifier.Invalid, sqlerr.New(sqlerr.CodeUnknownModifier, "unknown modifier in key %q", key).At(key[i:], -1)
	}
	return key[:i], kind, nil
}

// list renders %l / %in: "(a, b, c)". An empty list renders "(NULL)" so
// that "x IN %in" stays valid SQL and matches nothing.
func (t *Translator) list(v any, depth int) (string, error) {
	if e, ok := v.(Expander); ok {
		s, err := t.expandValue(e, depth)
		if err != nil {
			return "", err
		}
		return "(" + s + ")", nil
	}

	if pairs, ok := pairsOf(v); ok {
		parts := make([]string, len(pairs))
		for i, p := range pairs {
			_, kind, err := splitKey(p.Key, modifier.Auto)
			if err != nil {
				return "", err
			}
			if parts[i], err = t.value(p.Value, kind, depth); err != nil {
				return "", err
			}
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	}

	items, ok := sliceOf(v)
	if !ok {
		s, err := t.scalar(v, modifier.Auto, depth)
		if err != nil {
			return "", err
		}
		return "(" + s + ")", nil
	}
	if len(items) == 0 {
		return "(" + t.dialect.Null() + ")", nil
	}
	parts := make([]string, len(items))
	for i, item := range items {
		s, err := t.scalar(item, modifier.Auto, depth)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

type column struct {
	name  string
	value string
}

func (t *Translator) columns(v any, depth int) ([]column, error) {
	pairs, ok := pairsOf(v)
	if !ok {
		return nil, mismatch("%T is not a column → value map", v)
	}
	if len(pairs) == 0 {
		return nil, mismatch("empty column → value map")
	}
	cols := make([]column, len(pairs))
	for i, p := range pairs {
		key, kind, err := splitKey(p.Key, modifier.Auto)
		if err != nil {
			return nil, err
		}
		if cols[i].name, err = t.identifier(key); err != nil {
			return nil, err
		}
		if cols[i].value, err = t.value(p.Value, kind, depth); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

// assignments renders %a: "`a` = 1, `b` = 2".
func (t *Translator) assignments(v any, depth int) (string, error) {
	cols, err := t.columns(v, depth)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.name + " = " + c.value
	}
	return strings.Join(parts, ", "), nil
}

// values renders %v: "(`a`, `b`) VALUES (1, 2)".
func (t *Translator) values(v any, depth int) (string, error) {
	cols, err := t.columns(v, depth)
	if err != nil {
		return "", err
	}
	names := make([]string, len(cols))
	vals := make([]string, len(cols))
	for i, c := range cols {
		names[i], vals[i] = c.name, c.value
	}
	return "(" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(vals, ", ") + ")", nil
}

// multiValues renders %m: "(`a`, `b`) VALUES (1, 2), (3, 4)". Every row
// must have the same keys in the same order as the first.
func (t *Translator) multiValues(v any, depth int) (string, error) {
	rows, ok := sliceOf(v)
	if !ok {
		return "", mismatch("%T is not a list of rows", v)
	}
	if len(rows) == 0 {
		return "", mismatch("empty row list")
	}

	var (
		names  []string
		tuples = make([]string, len(rows))
	)
	for r, row := range rows {
		pairs, ok := pairsOf(row)
		if !ok {
			return "", mismatch("row %d is %T, not a column → value map", r, row)
		}
		if r == 0 {
			for _, p := range pairs {
				key, _, err := splitKey(p.Key, modifier.Auto)
				if err != nil {
					return "", err
				}
				name, err := t.identifier(key)
				if err != nil {
					return "", err
				}
				names = append(names, name)
			}
		} else if !sameKeys(pairs, rows[0]) {
			return "", mismatch("row %d has different columns than row 0", r)
		}

		cols, err := t.columns(pairs, depth)
		if err != nil {
			return "", err
		}
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = c.value
		}
		tuples[r] = "(" + strings.Join(vals, ", ") + ")"
	}
	return "(" + strings.Join(names, ", ") + ") VALUES " + strings.Join(tuples, ", "), nil
}

func sameKeys(pairs Pairs, first any) bool {
	ref, _ := pairsOf(first)
	if len(ref) != len(pairs) {
		return false
	}
	for i := range ref {
		if ref[i].Key != pairs[i].Key {
			return false
		}
	}
	return true
}

// conjunction renders %and / %or. Every item is wrapped in parentheses;
// an empty list renders empty.
func (t *Translator) conjunction(v any, joiner, empty string, depth int) (string, error) {
	var items []any
	if pairs, ok := pairsOf(v); ok {
		for _, p := range pairs {
			items = append(items, p)
		}
	} else if list, ok := sliceOf(v); ok && !isTriple(list) {
		items = list
	} else if v != nil {
		items = []any{v}
	}

	if len(items) == 0 {
		return empty, nil
	}
	parts := make([]string, len(items))
	for i, item := range items {
		s, err := t.condition(item, depth)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + s + ")"
	}
	return strings.Join(parts, joiner), nil
}

func (t *Translator) condition(item any, depth int) (string, error) {
	switch x := item.(type) {
	case Cond:
		return t.compare(x.Column, x.Op, x.Value, depth)
	case Pair:
		return t.comparePair(x, depth)
	case Expander:
		return t.expandValue(x, depth)
	case string:
		return t.expand([]string{x}, nil, depth+1)
	}

	if pairs, ok := pairsOf(item); ok {
		if len(pairs) == 0 {
			return "1=1", nil
		}
		parts := make([]string, len(pairs))
		for i, p := range pairs {
			s, err := t.comparePair(p, depth)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, " AND "), nil
	}

	list, ok := sliceOf(item)
	if !ok || len(list) == 0 {
		return "", mismatch("%T is not a condition", item)
	}
	if isTriple(list) {
		return t.compare(list[0].(string), list[1].(string), list[2], depth)
	}
	if tpl, ok := list[0].(string); ok {
		return t.expand([]string{tpl}, list[1:], depth+1)
	}
	return "", mismatch("condition list starts with %T, not a template or column", list[0])
}

// comparePair renders "col = value", or "col IN (...)" for a list value.
func (t *Translator) comparePair(p Pair, depth int) (string, error) {
	if _, ok := sliceOf(p.Value); ok {
		return t.compare(p.Key, "IN", p.Value, depth)
	}
	return t.compare(p.Key, "=", p.Value, depth)
}

var operators = map[string]bool{
	"=": true, "<>": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"LIKE": true, "NOT LIKE": true, "IN": true, "NOT IN": true, "IS": true, "IS NOT": true,
}

func normalizeOp(op string) string {
	return strings.ToUpper(strings.Join(strings.Fields(op), " "))
}

var columnPattern = regexp.MustCompile(`^[A-Za-z_:][A-Za-z0-9_$.:]*$`)

// isTriple reports whether list is a [column, operator, value] condition.
// The first element must be a plain column name; anything else is a
// template with arguments.
func isTriple(list []any) bool {
	if len(list) != 3 {
		return false
	}
	col, ok := list[0].(string)
	if !ok || !columnPattern.MatchString(col) {
		return false
	}
	op, ok := list[1].(string)
	return ok && operators[normalizeOp(op)]
}

func (t *Translator) compare(col, op string, v any, depth int) (string, error) {
	op = normalizeOp(op)
	if !operators[op] {
		return "", mismatch("operator %q is not allowed", op)
	}
	key, kind, err := splitKey(col, modifier.Auto)
	if err != nil {
		return "", err
	}
	name, err := t.identifier(key)
	if err != nil {
		return "", err
	}

	if escape.IsNull(v) {
		switch op {
		case "=", "IS":
			return name + " IS NULL", nil
		case "<>", "!=", "IS NOT":
			return name + " IS NOT NULL", nil
		case "IN", "NOT IN":
			return name + " " + op + " (" + t.dialect.Null() + ")", nil
		}
		return name + " " + op + " " + t.dialect.Null(), nil
	}

	if op == "IN" || op == "NOT IN" {
		_, isSlice := sliceOf(v)
		_, isSub := v.(Expander)
		if !isSlice && !isSub {
			return "", mismatch("%s needs a list or sub-template, got %T", op, v)
		}
		s, err := t.list(v, depth)
		if err != nil {
			return "", err
		}
		return name + " " + op + " " + s, nil
	}

	if e, ok := v.(Expander); ok {
		s, err := t.expandValue(e, depth)
		if err != nil {
			return "", err
		}
		return name + " " + op + " (" + s + ")", nil
	}
	if _, ok := sliceOf(v); ok && kind.Scalar() {
		return "", mismatch("%s needs a single value, got %T", op, v)
	}
	s, err := t.value(v, kind, depth)
	if err != nil {
		return "", err
	}
	return name + " " + op + " " + s, nil
}

// orderBy renders %by from column → direction pairs or a list of columns.
func (t *Translator) orderBy(v any) (string, error) {
	var parts []string

	switch x := v.(type) {
	case string:
		return t.identifier(x)
	case []string:
		for _, col := range x {
			s, err := t.identifier(col)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
	default:
		pairs, ok := pairsOf(v)
		if !ok {
			items, ok := sliceOf(v)
			if !ok {
				return "", mismatch("%T is not valid for %s", v, modifier.OrderBy)
			}
			for _, item := range items {
				s, err := t.orderBy(item)
				if err != nil {
					return "", err
				}
				parts = append(parts, s)
			}
			break
		}
		for _, p := range pairs {
			s, err := t.identifier(p.Key)
			if err != nil {
				return "", err
			}
			dir, err := direction(p.Value)
			if err != nil {
				return "", err
			}
			if dir != "" {
				s += " " + dir
			}
			parts = append(parts, s)
		}
	}

	if len(parts) == 0 {
		return "", mismatch("empty order-by list")
	}
	return strings.Join(parts, ", "), nil
}

// direction maps "ASC"/"DESC", a bool (true is ascending) or a number (positive
// is ascending) to a sort direction.
func direction(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		switch d := strings.ToUpper(strings.TrimSpace(x)); d {
		case "ASC", "DESC":
			return d, nil
		case "":
			return "", nil
		}
		return "", mismatch("sort direction %q is not ASC or DESC", x)
	case bool:
		if x {
			return "ASC", nil
		}
		return "DESC", nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Int() > 0 {
			return "ASC", nil
		}
		return "DESC", nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > 0 {
			return "ASC", nil
		}
		return "DESC", nil
	}
	return "", mismatch("sort direction is %T", v)
}

// expandValue translates a nested template one level deeper. nil expands
// to nothing.
func (t *Translator) expandValue(v any, depth int) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case Expander:
		fragments, args, err := x.Expand()
		if err != nil {
			return "", err
		}
		return t.expand(fragments, args, depth+1)
	case string:
		return t.expand([]string{x}, nil, depth+1)
	}

	list, ok := sliceOf(v)
	if !ok || len(list) == 0 {
		return "", mismatch("%T cannot be expanded", v)
	}
	tpl, ok := list[0].(string)
	if !ok {
		return "", mismatch("expansion list starts with %T, not a template", list[0])
	}
	return t.expand([]string{tpl}, list[1:], depth+1)
}

// truthy decides %if sections. NULL, false, zero, "", "0" and empty
// collections are false.
func truthy(v any) bool {
	if escape.IsNull(v) {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && x != "0"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		return truthy(rv.Elem().Interface())
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		s := rv.String()
		return s != "" && s != "0"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	}
	return true
}

// count validates a %lmt / %ofs argument. nil yields unset.
func count(v any, unset int) (int, error) {
	if v == nil {
		return unset, nil
	}
	var n int64
	switch x := v.(type) {
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, mismatch("%q is not an integer", x)
		}
		n = parsed
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = rv.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n = int64(min(rv.Uint(), uint64(maxInt)))
		case reflect.Pointer:
			if rv.IsNil() {
				return unset, nil
			}
			return count(rv.Elem().Interface(), unset)
		default:
			return 0, mismatch("%T is not an integer", v)
		}
	}
	if n < 0 {
		return 0, mismatch("%d is negative", n)
	}
	return int(min(n, int64(maxInt))), nil
}

const maxInt = int(^uint(0) >> 1)
