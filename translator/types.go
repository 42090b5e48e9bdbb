package translator

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/Konsultn-Engineering/esql/escape"
)

// Expander is anything that can be spliced into a template as a nested
// translation: SubTemplate, *Template and the fluent builder all qualify.
type Expander interface {
	Expand() (fragments []string, args []any, err error)
}

// SubTemplate is a single fragment with its own arguments.
type SubTemplate struct {
	Fragment string
	Args     []any
}

// Sub builds a SubTemplate.
func Sub(fragment string, args ...any) SubTemplate {
	return SubTemplate{Fragment: fragment, Args: args}
}

func (s SubTemplate) Expand() ([]string, []any, error) {
	return []string{s.Fragment}, s.Args, nil
}

// Pair is one column → value entry. The key may carry a modifier suffix,
// e.g. "price%f", which overrides automatic typing of the value.
type Pair struct {
	Key   string
	Value any
}

// Pairs is an ordered column → value list. Unlike a map it renders in
// insertion order.
type Pairs []Pair

// P builds Pairs from alternating keys and values. It panics on an odd
// argument count or a non-string key.
func P(kv ...any) Pairs {
	if len(kv)%2 != 0 {
		panic("translator.P: odd argument count")
	}
	out := make(Pairs, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("translator.P: key %d is %T, not string", i/2, kv[i]))
		}
		out = append(out, Pair{Key: k, Value: kv[i+1]})
	}
	return out
}

// Set appends or replaces the value for key.
func (p Pairs) Set(key string, value any) Pairs {
	for i := range p {
		if p[i].Key == key {
			p[i].Value = value
			return p
		}
	}
	return append(p, Pair{Key: key, Value: value})
}

func (p Pairs) Keys() []string {
	keys := make([]string, len(p))
	for i, pair := range p {
		keys[i] = pair.Key
	}
	return keys
}

// Cond is a single column comparison for %and / %or.
type Cond struct {
	Column string
	Op     string
	Value  any
}

func Eq(column string, value any) Cond { return Cond{Column: column, Op: "=", Value: value} }
func Ne(column string, value any) Cond { return Cond{Column: column, Op: "<>", Value: value} }
func In(column string, value any) Cond { return Cond{Column: column, Op: "IN", Value: value} }

// Literal re-exports escape.Literal for callers that only import the
// translator.
type Literal = escape.Literal

// pairsOf accepts Pairs, a single Pair, or any map keyed by string. Maps
// are returned in sorted key order.
func pairsOf(v any) (Pairs, bool) {
	switch x := v.(type) {
	case Pairs:
		return x, true
	case Pair:
		return Pairs{x}, true
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(Pairs, len(keys))
		for i, k := range keys {
			out[i] = Pair{Key: k, Value: x[k]}
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	out := make(Pairs, len(keys))
	for i, k := range keys {
		out[i] = Pair{Key: k.String(), Value: rv.MapIndex(k).Interface()}
	}
	return out, true
}

// sliceOf accepts any slice except byte slices, which are scalar binary
// values. Arrays are never lists so uuid.UUID and ulid.ULID stay scalar.
func sliceOf(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case Pairs:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
