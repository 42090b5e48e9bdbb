// Package modifier defines the closed set of placeholder kinds understood by
// the translator and the token spelling of each.
package modifier

// Kind is the escaping or control behavior bound to a modifier token.
type Kind int

const (
	Invalid Kind = iota

	// Scalar kinds, escaped through the escape package.
	Identifier
	Text
	TextOrNull
	Bool
	Integer
	Float
	Date
	DateTime
	Time
	Binary
	Raw
	Auto

	// Composite kinds, rendered by the translator.
	List
	Assign
	Values
	MultiValues
	And
	Or
	OrderBy
	Expand

	// Control kinds.
	If
	Else
	End
	Limit
	Offset

	// Substitution is the :name: token; it never consumes an argument.
	Substitution
)

var tokens = map[string]Kind{
	"n":    Identifier,
	"s":    Text,
	"sN":   TextOrNull,
	"b":    Bool,
	"i":    Integer,
	"f":    Float,
	"d":    Date,
	"t":    DateTime,
	"tm":   Time,
	"bin":  Binary,
	"SQL":  Raw,
	"sql":  Raw,
	"l":    List,
	"in":   List,
	"a":    Assign,
	"v":    Values,
	"m":    MultiValues,
	"and":  And,
	"or":   Or,
	"by":   OrderBy,
	"ex":   Expand,
	"if":   If,
	"else": Else,
	"end":  End,
	"lmt":  Limit,
	"ofs":  Offset,
}

var names = map[Kind]string{
	Invalid:      "invalid",
	Identifier:   "identifier",
	Text:         "text",
	TextOrNull:   "text-or-null",
	Bool:         "boolean",
	Integer:      "integer",
	Float:        "float",
	Date:         "date",
	DateTime:     "datetime",
	Time:         "time",
	Binary:       "binary",
	Raw:          "raw",
	Auto:         "auto",
	List:         "list",
	Assign:       "assignment",
	Values:       "values",
	MultiValues:  "multi-values",
	And:          "and",
	Or:           "or",
	OrderBy:      "order-by",
	Expand:       "expand",
	If:           "if",
	Else:         "else",
	End:          "end",
	Limit:        "limit",
	Offset:       "offset",
	Substitution: "substitution",
}

// Lookup resolves the letters following '%' to a Kind.
func Lookup(word string) (Kind, bool) {
	k, ok := tokens[word]
	return k, ok
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return "invalid"
}

// Scalar reports whether k is escaped value by value.
func (k Kind) Scalar() bool {
	return k >= Identifier && k <= Auto
}

// Consumes reports whether a token of kind k pops an argument.
func (k Kind) Consumes() bool {
	switch k {
	case Invalid, Else, End, Substitution:
		return false
	}
	return true
}
