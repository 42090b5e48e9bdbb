package translator

import (
	"strings"

	"github.com/Konsultn-Engineering/esql/modifier"
	"github.com/Konsultn-Engineering/esql/sqlerr"
)

// segment is one parsed piece of a template: literal SQL text when kind is
// modifier.Invalid, otherwise a modifier or :name: token.
type segment struct {
	kind  modifier.Kind
	text  string // literal text, or the substitution name
	token string
	pos   int
}

// parse splits src into literal text and tokens. Quoted strings and
// identifiers are copied verbatim; a doubled quote character inside them
// does not close the quote.
func parse(src string) ([]segment, error) {
	var (
		segs []segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(src); {
		c := src[i]
		switch c {
		case '\'', '"', '`':
			j, ok := closeQuote(src, i)
			if !ok {
				return nil, sqlerr.New(sqlerr.CodeMalformedTemplate, "unterminated %c quote", c).At(string(c), i)
			}
			lit.WriteString(src[i:j])
			i = j

		case '%':
			if i+1 < len(src) && src[i+1] == '%' {
				lit.WriteByte('%')
				i += 2
				continue
			}
			j := i + 1
			for j < len(src) && isLetter(src[j]) {
				j++
			}
			if j == i+1 {
				lit.WriteByte('%')
				i++
				continue
			}
			word := src[i+1 : j]
			kind, ok := modifier.Lookup(word)
			if !ok {
				return nil, sqlerr.New(sqlerr.CodeUnknownModifier, "unknown modifier %%%s", word).At("%"+word, i)
			}
			flush()
			segs = append(segs, segment{kind: kind, token: "%" + word, pos: i})
			i = j

		case ':':
			if i+1 < len(src) && src[i+1] == ':' {
				lit.WriteString("::")
				i += 2
				continue
			}
			if name, j, ok := substName(src, i); ok {
				flush()
				segs = append(segs, segment{kind: modifier.Substitution, text: name, token: src[i:j], pos: i})
				i = j
				continue
			}
			lit.WriteByte(c)
			i++

		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return segs, nil
}

// closeQuote returns the offset just past the quote opened at src[start].
func closeQuote(src string, start int) (int, bool) {
	q := src[start]
	for i := start + 1; i < len(src); i++ {
		if src[i] != q {
			continue
		}
		if i+1 < len(src) && src[i+1] == q {
			i++
			continue
		}
		return i + 1, true
	}
	return 0, false
}

// substName matches :name: at src[start]; name is [A-Za-z_][A-Za-z0-9_]*.
func substName(src string, start int) (string, int, bool) {
	i := start + 1
	if i >= len(src) || !(isLetter(src[i]) || src[i] == '_') {
		return "", 0, false
	}
	for i < len(src) && (isLetter(src[i]) || isDigit(src[i]) || src[i] == '_') {
		i++
	}
	if i >= len(src) || src[i] != ':' {
		return "", 0, false
	}
	return src[start+1 : i], i + 1, true
}

func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
