package utils

import (
	"regexp"
	"strings"
)

var (
	majorKeywords = regexp.MustCompile(`(?i)\b(?:SELECT|(?:ON\s+DUPLICATE\s+KEY\s+)?UPDATE|INSERT(?:\s+INTO)?|REPLACE(?:\s+INTO)?|DELETE|CALL|UNION(?:\s+ALL)?|FROM|WHERE|HAVING|GROUP\s+BY|ORDER\s+BY|LIMIT|OFFSET|FETCH\s+NEXT|SET|VALUES|(?:LEFT|RIGHT|INNER|CROSS|FULL)(?:\s+OUTER)?\s+JOIN|JOIN|TRUNCATE|START\s+TRANSACTION|BEGIN|COMMIT|ROLLBACK(?:\s+TO\s+SAVEPOINT)?|(?:RELEASE\s+)?SAVEPOINT)\b`)
	minorKeywords = regexp.MustCompile(`(?i)\b(?:ALL|DISTINCT|DISTINCTROW|IGNORE|AS|USING|ON|AND|OR|IN|IS|NOT|NULL|R?LIKE|ILIKE|REGEXP|TRUE|FALSE|ASC|DESC)\b`)
)

// Dump reformats sql for reading: major clause keywords start a new line
// and all keywords are upper-cased. Quoted strings and identifiers are
// copied untouched.
func Dump(sql string) string {
	var out []byte
	for _, c := range splitQuoted(sql) {
		if c.quoted {
			out = append(out, c.text...)
			continue
		}
		out = appendKeywords(out, c.text)
	}
	return strings.TrimSpace(string(out))
}

type chunk struct {
	text   string
	quoted bool
}

func splitQuoted(s string) []chunk {
	var chunks []chunk
	start := 0
	for i := 0; i < len(s); i++ {
		q := s[i]
		if q != '\'' && q != '"' && q != '`' {
			continue
		}
		if i > start {
			chunks = append(chunks, chunk{text: s[start:i]})
		}
		j := i + 1
		for j < len(s) && s[j] != q {
			if s[j] == '\\' && q != '`' {
				j++
			}
			j++
		}
		j = min(j+1, len(s))
		chunks = append(chunks, chunk{text: s[i:j], quoted: true})
		start = j
		i = j - 1
	}
	if start < len(s) {
		chunks = append(chunks, chunk{text: s[start:]})
	}
	return chunks
}

func appendKeywords(out []byte, text string) []byte {
	last := 0
	for _, m := range majorKeywords.FindAllStringIndex(text, -1) {
		if !separated(text, m[0], m[1]) {
			continue
		}
		out = append(out, upperMinor(text[last:m[0]])...)
		for len(out) > 0 && (out[len(out)-1] == ' ' || out[len(out)-1] == '\t') {
			out = out[:len(out)-1]
		}
		if len(out) > 0 && out[len(out)-1] != '\n' && out[len(out)-1] != '(' {
			out = append(out, '\n')
		}
		out = append(out, strings.ToUpper(strings.Join(strings.Fields(text[m[0]:m[1]]), " "))...)
		last = m[1]
	}
	return append(out, upperMinor(text[last:])...)
}

func upperMinor(s string) string {
	return minorKeywords.ReplaceAllStringFunc(s, strings.ToUpper)
}

func separated(s string, i, j int) bool {
	return (i == 0 || isSeparator(s[i-1])) && (j == len(s) || isSeparator(s[j]))
}

func isSeparator(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', ',', '(', ')', ';', '=':
		return true
	}
	return false
}
