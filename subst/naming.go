package subst

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

// pluralizeClient is shared; the client is read-only after construction.
var pluralizeClient = pluralizer.NewClient()

// TableFallback returns a fallback that derives a table name from the
// missing substitution: prefix + the plural snake_case form of the name.
// :BlogPost: with prefix "app_" resolves to app_blog_posts.
func TableFallback(prefix string) Fallback {
	return func(name string) (string, error) {
		if name == "" {
			return MissingFallback(name)
		}
		return prefix + pluralize(toSnakeCase(name)), nil
	}
}

// PrefixFallback prepends prefix to the missing name unchanged.
func PrefixFallback(prefix string) Fallback {
	return func(name string) (string, error) {
		return prefix + name, nil
	}
}

// toSnakeCase converts CamelCase and mixed names to snake_case, keeping
// acronym runs together: HTTPServer -> http_server.
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}
	if strings.Contains(name, "_") && !hasUpperCase(name) {
		return name
	}

	var sb strings.Builder
	sb.Grow(len(name) + 4)

	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			switch {
			case unicode.IsLower(prev) || unicode.IsDigit(prev):
				sb.WriteByte('_')
			case unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

func pluralize(name string) string {
	if name == "" {
		return ""
	}
	// Only the last word of a snake_case name is inflected.
	head, last := "", name
	if i := strings.LastIndexByte(name, '_'); i >= 0 {
		head, last = name[:i+1], name[i+1:]
	}
	if last == "" {
		return name
	}
	return head + preserveCase(last, pluralizeClient.Plural(last))
}

func hasUpperCase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func preserveCase(original, result string) string {
	switch {
	case original == "" || result == "":
		return result
	case strings.ToLower(original) == original:
		return strings.ToLower(result)
	case strings.ToUpper(original) == original:
		return strings.ToUpper(result)
	}
	return result
}
