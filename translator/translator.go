// Package translator turns templates with typed modifier tokens and a
// positional argument stream into escaped SQL text.
//
//	t := translator.New(dialect.NewMySQLDialect())
//	sql, err := t.Translate(
//		[]string{"SELECT %n FROM %n WHERE %and"},
//		[]any{[]string{"id", "name"}, "users", []any{[]any{"id", "=", 5}}},
//	)
//	// SELECT `id`, `name` FROM `users` WHERE (`id` = 5)
package translator

import (
	"log/slog"
	"strings"

	"github.com/Konsultn-Engineering/esql/cache"
	"github.com/Konsultn-Engineering/esql/dialect"
	"github.com/Konsultn-Engineering/esql/modifier"
	"github.com/Konsultn-Engineering/esql/sqlerr"
	"github.com/Konsultn-Engineering/esql/subst"
)

const DefaultMaxDepth = 32

// Translator is safe for concurrent use. It holds no per-call state; the
// substitution table and the parse cache do their own locking.
type Translator struct {
	dialect  dialect.Dialect
	subst    *subst.Table
	maxDepth int
	cache    *cache.TemplateCache[[]segment]
	logger   *slog.Logger
}

type Option func(*Translator)

// WithSubstitutions uses table instead of subst.Default().
func WithSubstitutions(table *subst.Table) Option {
	return func(t *Translator) {
		if table != nil {
			t.subst = table
		}
	}
}

// WithMaxDepth bounds %ex nesting.
func WithMaxDepth(depth int) Option {
	return func(t *Translator) {
		if depth > 0 {
			t.maxDepth = depth
		}
	}
}

// WithCacheSize sets how many parsed templates are kept.
func WithCacheSize(size int) Option {
	return func(t *Translator) {
		t.cache = cache.NewTemplateCache[[]segment](size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func New(d dialect.Dialect, opts ...Option) *Translator {
	t := &Translator{
		dialect:  d,
		subst:    subst.Default(),
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.cache == nil {
		t.cache = cache.NewTemplateCache[[]segment](cache.DefaultSize)
	}
	return t
}

func (t *Translator) Dialect() dialect.Dialect    { return t.dialect }
func (t *Translator) Substitutions() *subst.Table { return t.subst }
func (t *Translator) CacheStats() cache.Stats     { return t.cache.Stats() }

// Translate joins fragments with a single space, replaces every token with
// its escaped argument and returns the trimmed SQL. No SQL is returned
// alongside an error.
func (t *Translator) Translate(fragments []string, args []any) (string, error) {
	sql, err := t.expand(fragments, args, 0)
	if err != nil {
		return "", err
	}
	return sql, nil
}

// TranslateTemplate translates anything that expands to fragments and
// arguments, such as *Template or the fluent builder.
func (t *Translator) TranslateTemplate(e Expander) (string, error) {
	fragments, args, err := e.Expand()
	if err != nil {
		return "", err
	}
	return t.Translate(fragments, args)
}

func (t *Translator) parse(src string) ([]segment, error) {
	segs, hit, err := t.cache.GetOrParse(src, parse)
	if err != nil {
		return nil, err
	}
	if !hit {
		t.logger.Debug("template parsed", "template", src, "segments", len(segs))
	}
	return segs, nil
}

// expand translates one level. Each level is its own translation: it
// validates its own conditional sections, owns its own argument stream and
// applies its own %lmt / %ofs to its own output.
func (t *Translator) expand(fragments []string, args []any, depth int) (string, error) {
	if depth > t.maxDepth {
		return "", sqlerr.New(sqlerr.CodeRecursion, "expansion deeper than %d levels", t.maxDepth)
	}

	segs, err := t.parse(strings.Join(fragments, " "))
	if err != nil {
		return "", err
	}

	var (
		sb      strings.Builder
		next    int
		limit   = -1
		offset  = 0
		ifSeg   *segment
		cond    bool
		sawElse bool
	)
	emitting := func() bool {
		if ifSeg == nil {
			return true
		}
		return cond != sawElse
	}

	for i := range segs {
		seg := &segs[i]

		switch seg.kind {
		case modifier.Invalid:
			if emitting() {
				sb.WriteString(seg.text)
			}
			continue

		case modifier.Else:
			if ifSeg == nil {
				return "", sqlerr.New(sqlerr.CodeMalformedConditional, "%%else without %%if").At(seg.token, seg.pos)
			}
			if sawElse {
				return "", sqlerr.New(sqlerr.CodeMalformedConditional, "second %%else in one section").At(seg.token, seg.pos)
			}
			sawElse = true
			continue

		case modifier.End:
			if ifSeg == nil {
				return "", sqlerr.New(sqlerr.CodeMalformedConditional, "%%end without %%if").At(seg.token, seg.pos)
			}
			ifSeg, sawElse = nil, false
			continue

		case modifier.Substitution:
			if !emitting() {
				continue
			}
			v, err := t.subst.Lookup(seg.text)
			if err != nil {
				return "", sqlerr.Locate(err, seg.token, seg.pos)
			}
			sb.WriteString(v)
			continue
		}

		if next >= len(args) {
			return "", sqlerr.New(sqlerr.CodeArgumentCount, "no argument left for %s", seg.token).At(seg.token, seg.pos)
		}
		arg := args[next]
		next++

		if seg.kind == modifier.If {
			if ifSeg != nil {
				return "", sqlerr.New(sqlerr.CodeMalformedConditional, "nested %%if (section opened at offset %d)", ifSeg.pos).At(seg.token, seg.pos)
			}
			ifSeg, cond = seg, truthy(arg)
			continue
		}

		if !emitting() {
			continue
		}

		switch seg.kind {
		case modifier.Limit:
			n, err := count(arg, -1)
			if err != nil {
				return "", sqlerr.Locate(err, seg.token, seg.pos)
			}
			limit = n
		case modifier.Offset:
			n, err := count(arg, 0)
			if err != nil {
				return "", sqlerr.Locate(err, seg.token, seg.pos)
			}
			offset = n
		default:
			s, err := t.render(seg.kind, arg, depth)
			if err != nil {
				return "", sqlerr.Locate(err, seg.token, seg.pos)
			}
			sb.WriteString(s)
		}
	}

	if ifSeg != nil {
		return "", sqlerr.New(sqlerr.CodeMalformedConditional, "%%if without %%end").At(ifSeg.token, ifSeg.pos)
	}
	if next < len(args) {
		return "", sqlerr.New(sqlerr.CodeArgumentCount, "%d unused argument(s)", len(args)-next)
	}

	sql := strings.TrimSpace(sb.String())
	if limit >= 0 || offset > 0 {
		sql = t.dialect.ApplyLimit(sql, limit, offset)
	}
	return sql, nil
}
