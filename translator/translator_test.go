package translator

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/esql/dialect"
	"github.com/Konsultn-Engineering/esql/sqlerr"
	"github.com/Konsultn-Engineering/esql/subst"
)

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	return New(dialect.NewMySQLDialect(), WithSubstitutions(subst.New()))
}

func translate(t *testing.T, tr *Translator, tpl string, args ...any) string {
	t.Helper()
	sql, err := tr.Translate([]string{tpl}, args)
	require.NoError(t, err)
	return sql
}

func TestSelectScenario(t *testing.T) {
	tr := newTranslator(t)
	sql, err := tr.Translate(
		[]string{"SELECT %n FROM %n WHERE %and"},
		[]any{[]string{"id", "name"}, "users", []any{[]any{"id", "=", 5}}},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id`, `name` FROM `users` WHERE (`id` = 5)", sql)
}

func TestFragmentsJoinedWithSpace(t *testing.T) {
	tr := newTranslator(t)
	sql, err := tr.Translate([]string{"SELECT *", "FROM %n", "WHERE `id` = %i"}, []any{"users", 3})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `id` = 3", sql)
}

func TestDeterministic(t *testing.T) {
	tr := newTranslator(t)
	args := []any{map[string]any{"c": 3, "a": 1, "b": 2}}
	first, err := tr.Translate([]string{"INSERT INTO t %v"}, args)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := tr.Translate([]string{"INSERT INTO t %v"}, args)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "INSERT INTO t (`a`, `b`, `c`) VALUES (1, 2, 3)", first)
}

func TestArgumentCount(t *testing.T) {
	tr := newTranslator(t)

	_, err := tr.Translate([]string{"SELECT %i, %i"}, []any{1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrArgumentCount))

	var e sqlerr.Err
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "%i", e.Token)
	assert.Equal(t, 11, e.Pos)

	_, err = tr.Translate([]string{"SELECT %i"}, []any{1, 2})
	assert.True(t, errors.Is(err, sqlerr.ErrArgumentCount))

	_, err = tr.Translate([]string{"SELECT 1"}, []any{1})
	assert.True(t, errors.Is(err, sqlerr.ErrArgumentCount))
}

func TestConditionals(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "B", translate(t, tr, "%if A %else B %end", false))
	assert.Equal(t, "A", translate(t, tr, "%if A %else B %end", true))
	assert.Equal(t, "SELECT 1", translate(t, tr, "SELECT 1 %if AND x %end", 0))
	assert.Equal(t, "SELECT 1 AND x", translate(t, tr, "SELECT 1%if AND x %end", "yes"))
}

func TestSuppressedBranchConsumesArguments(t *testing.T) {
	tr := newTranslator(t)
	tpl := "%if a = %i %else b = %i %end AND c = %i"

	assert.Equal(t, "a = 1  AND c = 3", translate(t, tr, tpl, true, 1, 2, 3))
	assert.Equal(t, "b = 2  AND c = 3", translate(t, tr, tpl, false, 1, 2, 3))

	// Values in a suppressed branch are not escaped, so bad ones are ignored.
	assert.Equal(t, "b = 2", translate(t, tr, "%if a = %i %else b = %i %end", false, "not a number", 2))
}

func TestMalformedConditionals(t *testing.T) {
	tests := []struct {
		name string
		tpl  string
		args []any
	}{
		{"nested if", "%if a %if b %end %end", []any{true, true}},
		{"stray else", "a %else b", nil},
		{"stray end", "a %end", nil},
		{"second else", "%if a %else b %else c %end", []any{true}},
		{"unclosed if", "%if a", []any{true}},
	}

	tr := newTranslator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := tr.Translate([]string{tt.tpl}, tt.args)
			require.Error(t, err)
			assert.Empty(t, sql)
			assert.True(t, errors.Is(err, sqlerr.ErrMalformedConditional), err.Error())
		})
	}
}

func TestConditionalsAreScopedPerExpansion(t *testing.T) {
	tr := newTranslator(t)
	sql := translate(t, tr, "%if %ex %end", true, Sub("%if inner %end", true))
	assert.Equal(t, "inner", sql)

	_, err := tr.Translate([]string{"%if %ex %end"}, []any{true, Sub("%if inner")})
	assert.True(t, errors.Is(err, sqlerr.ErrMalformedConditional))
}

func TestExpandComposes(t *testing.T) {
	tr := newTranslator(t)

	nested := translate(t, tr, "SELECT * FROM t WHERE %ex", Sub("x = %i", 5))
	inline := translate(t, tr, "SELECT * FROM t WHERE x = %i", 5)
	assert.Equal(t, inline, nested)

	assert.Equal(t, "SELECT * FROM t", translate(t, tr, "SELECT * FROM t %ex", nil))
	assert.Equal(t, "a = 'x'", translate(t, tr, "%ex", []any{"a = %s", "x"}))
	assert.Equal(t, "SELECT 1 FROM `t`", translate(t, tr, "%ex", SQL("SELECT 1").Append("FROM %n", "t")))
}

type selfExpanding struct{}

func (selfExpanding) Expand() ([]string, []any, error) {
	return []string{"(%ex)"}, []any{selfExpanding{}}, nil
}

func TestRecursionLimit(t *testing.T) {
	tr := New(dialect.NewMySQLDialect(), WithSubstitutions(subst.New()), WithMaxDepth(4))

	_, err := tr.Translate([]string{"%ex"}, []any{selfExpanding{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrRecursion))

	sql := translate(t, tr, "%ex", Sub("%ex", Sub("%ex", Sub("deep"))))
	assert.Equal(t, "deep", sql)
}

func TestIdentifierQuoteCannotEscape(t *testing.T) {
	tr := newTranslator(t)
	assert.Equal(t, "SELECT `a``; DROP TABLE x; --`", translate(t, tr, "SELECT %n", "a`; DROP TABLE x; --"))
	assert.Equal(t, "SELECT `s`.`t`.*", translate(t, tr, "SELECT %n", "s.t.*"))
	assert.Equal(t, "SELECT `a` AS `x`, `b`", translate(t, tr, "SELECT %n", P("a", "x", "b", nil)))
}

func TestSubstitutions(t *testing.T) {
	tr := newTranslator(t)
	tr.Substitutions().Add("p", "wp_")

	assert.Equal(t, "SELECT * FROM wp_posts", translate(t, tr, "SELECT * FROM :p:posts"))
	assert.Equal(t, "SELECT * FROM `wp_posts`", translate(t, tr, "SELECT * FROM %n", ":p:posts"))
	assert.Equal(t, "SELECT x::int", translate(t, tr, "SELECT x::int"))
	assert.Equal(t, "", translate(t, tr, "%if :missing: %end", false))

	_, err := tr.Translate([]string{"SELECT * FROM :foo:"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrMissingSubstitution))
	assert.Contains(t, err.Error(), "foo")
}

func TestSubstitutionFallback(t *testing.T) {
	tr := newTranslator(t)
	tr.Substitutions().SetFallback(subst.TableFallback("app_"))
	assert.Equal(t, "SELECT * FROM app_blog_posts", translate(t, tr, "SELECT * FROM :BlogPost:"))
}

func TestScannerLiterals(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "SELECT '%i', \"%s\", `a%n`, 10 % 3", translate(t, tr, "SELECT '%i', \"%s\", `a%n`, 10 %% 3"))
	assert.Equal(t, "SELECT 'it''s %i'", translate(t, tr, "SELECT 'it''s %i'"))
	assert.Equal(t, "SELECT 5 % 2", translate(t, tr, "SELECT 5 % 2"))

	_, err := tr.Translate([]string{"SELECT 'abc"}, nil)
	assert.True(t, errors.Is(err, sqlerr.ErrMalformedTemplate))
}

func TestUnknownModifier(t *testing.T) {
	tr := newTranslator(t)
	_, err := tr.Translate([]string{"SELECT %zz"}, []any{1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrUnknownModifier))

	var e sqlerr.Err
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "%zz", e.Token)
	assert.Equal(t, 7, e.Pos)
}

func TestErrorLocation(t *testing.T) {
	tr := newTranslator(t)

	_, err := tr.Translate([]string{"SELECT %i"}, []any{"abc"})
	var e sqlerr.Err
	require.True(t, errors.As(err, &e))
	assert.True(t, errors.Is(err, sqlerr.ErrTypeMismatch))
	assert.Equal(t, "%i", e.Token)
	assert.Equal(t, 7, e.Pos)

	_, err = tr.Translate([]string{"SELECT %ex"}, []any{Sub("x = %i", "abc")})
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "%i", e.Token, "innermost token wins")
	assert.Equal(t, 4, e.Pos)
}

func TestLists(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "x IN (1, 2, 3)", translate(t, tr, "x IN %in", []int{1, 2, 3}))
	assert.Equal(t, "x IN (NULL)", translate(t, tr, "x IN %in", []int{}))
	assert.Equal(t, "x IN ('a', 'b')", translate(t, tr, "x IN %l", []string{"a", "b"}))
	assert.Equal(t, "x IN (SELECT 1)", translate(t, tr, "x IN %in", Sub("SELECT 1")))
	assert.Equal(t, "1, 2", translate(t, tr, "%i", []int{1, 2}))
}

func TestAssignmentsAndValues(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "UPDATE t SET `name` = 'x', `age` = 3",
		translate(t, tr, "UPDATE t SET %a", P("name", "x", "age", 3)))
	assert.Equal(t, "SET `price` = 9.5, `at` = NOW()",
		translate(t, tr, "SET %a", P("price%f", "9.50", "at", Literal("NOW()"))))
	assert.Equal(t, "SET `n` = n + 1",
		translate(t, tr, "SET %a", P("n", Sub("n + %i", 1))))
	assert.Equal(t, "INSERT INTO t (`a`, `b`) VALUES (1, NULL)",
		translate(t, tr, "INSERT INTO t %v", P("a", 1, "b", nil)))
	assert.Equal(t, "INSERT INTO t (`a`, `b`) VALUES (1, 2), (3, 4)",
		translate(t, tr, "INSERT INTO t %m", []Pairs{P("a", 1, "b", 2), P("a", 3, "b", 4)}))

	_, err := tr.Translate([]string{"INSERT INTO t %m"}, []any{[]Pairs{P("a", 1), P("b", 2)}})
	assert.True(t, errors.Is(err, sqlerr.ErrTypeMismatch))

	_, err = tr.Translate([]string{"SET %a"}, []any{P("x%zz", 1)})
	assert.True(t, errors.Is(err, sqlerr.ErrUnknownModifier))

	_, err = tr.Translate([]string{"SET %a"}, []any{Pairs{}})
	assert.True(t, errors.Is(err, sqlerr.ErrTypeMismatch))
}

func TestConjunctions(t *testing.T) {
	tr := newTranslator(t)

	tests := []struct {
		name string
		tpl  string
		arg  any
		want string
	}{
		{"empty and", "%and", []any{}, "1=1"},
		{"empty or", "%or", nil, "1=0"},
		{"cond", "%and", []Cond{Eq("a", 1), Ne("b", "x")}, "(`a` = 1) AND (`b` <> 'x')"},
		{"or", "%or", []Cond{Eq("a", 1), Eq("b", 2)}, "(`a` = 1) OR (`b` = 2)"},
		{"is null", "%and", Eq("deleted_at", nil), "(`deleted_at` IS NULL)"},
		{"is not null", "%and", []any{[]any{"x", "<>", nil}}, "(`x` IS NOT NULL)"},
		{"in", "%and", In("id", []int{1, 2}), "(`id` IN (1, 2))"},
		{"like", "%and", []any{[]any{"name", "like", "a%"}}, "(`name` LIKE 'a%')"},
		{"pairs", "%and", P("a", 1, "b", []int{2, 3}), "(`a` = 1) AND (`b` IN (2, 3))"},
		{"map", "%and", map[string]any{"b": 2, "a": 1}, "(`a` = 1) AND (`b` = 2)"},
		{"templates", "%and", []any{[]any{"a = %i OR b = %i", 1, 2}, Eq("c", true)}, "(a = 1 OR b = 2) AND (`c` = 1)"},
		{"bare template", "%and", "x > 1", "(x > 1)"},
		{"sub template", "%or", []any{Sub("x = %i", 1), Sub("y = %i", 2)}, "(x = 1) OR (y = 2)"},
		{"nested pairs", "%or", []any{P("a", 1, "b", 2), P("c", 3)}, "(`a` = 1 AND `b` = 2) OR (`c` = 3)"},
		{"key modifier", "%and", P("price%f", "1.50"), "(`price` = 1.5)"},
		{"subquery value", "%and", Cond{"id", "=", Sub("SELECT MAX(id) FROM t")}, "(`id` = (SELECT MAX(id) FROM t))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, translate(t, tr, tt.tpl, tt.arg))
		})
	}
}

func TestConjunctionRejectsUnknownOperator(t *testing.T) {
	tr := newTranslator(t)
	_, err := tr.Translate([]string{"%and"}, []any{Cond{Column: "id", Op: "= 1; DROP TABLE t; --", Value: 1}})
	assert.True(t, errors.Is(err, sqlerr.ErrTypeMismatch))

	_, err = tr.Translate([]string{"%and"}, []any{In("id", 5)})
	assert.True(t, errors.Is(err, sqlerr.ErrTypeMismatch))
}

func TestConditionTripleNeedsColumnName(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "(`users`.`id` = 1)", translate(t, tr, "%and", []any{[]any{"users.id", "=", 1}}))

	// A raw expression in the first slot is a template, so its extra
	// arguments are reported instead of being quoted as one column.
	_, err := tr.Translate([]string{"%and"}, []any{[]any{[]any{"x > 1", "=", "y"}}})
	assert.True(t, errors.Is(err, sqlerr.ErrArgumentCount))
}

func TestOrderBy(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "ORDER BY `name` ASC, `id` DESC", translate(t, tr, "ORDER BY %by", P("name", "asc", "id", false)))
	assert.Equal(t, "ORDER BY `a` ASC, `b` DESC", translate(t, tr, "ORDER BY %by", map[string]int{"b": -1, "a": 1}))
	assert.Equal(t, "ORDER BY `a`, `b`", translate(t, tr, "ORDER BY %by", []string{"a", "b"}))

	_, err := tr.Translate([]string{"ORDER BY %by"}, []any{P("a", "sideways")})
	assert.True(t, errors.Is(err, sqlerr.ErrTypeMismatch))
}

func TestLimitOffset(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "SELECT * FROM t LIMIT 10 OFFSET 20", translate(t, tr, "SELECT * FROM t %lmt %ofs", 10, 20))
	assert.Equal(t, "SELECT * FROM t LIMIT 10", translate(t, tr, "SELECT * FROM t %ofs %lmt", nil, 10))
	assert.Equal(t, "SELECT * FROM t", translate(t, tr, "SELECT * FROM t %lmt %ofs", nil, nil))
	assert.Equal(t, "SELECT * FROM t WHERE id IN (SELECT id FROM u LIMIT 5)",
		translate(t, tr, "SELECT * FROM t WHERE id IN (%ex)", Sub("SELECT id FROM u %lmt", 5)))

	_, err := tr.Translate([]string{"SELECT 1 %lmt"}, []any{-1})
	assert.True(t, errors.Is(err, sqlerr.ErrTypeMismatch))
}

func TestPostgresDialect(t *testing.T) {
	tr := New(dialect.NewPostgresDialect(), WithSubstitutions(subst.New()))
	assert.Equal(t,
		`SELECT "id" FROM "users" WHERE ("active" = TRUE) LIMIT 1`,
		translate(t, tr, "SELECT %n FROM %n WHERE %and %lmt", "id", "users", Eq("active", true), 1))
	assert.Equal(t, "SELECT 'it''s'", translate(t, tr, "SELECT %s", "it's"))
}

func TestTranslateTemplate(t *testing.T) {
	tr := newTranslator(t)
	tpl := SQL("SELECT %n", []string{"id"}).
		Append("FROM %n", "users").
		AppendIf(false, "WHERE %and", Eq("x", 1)).
		Append("%lmt", 1)

	sql, err := tr.TranslateTemplate(tpl)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `users` LIMIT 1", sql)
}

func TestParseCache(t *testing.T) {
	tr := newTranslator(t)
	translate(t, tr, "SELECT %i", 1)
	translate(t, tr, "SELECT %i", 2)

	s := tr.CacheStats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, 1, s.Len)
}

func TestConcurrentTranslate(t *testing.T) {
	tr := newTranslator(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sql, err := tr.Translate([]string{"SELECT %i"}, []any{i})
			assert.NoError(t, err)
			assert.NotEmpty(t, sql)
		}(i)
	}
	wg.Wait()
}
