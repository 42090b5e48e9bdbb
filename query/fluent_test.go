package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/esql/database"
	"github.com/Konsultn-Engineering/esql/dialect"
	"github.com/Konsultn-Engineering/esql/sqlerr"
	"github.com/Konsultn-Engineering/esql/subst"
	"github.com/Konsultn-Engineering/esql/translator"
)

func newTranslator() *translator.Translator {
	return translator.New(dialect.NewMySQLDialect(), translator.WithSubstitutions(subst.New()))
}

func TestRender(t *testing.T) {
	tr := newTranslator()

	tests := []struct {
		name  string
		build func(f *Fluent) *Fluent
		want  string
	}{
		{
			name: "select scenario",
			build: func(f *Fluent) *Fluent {
				return f.Select("id", "name").From("users").Where([]any{[]any{"id", "=", 5}})
			},
			want: "SELECT `id`, `name` FROM `users` WHERE (`id` = 5)",
		},
		{
			name: "where twice",
			build: func(f *Fluent) *Fluent {
				return f.From("t").Where("a = %i", 1).Where("b = %i", 2)
			},
			want: "SELECT * FROM `t` WHERE (a = 1) AND (b = 2)",
		},
		{
			name: "where mixes templates and conditions",
			build: func(f *Fluent) *Fluent {
				return f.From("t").Where("active = %b", true).Where(translator.Eq("role", "admin"))
			},
			want: "SELECT * FROM `t` WHERE (active = 1) AND (`role` = 'admin')",
		},
		{
			name: "limit twice keeps the second",
			build: func(f *Fluent) *Fluent {
				return f.From("t").Limit(5).Limit(10)
			},
			want: "SELECT * FROM `t` LIMIT 10",
		},
		{
			name: "limit and offset",
			build: func(f *Fluent) *Fluent {
				return f.From("t").Offset(20).Limit(10)
			},
			want: "SELECT * FROM `t` LIMIT 10 OFFSET 20",
		},
		{
			name: "negative limit removes it",
			build: func(f *Fluent) *Fluent {
				return f.From("t").Limit(10).Limit(-1)
			},
			want: "SELECT * FROM `t`",
		},
		{
			name: "canonical order regardless of call order",
			build: func(f *Fluent) *Fluent {
				return f.OrderBy("name").Where("x = %i", 1).From("t").Select("id")
			},
			want: "SELECT `id` FROM `t` WHERE x = 1 ORDER BY `name`",
		},
		{
			name: "from overwrites",
			build: func(f *Fluent) *Fluent {
				return f.From("a").From("b")
			},
			want: "SELECT * FROM `b`",
		},
		{
			name: "select accumulates",
			build: func(f *Fluent) *Fluent {
				return f.Select("role").Select("COUNT(*) AS n").From("users").GroupBy("role").Having("COUNT(*) > %i", 1)
			},
			want: "SELECT `role`, COUNT(*) AS n FROM `users` GROUP BY `role` HAVING COUNT(*) > 1",
		},
		{
			name: "distinct",
			build: func(f *Fluent) *Fluent {
				return f.Select("role").Distinct().From("users")
			},
			want: "SELECT DISTINCT `role` FROM `users`",
		},
		{
			name: "joins keep call order",
			build: func(f *Fluent) *Fluent {
				return f.From("users").
					LeftJoin("orders").On("orders.user_id = users.id").On(translator.Eq("orders.state", "paid")).
					Join("items").On("items.order_id = orders.id")
			},
			want: "SELECT * FROM `users` LEFT JOIN `orders` ON (orders.user_id = users.id) AND (`orders`.`state` = 'paid') JOIN `items` ON items.order_id = orders.id",
		},
		{
			name: "order by with direction",
			build: func(f *Fluent) *Fluent {
				return f.From("t").OrderBy("created").Desc().OrderBy(translator.P("id", "ASC"))
			},
			want: "SELECT * FROM `t` ORDER BY `created` DESC, `id` ASC",
		},
		{
			name: "order by several columns",
			build: func(f *Fluent) *Fluent {
				return f.From("t").OrderBy("a", "b")
			},
			want: "SELECT * FROM `t` ORDER BY `a`, `b`",
		},
		{
			name: "group by several columns",
			build: func(f *Fluent) *Fluent {
				return f.From("t").GroupBy("a", "b")
			},
			want: "SELECT * FROM `t` GROUP BY `a`, `b`",
		},
		{
			name: "nested builder",
			build: func(f *Fluent) *Fluent {
				admins := New(tr, nil).Select("id").From("admins").Limit(3)
				return f.From("users").Where("id IN (%ex)", admins)
			},
			want: "SELECT * FROM `users` WHERE id IN (SELECT `id` FROM `admins` LIMIT 3)",
		},
		{
			name: "update",
			build: func(f *Fluent) *Fluent {
				return f.Update("users").Set(translator.P("name", "Ann")).Where(translator.Eq("id", 3)).Limit(1)
			},
			want: "UPDATE `users` SET `name` = 'Ann' WHERE (`id` = 3) LIMIT 1",
		},
		{
			name: "update accumulates set",
			build: func(f *Fluent) *Fluent {
				return f.Update("users").Set(translator.P("a", 1)).Set("b = b + %i", 2)
			},
			want: "UPDATE `users` SET `a` = 1, b = b + 2",
		},
		{
			name: "insert",
			build: func(f *Fluent) *Fluent {
				return f.InsertInto("users").Values(translator.P("id", 1, "name", "Ann"))
			},
			want: "INSERT INTO `users` (`id`, `name`) VALUES (1, 'Ann')",
		},
		{
			name: "insert many rows",
			build: func(f *Fluent) *Fluent {
				return f.InsertInto("users").Values([]translator.Pairs{translator.P("id", 1), translator.P("id", 2)})
			},
			want: "INSERT INTO `users` (`id`) VALUES (1), (2)",
		},
		{
			name: "delete",
			build: func(f *Fluent) *Fluent {
				return f.DeleteFrom("users").Where(translator.In("id", []int{1, 2}))
			},
			want: "DELETE FROM `users` WHERE (`id` IN (1, 2))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.build(New(tr, nil))
			got, err := f.Render()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, Rendered, f.State())
			assert.Equal(t, got, f.String())
		})
	}
}

func TestRenderErrors(t *testing.T) {
	tr := newTranslator()

	tests := []struct {
		name  string
		build func(f *Fluent) *Fluent
		want  error
	}{
		{"nothing to select", func(f *Fluent) *Fluent { return f.Where("x = 1") }, sqlerr.ErrIncomplete},
		{"update without set", func(f *Fluent) *Fluent { return f.Update("t") }, sqlerr.ErrIncomplete},
		{"insert without values", func(f *Fluent) *Fluent { return f.InsertInto("t") }, sqlerr.ErrIncomplete},
		{"mixed commands", func(f *Fluent) *Fluent { return f.Select("a").Update("t") }, sqlerr.ErrIncomplete},
		{"on without join", func(f *Fluent) *Fluent { return f.From("t").On("a = b") }, sqlerr.ErrIncomplete},
		{"empty clause", func(f *Fluent) *Fluent { return f.From("t").Where() }, sqlerr.ErrIncomplete},
		{"bad argument", func(f *Fluent) *Fluent { return f.From("t").Where("x = %i", "abc") }, sqlerr.ErrTypeMismatch},
		{"argument count", func(f *Fluent) *Fluent { return f.From("t").Where("x = %i") }, sqlerr.ErrArgumentCount},
		{"direction after pairs", func(f *Fluent) *Fluent { return f.From("t").OrderBy(translator.P("a", "DESC")).Asc() }, sqlerr.ErrIncomplete},
		{"direction twice", func(f *Fluent) *Fluent { return f.From("t").OrderBy("a").Desc().Asc() }, sqlerr.ErrIncomplete},
		{"direction after column list", func(f *Fluent) *Fluent { return f.From("t").OrderBy("a", "b").Desc() }, sqlerr.ErrIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.build(New(tr, nil))
			got, err := f.Render()
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, got)
			assert.Empty(t, f.String())
			assert.Equal(t, Building, f.State())
		})
	}
}

func TestMutationAfterRender(t *testing.T) {
	f := New(newTranslator(), nil).From("users")
	first, err := f.Render()
	require.NoError(t, err)

	f.Where(translator.Eq("id", 1))
	_, err = f.Render()
	assert.ErrorIs(t, err, sqlerr.ErrRendered)

	c := f.Clone()
	assert.Equal(t, Building, c.State())
	sql, err := c.Where(translator.Eq("id", 1)).Render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE (`id` = 1)", sql)
	assert.Equal(t, "SELECT * FROM `users`", first)
}

func TestCloneIsIndependent(t *testing.T) {
	base := New(newTranslator(), nil).From("users").Where("a = %i", 1)
	other := base.Clone().Where("b = %i", 2)

	assert.Equal(t, "SELECT * FROM `users` WHERE a = 1", base.String())
	assert.Equal(t, "SELECT * FROM `users` WHERE (a = 1) AND (b = 2)", other.String())
}

func TestRenderIsStable(t *testing.T) {
	f := New(newTranslator(), nil).Select("id").From("users").Where(map[string]any{"b": 2, "a": 1})
	first, err := f.Render()
	require.NoError(t, err)
	second, err := f.Render()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "SELECT `id` FROM `users` WHERE (`a` = 1) AND (`b` = 2)", first)
}

type recordingExecutor struct {
	queries []string
	execs   []string
}

func (r *recordingExecutor) NativeQuery(_ context.Context, sql string) (database.Rows, error) {
	r.queries = append(r.queries, sql)
	return nil, nil
}

func (r *recordingExecutor) NativeExec(_ context.Context, sql string) (database.Result, error) {
	r.execs = append(r.execs, sql)
	return nil, nil
}

func TestExecAndQuery(t *testing.T) {
	tr := newTranslator()
	exec := &recordingExecutor{}
	ctx := context.Background()

	_, err := New(tr, exec).DeleteFrom("sessions").Where("expired = %b", true).Exec(ctx)
	require.NoError(t, err)
	_, err = New(tr, exec).From("sessions").Query(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"DELETE FROM `sessions` WHERE expired = 1"}, exec.execs)
	assert.Equal(t, []string{"SELECT * FROM `sessions`"}, exec.queries)

	_, err = New(tr, nil).From("t").Exec(ctx)
	assert.ErrorIs(t, err, errNoExecutor)

	_, err = New(tr, exec).Update("t").Exec(ctx)
	assert.ErrorIs(t, err, sqlerr.ErrIncomplete)
	assert.Len(t, exec.execs, 1)
}

func TestUnsupportedClauses(t *testing.T) {
	tr := newTranslator()

	tests := []struct {
		name  string
		build func(f *Fluent) *Fluent
		msg   string
	}{
		{
			name:  "insert with where and limit",
			build: func(f *Fluent) *Fluent { return f.InsertInto("t").Values(translator.P("a", 1)).Where("x = 1").Limit(3) },
			msg:   "INSERT INTO does not take WHERE",
		},
		{
			name:  "insert with order by",
			build: func(f *Fluent) *Fluent { return f.InsertInto("t").Values(translator.P("a", 1)).OrderBy("a") },
			msg:   "INSERT INTO does not take ORDER BY",
		},
		{
			name:  "insert with offset",
			build: func(f *Fluent) *Fluent { return f.InsertInto("t").Values(translator.P("a", 1)).Offset(2) },
			msg:   "INSERT INTO does not take OFFSET",
		},
		{
			name:  "update with join",
			build: func(f *Fluent) *Fluent { return f.Update("t").Set(translator.P("a", 1)).Join("u") },
			msg:   "UPDATE does not take JOIN",
		},
		{
			name:  "update with group by",
			build: func(f *Fluent) *Fluent { return f.Update("t").Set(translator.P("a", 1)).GroupBy("a") },
			msg:   "UPDATE does not take GROUP BY",
		},
		{
			name:  "delete with having",
			build: func(f *Fluent) *Fluent { return f.DeleteFrom("t").Having("COUNT(*) > 1") },
			msg:   "DELETE FROM does not take HAVING",
		},
		{
			name:  "delete with values",
			build: func(f *Fluent) *Fluent { return f.DeleteFrom("t").Values(translator.P("a", 1)) },
			msg:   "DELETE FROM does not take VALUES",
		},
		{
			name:  "select with set",
			build: func(f *Fluent) *Fluent { return f.From("t").Set(translator.P("a", 1)) },
			msg:   "SELECT does not take SET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build(New(tr, nil)).Render()
			assert.ErrorIs(t, err, sqlerr.ErrIncomplete)
			assert.ErrorContains(t, err, tt.msg)
			assert.Empty(t, got)
		})
	}
}
