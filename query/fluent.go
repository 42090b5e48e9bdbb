// Package query provides Fluent, a clause builder that records clause calls
// in any order and renders them in canonical SQL order through a
// translator.
//
//	sql, err := query.New(tr, nil).
//		Select("id", "name").
//		From("users").
//		Where("active = %b", true).
//		Where(translator.Eq("role", "admin")).
//		OrderBy("name").
//		Limit(10).
//		Render()
//	// SELECT `id`, `name` FROM `users` WHERE (active = 1) AND (`role` = 'admin') ORDER BY `name` LIMIT 10
package query

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/Konsultn-Engineering/esql/database"
	"github.com/Konsultn-Engineering/esql/sqlerr"
	"github.com/Konsultn-Engineering/esql/translator"
)

// Executor runs rendered SQL. engine.Engine satisfies it.
type Executor interface {
	NativeQuery(ctx context.Context, sql string) (database.Rows, error)
	NativeExec(ctx context.Context, sql string) (database.Result, error)
}

type State int

const (
	Building State = iota
	Rendered
)

func (s State) String() string {
	if s == Rendered {
		return "rendered"
	}
	return "building"
}

type command string

const (
	cmdNone   command = ""
	cmdSelect command = "SELECT"
	cmdUpdate command = "UPDATE"
	cmdInsert command = "INSERT INTO"
	cmdDelete command = "DELETE FROM"
)

// Default modifiers used when a clause gets a single non-template argument.
const (
	modIdent  = "%n"
	modAnd    = "%and"
	modOrder  = "%by"
	modAssign = "%a"
	modValues = "%v"
	modMulti  = "%m"
	modExpand = "%ex"
)

// record is one clause call. conj marks a record rendered through %and,
// which already wraps each condition in parentheses.
type record struct {
	tpl  string
	args []any
	conj bool
}

func (r record) sub() translator.SubTemplate {
	return translator.SubTemplate{Fragment: r.tpl, Args: r.args}
}

type join struct {
	kind   string
	target record
	on     []record
}

// Fluent is not safe for concurrent use; one builder belongs to one query.
//
// Accumulating clauses: Select, Join, On, Where, GroupBy, Having, OrderBy,
// Set. Overwriting clauses: From, Update, InsertInto and DeleteFrom targets,
// Values, Distinct, Limit and Offset.
type Fluent struct {
	translator *translator.Translator
	executor   Executor

	command  command
	distinct bool
	target   *record
	columns  []record
	joins    []join
	where    []record
	groupBy  []record
	having   []record
	orderBy  []record
	set      []record
	values   *record
	limit    int
	offset   int

	state  State
	sql    string
	errors []error
}

// New creates a builder. executor may be nil when the builder is only
// rendered.
func New(tr *translator.Translator, executor Executor) *Fluent {
	return &Fluent{
		translator: tr,
		executor:   executor,
		limit:      -1,
	}
}

// AddError records err; the first recorded error is returned by Render.
func (f *Fluent) AddError(err error) {
	if err != nil {
		f.errors = append(f.errors, err)
	}
}

// Err returns the first recorded error or nil.
func (f *Fluent) Err() error {
	if len(f.errors) > 0 {
		return f.errors[0]
	}
	return nil
}

func (f *Fluent) State() State { return f.state }

func (f *Fluent) mutable() bool {
	if f.state == Rendered {
		f.AddError(sqlerr.New(sqlerr.CodeRendered, "builder already rendered; Clone it to continue"))
		return false
	}
	return true
}

func (f *Fluent) setCommand(c command) bool {
	if f.command != cmdNone && f.command != c {
		f.AddError(sqlerr.New(sqlerr.CodeIncomplete, "%s after %s", c, f.command))
		return false
	}
	f.command = c
	return true
}

// Select appends columns. Several plain column names in one call are
// rendered as one identifier list.
func (f *Fluent) Select(args ...any) *Fluent {
	if !f.mutable() || !f.setCommand(cmdSelect) {
		return f
	}
	f.add(&f.columns, modIdent, args)
	return f
}

// Distinct turns the SELECT into SELECT DISTINCT.
func (f *Fluent) Distinct() *Fluent {
	if f.mutable() && f.setCommand(cmdSelect) {
		f.distinct = true
	}
	return f
}

// From sets the source table; a later call replaces it.
func (f *Fluent) From(args ...any) *Fluent {
	if !f.mutable() {
		return f
	}
	f.setTarget(args)
	return f
}

func (f *Fluent) Join(args ...any) *Fluent      { return f.addJoin("JOIN", args) }
func (f *Fluent) LeftJoin(args ...any) *Fluent  { return f.addJoin("LEFT JOIN", args) }
func (f *Fluent) RightJoin(args ...any) *Fluent { return f.addJoin("RIGHT JOIN", args) }
func (f *Fluent) InnerJoin(args ...any) *Fluent { return f.addJoin("INNER JOIN", args) }

func (f *Fluent) addJoin(kind string, args []any) *Fluent {
	if !f.mutable() {
		return f
	}
	rec, err := toRecord(modIdent, args)
	if err != nil {
		f.AddError(err)
		return f
	}
	f.joins = append(f.joins, join{kind: kind, target: rec})
	return f
}

// On adds a join condition to the most recent join. Conditions on the same
// join are combined with AND.
func (f *Fluent) On(args ...any) *Fluent {
	if !f.mutable() {
		return f
	}
	if len(f.joins) == 0 {
		f.AddError(sqlerr.New(sqlerr.CodeIncomplete, "ON without JOIN"))
		return f
	}
	f.add(&f.joins[len(f.joins)-1].on, modAnd, args)
	return f
}

func (f *Fluent) Where(args ...any) *Fluent {
	if f.mutable() {
		f.add(&f.where, modAnd, args)
	}
	return f
}

func (f *Fluent) GroupBy(args ...any) *Fluent {
	if f.mutable() {
		f.add(&f.groupBy, modIdent, args)
	}
	return f
}

func (f *Fluent) Having(args ...any) *Fluent {
	if f.mutable() {
		f.add(&f.having, modAnd, args)
	}
	return f
}

func (f *Fluent) OrderBy(args ...any) *Fluent {
	if f.mutable() {
		f.add(&f.orderBy, modOrder, args)
	}
	return f
}

// Asc and Desc set the direction of the most recent ORDER BY entry, which
// must be a single column name without a direction.
func (f *Fluent) Asc() *Fluent  { return f.direction("ASC") }
func (f *Fluent) Desc() *Fluent { return f.direction("DESC") }

func (f *Fluent) direction(dir string) *Fluent {
	if !f.mutable() {
		return f
	}
	if len(f.orderBy) == 0 {
		f.AddError(sqlerr.New(sqlerr.CodeIncomplete, "%s without ORDER BY", dir))
		return f
	}
	last := &f.orderBy[len(f.orderBy)-1]
	if _, ok := singleColumn(*last); !ok {
		f.AddError(sqlerr.New(sqlerr.CodeIncomplete, "%s needs a single ORDER BY column", dir))
		return f
	}
	last.tpl += " " + dir
	return f
}

func singleColumn(r record) (string, bool) {
	if r.tpl != modIdent || len(r.args) != 1 {
		return "", false
	}
	name, ok := r.args[0].(string)
	return name, ok
}

// Limit replaces any earlier limit. A negative n removes it.
func (f *Fluent) Limit(n int) *Fluent {
	if f.mutable() {
		f.limit = n
	}
	return f
}

// Offset replaces any earlier offset.
func (f *Fluent) Offset(n int) *Fluent {
	if f.mutable() {
		f.offset = n
	}
	return f
}

func (f *Fluent) Update(args ...any) *Fluent {
	if f.mutable() && f.setCommand(cmdUpdate) {
		f.setTarget(args)
	}
	return f
}

// Set appends assignments; maps and Pairs render through %a.
func (f *Fluent) Set(args ...any) *Fluent {
	if f.mutable() {
		f.add(&f.set, modAssign, args)
	}
	return f
}

func (f *Fluent) InsertInto(args ...any) *Fluent {
	if f.mutable() && f.setCommand(cmdInsert) {
		f.setTarget(args)
	}
	return f
}

// Values replaces the inserted row. A slice of rows is inserted as one
// multi-row statement.
func (f *Fluent) Values(args ...any) *Fluent {
	if !f.mutable() {
		return f
	}
	mod := modValues
	if len(args) == 1 && isRowList(args[0]) {
		mod = modMulti
	}
	rec, err := toRecord(mod, args)
	if err != nil {
		f.AddError(err)
		return f
	}
	f.values = &rec
	return f
}

func (f *Fluent) DeleteFrom(args ...any) *Fluent {
	if f.mutable() && f.setCommand(cmdDelete) {
		f.setTarget(args)
	}
	return f
}

func (f *Fluent) setTarget(args []any) {
	rec, err := toRecord(modIdent, args)
	if err != nil {
		f.AddError(err)
		return
	}
	f.target = &rec
}

func (f *Fluent) add(dst *[]record, mod string, args []any) {
	// Several plain names form one column list.
	if (mod == modIdent || mod == modOrder) && len(args) > 1 && allIdentifiers(args) {
		names := make([]string, len(args))
		for i, a := range args {
			names[i] = a.(string)
		}
		*dst = append(*dst, record{tpl: mod, args: []any{names}})
		return
	}
	rec, err := toRecord(mod, args)
	if err != nil {
		f.AddError(err)
		return
	}
	*dst = append(*dst, rec)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_:][A-Za-z0-9_.:]*$`)

// toRecord turns clause arguments into a record: a lone name is an
// identifier, a leading string is a template, a lone Expander is expanded,
// and any other lone value goes through the clause's default modifier.
func toRecord(mod string, args []any) (record, error) {
	if len(args) == 0 {
		return record{}, sqlerr.New(sqlerr.CodeIncomplete, "clause called without arguments")
	}
	switch first := args[0].(type) {
	case string:
		if len(args) == 1 && identPattern.MatchString(first) {
			return record{tpl: modIdent, args: args}, nil
		}
		return record{tpl: first, args: args[1:]}, nil
	case translator.Expander:
		if len(args) == 1 {
			return record{tpl: modExpand, args: args}, nil
		}
	}
	if len(args) > 1 {
		return record{}, sqlerr.New(sqlerr.CodeTypeMismatch, "clause starts with %T, not a template", args[0])
	}
	return record{tpl: mod, args: args, conj: mod == modAnd}, nil
}

func allIdentifiers(args []any) bool {
	for _, a := range args {
		s, ok := a.(string)
		if !ok || !identPattern.MatchString(s) {
			return false
		}
	}
	return true
}

var pairsType = reflect.TypeOf(translator.Pairs{})

// isRowList reports whether v is a list of column → value rows rather than
// a single row.
func isRowList(v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return false
	}
	elem := rv.Type().Elem()
	return elem == pairsType || elem.Kind() == reflect.Map || elem.Kind() == reflect.Interface
}

// Expand returns the canonical fragment and argument sequence. It lets a
// builder be nested into another template through %ex.
func (f *Fluent) Expand() ([]string, []any, error) {
	if err := f.Err(); err != nil {
		return nil, nil, err
	}

	if err := f.checkClauses(); err != nil {
		return nil, nil, err
	}

	tpl := new(translator.Template)
	switch f.command {
	case cmdSelect, cmdNone:
		if f.target == nil && len(f.columns) == 0 {
			return nil, nil, sqlerr.New(sqlerr.CodeIncomplete, "SELECT needs columns or a FROM source")
		}
		kw := "SELECT"
		if f.distinct {
			kw += " DISTINCT"
		}
		if len(f.columns) == 0 {
			tpl.Append(kw + " *")
		} else {
			appendList(tpl, kw, f.columns, ", ")
		}
		if f.target != nil {
			appendList(tpl, "FROM", []record{*f.target}, "")
		}
		for _, j := range f.joins {
			appendList(tpl, j.kind, []record{j.target}, "")
			appendConj(tpl, "ON", j.on)
		}
		appendConj(tpl, "WHERE", f.where)
		appendList(tpl, "GROUP BY", f.groupBy, ", ")
		appendConj(tpl, "HAVING", f.having)
		appendList(tpl, "ORDER BY", f.orderBy, ", ")

	case cmdUpdate:
		if f.target == nil || len(f.set) == 0 {
			return nil, nil, sqlerr.New(sqlerr.CodeIncomplete, "UPDATE needs a table and SET")
		}
		appendList(tpl, "UPDATE", []record{*f.target}, "")
		appendList(tpl, "SET", f.set, ", ")
		appendConj(tpl, "WHERE", f.where)
		appendList(tpl, "ORDER BY", f.orderBy, ", ")

	case cmdInsert:
		if f.target == nil || f.values == nil {
			return nil, nil, sqlerr.New(sqlerr.CodeIncomplete, "INSERT needs a table and VALUES")
		}
		appendList(tpl, "INSERT INTO", []record{*f.target, *f.values}, " ")
		return tpl.Fragments(), tpl.Args(), nil

	case cmdDelete:
		if f.target == nil {
			return nil, nil, sqlerr.New(sqlerr.CodeIncomplete, "DELETE needs a table")
		}
		appendList(tpl, "DELETE FROM", []record{*f.target}, "")
		appendConj(tpl, "WHERE", f.where)
		appendList(tpl, "ORDER BY", f.orderBy, ", ")
	}

	var limit, offset any
	if f.limit >= 0 {
		limit = f.limit
	}
	if f.offset > 0 {
		offset = f.offset
	}
	if limit != nil || offset != nil {
		tpl.Append("%lmt %ofs", limit, offset)
	}
	return tpl.Fragments(), tpl.Args(), nil
}

// clauseSupport lists the clauses each command renders.
var clauseSupport = map[command]map[string]bool{
	cmdSelect: {"DISTINCT": true, "columns": true, "JOIN": true, "WHERE": true, "GROUP BY": true,
		"HAVING": true, "ORDER BY": true, "LIMIT": true, "OFFSET": true},
	cmdUpdate: {"SET": true, "WHERE": true, "ORDER BY": true, "LIMIT": true, "OFFSET": true},
	cmdInsert: {"VALUES": true},
	cmdDelete: {"WHERE": true, "ORDER BY": true, "LIMIT": true, "OFFSET": true},
}

// checkClauses fails when a clause is set that the command would not
// render.
func (f *Fluent) checkClauses() error {
	cmd := f.command
	if cmd == cmdNone {
		cmd = cmdSelect
	}
	present := []struct {
		name string
		set  bool
	}{
		{"DISTINCT", f.distinct},
		{"columns", len(f.columns) > 0},
		{"JOIN", len(f.joins) > 0},
		{"WHERE", len(f.where) > 0},
		{"GROUP BY", len(f.groupBy) > 0},
		{"HAVING", len(f.having) > 0},
		{"ORDER BY", len(f.orderBy) > 0},
		{"SET", len(f.set) > 0},
		{"VALUES", f.values != nil},
		{"LIMIT", f.limit >= 0},
		{"OFFSET", f.offset > 0},
	}
	for _, c := range present {
		if c.set && !clauseSupport[cmd][c.name] {
			return sqlerr.New(sqlerr.CodeIncomplete, "%s does not take %s", cmd, c.name)
		}
	}
	return nil
}

func appendList(tpl *translator.Template, keyword string, recs []record, sep string) {
	if len(recs) == 0 {
		return
	}
	parts := make([]string, len(recs))
	args := make([]any, len(recs))
	for i, r := range recs {
		parts[i] = modExpand
		args[i] = r.sub()
	}
	tpl.Append(keyword+" "+strings.Join(parts, sep), args...)
}

// appendConj joins condition records with AND. A single record is rendered
// as is; with several, template records are parenthesized.
func appendConj(tpl *translator.Template, keyword string, recs []record) {
	if len(recs) == 0 {
		return
	}
	if len(recs) == 1 {
		tpl.Append(keyword+" "+modExpand, recs[0].sub())
		return
	}
	parts := make([]string, len(recs))
	args := make([]any, len(recs))
	for i, r := range recs {
		parts[i] = "(" + modExpand + ")"
		if r.conj {
			parts[i] = modExpand
		}
		args[i] = r.sub()
	}
	tpl.Append(keyword+" "+strings.Join(parts, " AND "), args...)
}

// Render translates the builder and moves it to Rendered. Later calls
// return the same SQL; no SQL is returned on error and the builder stays
// in Building.
func (f *Fluent) Render() (string, error) {
	if err := f.Err(); err != nil {
		return "", err
	}
	if f.state == Rendered {
		return f.sql, nil
	}
	if f.translator == nil {
		return "", errors.New("query: builder has no translator")
	}
	sql, err := f.translator.TranslateTemplate(f)
	if err != nil {
		return "", err
	}
	f.sql, f.state = sql, Rendered
	return sql, nil
}

// String returns the rendered SQL, or "" when rendering fails.
func (f *Fluent) String() string {
	sql, err := f.Render()
	if err != nil {
		return ""
	}
	return sql
}

// Clone returns a Building copy that shares no clause state with f.
// ErrRendered recorded on f is not carried over.
func (f *Fluent) Clone() *Fluent {
	c := *f
	c.state, c.sql = Building, ""
	c.columns = cloneRecords(f.columns)
	c.where = cloneRecords(f.where)
	c.groupBy = cloneRecords(f.groupBy)
	c.having = cloneRecords(f.having)
	c.orderBy = cloneRecords(f.orderBy)
	c.set = cloneRecords(f.set)
	c.joins = make([]join, len(f.joins))
	for i, j := range f.joins {
		c.joins[i] = join{kind: j.kind, target: j.target, on: cloneRecords(j.on)}
	}
	if f.target != nil {
		t := *f.target
		c.target = &t
	}
	if f.values != nil {
		v := *f.values
		c.values = &v
	}
	c.errors = nil
	for _, err := range f.errors {
		if !errors.Is(err, sqlerr.ErrRendered) {
			c.errors = append(c.errors, err)
		}
	}
	return &c
}

func cloneRecords(recs []record) []record {
	if recs == nil {
		return nil
	}
	out := make([]record, len(recs))
	for i, r := range recs {
		out[i] = record{tpl: r.tpl, args: append([]any(nil), r.args...), conj: r.conj}
	}
	return out
}

var errNoExecutor = errors.New("query: builder has no executor")

// Exec renders and executes the statement.
func (f *Fluent) Exec(ctx context.Context) (database.Result, error) {
	sql, err := f.Render()
	if err != nil {
		return nil, err
	}
	if f.executor == nil {
		return nil, errNoExecutor
	}
	return f.executor.NativeExec(ctx, sql)
}

// Query renders the statement and returns its rows.
func (f *Fluent) Query(ctx context.Context) (database.Rows, error) {
	sql, err := f.Render()
	if err != nil {
		return nil, err
	}
	if f.executor == nil {
		return nil, errNoExecutor
	}
	return f.executor.NativeQuery(ctx, sql)
}

// FetchAll runs the query and materializes every row.
func (f *Fluent) FetchAll(ctx context.Context) ([]map[string]any, error) {
	rows, err := f.Query(ctx)
	if err != nil {
		return nil, err
	}
	return database.FetchAll(rows)
}

// FetchSingle runs the query and returns the first column of the first row.
func (f *Fluent) FetchSingle(ctx context.Context) (any, error) {
	rows, err := f.Query(ctx)
	if err != nil {
		return nil, err
	}
	return database.FetchSingle(rows)
}
