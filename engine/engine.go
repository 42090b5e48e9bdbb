// Package engine ties a connection to a translator: statements are built
// from templates or the fluent builder, translated for the connection's
// dialect and executed, with every statement logged.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Konsultn-Engineering/esql/connector"
	"github.com/Konsultn-Engineering/esql/database"
	"github.com/Konsultn-Engineering/esql/datasource"
	"github.com/Konsultn-Engineering/esql/dialect"
	"github.com/Konsultn-Engineering/esql/query"
	"github.com/Konsultn-Engineering/esql/subst"
	"github.com/Konsultn-Engineering/esql/translator"
	"github.com/Konsultn-Engineering/esql/utils"
)

var ErrClosed = errors.New("engine: closed")

// Engine is safe for concurrent use. While a transaction is open every
// statement runs inside it.
type Engine struct {
	cfg        connector.Config
	translator *translator.Translator
	subst      *subst.Table
	logger     *slog.Logger

	mu       sync.Mutex
	conn     connector.Connection
	tx       database.Tx
	insertID int64
	idErr    error
	closed   bool

	queries atomic.Int64
	elapsed atomic.Int64
}

type Option func(*Engine)

// WithSubstitutions isolates the engine from the process-wide table.
func WithSubstitutions(table *subst.Table) Option {
	return func(e *Engine) {
		if table != nil {
			e.subst = table
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Open creates an engine for cfg. Unless cfg.Lazy is set the connection is
// opened immediately; otherwise on the first statement.
func Open(ctx context.Context, cfg connector.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	fallback, err := dialect.Lookup(cfg.Driver)
	if err != nil {
		fallback = dialect.NewMySQLDialect()
	}
	d, err := cfg.ResolveDialect(fallback)
	if err != nil {
		return nil, err
	}

	e := newEngine(cfg, d, opts)
	if !cfg.Lazy {
		if _, err := e.connection(ctx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// New wraps an open connection.
func New(conn connector.Connection, opts ...Option) *Engine {
	e := newEngine(connector.Config{}, conn.Dialect(), opts)
	e.conn = conn
	return e
}

func newEngine(cfg connector.Config, d dialect.Dialect, opts []Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		subst:  subst.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.subst.AddAll(cfg.Substitutions)
	if cfg.TablePrefix != "" {
		e.subst.SetFallback(subst.TableFallback(cfg.TablePrefix))
	}

	topts := []translator.Option{
		translator.WithSubstitutions(e.subst),
		translator.WithLogger(e.logger),
	}
	if cfg.MaxDepth > 0 {
		topts = append(topts, translator.WithMaxDepth(cfg.MaxDepth))
	}
	if cfg.CacheSize > 0 {
		topts = append(topts, translator.WithCacheSize(cfg.CacheSize))
	}
	e.translator = translator.New(d, topts...)
	return e
}

func (e *Engine) connection(ctx context.Context) (connector.Connection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.conn == nil {
		conn, err := connector.Open(ctx, e.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", e.cfg.Driver, err)
		}
		e.logger.Debug("connected", "driver", e.cfg.Driver, "dialect", conn.Dialect().Name())
		e.conn = conn
	}
	return e.conn, nil
}

// querier returns the open transaction, or the connection's database.
func (e *Engine) querier(ctx context.Context) (database.Querier, error) {
	conn, err := e.connection(ctx)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tx != nil {
		return e.tx, nil
	}
	return conn.Database(), nil
}

func (e *Engine) Translator() *translator.Translator { return e.translator }
func (e *Engine) Substitutions() *subst.Table        { return e.subst }
func (e *Engine) Dialect() dialect.Dialect           { return e.translator.Dialect() }

// SQL translates tpl without executing it.
func (e *Engine) SQL(tpl translator.Expander) (string, error) {
	return e.translator.TranslateTemplate(tpl)
}

// Query translates tpl and returns its rows.
func (e *Engine) Query(ctx context.Context, tpl translator.Expander) (database.Rows, error) {
	sql, err := e.SQL(tpl)
	if err != nil {
		return nil, err
	}
	return e.NativeQuery(ctx, sql)
}

// Exec translates and executes tpl and returns the number of affected rows.
func (e *Engine) Exec(ctx context.Context, tpl translator.Expander) (int64, error) {
	sql, err := e.SQL(tpl)
	if err != nil {
		return 0, err
	}
	res, err := e.NativeExec(ctx, sql)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Fetch translates tpl and returns every row.
func (e *Engine) Fetch(ctx context.Context, tpl translator.Expander) ([]map[string]any, error) {
	rows, err := e.Query(ctx, tpl)
	if err != nil {
		return nil, err
	}
	return database.FetchAll(rows)
}

// FetchSingle returns the first column of the first row, or nil.
func (e *Engine) FetchSingle(ctx context.Context, tpl translator.Expander) (any, error) {
	rows, err := e.Query(ctx, tpl)
	if err != nil {
		return nil, err
	}
	return database.FetchSingle(rows)
}

// FetchPairs translates tpl and returns its rows as key → value pairs, taken
// from the key and value columns or, when both are empty, the first two.
func (e *Engine) FetchPairs(ctx context.Context, tpl translator.Expander, key, value string) ([]database.KeyValue, error) {
	rows, err := e.Query(ctx, tpl)
	if err != nil {
		return nil, err
	}
	return database.FetchPairs(rows, key, value)
}

// NativeQuery runs already translated SQL.
func (e *Engine) NativeQuery(ctx context.Context, sql string) (database.Rows, error) {
	q, err := e.querier(ctx)
	if err != nil {
		return nil, err
	}
	id, start := ulid.Make(), time.Now()
	rows, err := q.QueryContext(ctx, sql)
	e.record(id, sql, start, err)
	return rows, err
}

// NativeExec runs already translated SQL and remembers its insert id.
func (e *Engine) NativeExec(ctx context.Context, sql string) (database.Result, error) {
	q, err := e.querier(ctx)
	if err != nil {
		return nil, err
	}
	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	id, start := ulid.Make(), time.Now()
	res, err := q.ExecContext(ctx, sql)
	e.record(id, sql, start, err)
	if err != nil {
		return nil, err
	}

	insertID, idErr := res.LastInsertId()
	e.mu.Lock()
	e.insertID, e.idErr = insertID, idErr
	e.mu.Unlock()
	return res, nil
}

func (e *Engine) record(id ulid.ULID, sql string, start time.Time, err error) {
	elapsed := time.Since(start)
	e.queries.Add(1)
	e.elapsed.Add(int64(elapsed))
	if err != nil {
		e.logger.Error("query failed", "query_id", id.String(), "sql", sql, "elapsed", elapsed, "error", err)
		return
	}
	e.logger.Debug("query", "query_id", id.String(), "sql", sql, "elapsed", elapsed)
}

// Test writes the formatted SQL for tpl to w, or the translation error.
// It reports whether translation succeeded.
func (e *Engine) Test(w io.Writer, tpl translator.Expander) bool {
	sql, err := e.SQL(tpl)
	if err != nil {
		fmt.Fprintln(w, err)
		return false
	}
	fmt.Fprintln(w, utils.Dump(sql))
	return true
}

// Command starts an empty fluent statement bound to this engine.
func (e *Engine) Command() *query.Fluent {
	return query.New(e.translator, e)
}

func (e *Engine) Select(args ...any) *query.Fluent {
	return e.Command().Select(args...)
}

// Update starts "UPDATE table SET set".
func (e *Engine) Update(table any, set any) *query.Fluent {
	return e.Command().Update(table).Set(set)
}

// Insert starts "INSERT INTO table values"; values may be one row or a
// slice of rows.
func (e *Engine) Insert(table any, values any) *query.Fluent {
	return e.Command().InsertInto(table).Values(values)
}

func (e *Engine) Delete(table any) *query.Fluent {
	return e.Command().DeleteFrom(table)
}

// DataSource wraps a table name, SQL text or a template.
func (e *Engine) DataSource(source any) *datasource.DataSource {
	return datasource.New(e, source)
}

// InsertID returns the id generated by the last executed statement.
func (e *Engine) InsertID() (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insertID, e.idErr
}

type Stats struct {
	Queries    int64
	Elapsed    time.Duration
	Connection connector.ConnectionStats
}

func (e *Engine) Stats() Stats {
	s := Stats{
		Queries: e.queries.Load(),
		Elapsed: time.Duration(e.elapsed.Load()),
	}
	e.mu.Lock()
	if e.conn != nil {
		s.Connection = e.conn.Stats()
	}
	e.mu.Unlock()
	return s
}

// Close rolls back an open transaction and closes the connection.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if e.tx != nil {
		e.logger.Warn("closing with an open transaction; rolling back")
		errs = append(errs, e.tx.Rollback(context.Background()))
		e.tx = nil
	}
	if e.conn != nil {
		errs = append(errs, e.conn.Close())
	}
	return errors.Join(errs...)
}
