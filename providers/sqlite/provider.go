// Package sqlite registers the "sqlite" driver backed by mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Konsultn-Engineering/esql/connector"
	"github.com/Konsultn-Engineering/esql/database"
	"github.com/Konsultn-Engineering/esql/dialect"
)

const driverName = "sqlite3"

type Provider struct{}

func init() {
	connector.Register("sqlite", &Provider{})
	connector.Register("sqlite3", &Provider{})
}

// BuildDSN returns cfg.DSN when set, otherwise a file: DSN for
// cfg.Database. An empty database means a private in-memory database.
func BuildDSN(cfg connector.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	path := cfg.Database
	if path == "" {
		path = ":memory:"
	}
	return connector.NewDSNBuilder("file").
		File(path).
		Param("_busy_timeout", busyTimeout(cfg.QueryTimeout)).
		Params(cfg.Params).
		Build()
}

func busyTimeout(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return strconv.FormatInt(d.Milliseconds(), 10)
}

func inMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func (p *Provider) Connect(ctx context.Context, cfg connector.Config) (connector.Connection, error) {
	d, err := cfg.ResolveDialect(p.Dialect())
	if err != nil {
		return nil, err
	}

	dsn := BuildDSN(cfg)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: is a separate database.
	if inMemory(dsn) {
		db.SetMaxOpenConns(1)
	} else if cfg.Pool.MaxOpen > 0 {
		db.SetMaxOpenConns(cfg.Pool.MaxOpen)
	}
	if cfg.Pool.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.Pool.MaxIdle)
	}
	if cfg.Pool.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Pool.MaxLifetime)
	}
	if cfg.Pool.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.Pool.MaxIdleTime)
	}

	if !cfg.Lazy {
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &connection{db: database.NewSqlDatabase(db), dialect: d}, nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return dialect.NewSQLiteDialect()
}

func (p *Provider) HealthCheck(ctx context.Context, conn connector.Connection) error {
	return conn.Health(ctx)
}

type connection struct {
	db      *database.SqlDatabase
	dialect dialect.Dialect
}

func (c *connection) Database() database.Database { return c.db }
func (c *connection) Dialect() dialect.Dialect    { return c.dialect }

func (c *connection) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *connection) Stats() connector.ConnectionStats {
	return connector.StatsFromDB(c.db.DB().Stats())
}

func (c *connection) Close() error {
	return c.db.Close()
}
