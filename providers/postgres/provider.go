// Package postgres registers the "postgres" driver backed by pgxpool.
package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Konsultn-Engineering/esql/connector"
	"github.com/Konsultn-Engineering/esql/database"
	"github.com/Konsultn-Engineering/esql/dialect"
)

type Provider struct{}

func init() {
	connector.Register("postgres", &Provider{})
	connector.Register("pgx", &Provider{})
}

// BuildDSN returns cfg.DSN when set, otherwise a postgres:// URL.
func BuildDSN(cfg connector.Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	b := connector.NewDSNBuilder("postgres").
		Auth(cfg.Username, cfg.Password).
		Host(cfg.Host, port).
		Database(cfg.Database).
		Param("sslmode", cfg.SSLMode).
		Params(cfg.Params)
	if cfg.ConnectTimeout > 0 {
		b.Param("connect_timeout", strconv.Itoa(max(int(cfg.ConnectTimeout/time.Second), 1)))
	}
	if err := b.Validate(); err != nil {
		return "", err
	}
	return b.Build(), nil
}

func (p *Provider) Connect(ctx context.Context, cfg connector.Config) (connector.Connection, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}
	d, err := cfg.ResolveDialect(p.Dialect())
	if err != nil {
		return nil, err
	}

	// apply defaults
	if cfg.Pool.MaxOpen <= 0 {
		cfg.Pool.MaxOpen = 10
	}
	if cfg.Pool.MaxLifetime == 0 {
		cfg.Pool.MaxLifetime = time.Hour
	}
	if cfg.Pool.MaxIdleTime == 0 {
		cfg.Pool.MaxIdleTime = 30 * time.Minute
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = int32(cfg.Pool.MaxOpen)
	poolCfg.MinConns = int32(min(cfg.Pool.MaxIdle, cfg.Pool.MaxOpen))
	poolCfg.MaxConnLifetime = cfg.Pool.MaxLifetime
	poolCfg.MaxConnIdleTime = cfg.Pool.MaxIdleTime
	if cfg.Pool.HealthCheckFreq > 0 {
		poolCfg.HealthCheckPeriod = cfg.Pool.HealthCheckFreq
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if !cfg.Lazy {
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &connection{pool: pool, db: database.NewPgxDatabase(pool), dialect: d}, nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return dialect.NewPostgresDialect()
}

func (p *Provider) HealthCheck(ctx context.Context, conn connector.Connection) error {
	return conn.Health(ctx)
}

type connection struct {
	pool    *pgxpool.Pool
	db      *database.PgxDatabase
	dialect dialect.Dialect
}

func (c *connection) Database() database.Database {
	return c.db
}

func (c *connection) Dialect() dialect.Dialect {
	return c.dialect
}

func (c *connection) Health(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *connection) Stats() connector.ConnectionStats {
	s := c.pool.Stat()
	return connector.ConnectionStats{
		MaxOpen:         int(s.MaxConns()),
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
		WaitCount:       s.EmptyAcquireCount(),
	}
}

func (c *connection) Close() error {
	c.pool.Close()
	return nil
}
