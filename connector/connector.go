package connector

import (
	"context"

	"github.com/Konsultn-Engineering/esql/database"
	"github.com/Konsultn-Engineering/esql/dialect"
)

// Connection is an open database handle together with the dialect its SQL
// must be escaped for.
type Connection interface {
	Database() database.Database
	Dialect() dialect.Dialect
	Health(ctx context.Context) error
	Stats() ConnectionStats
	Close() error
}

type Connector interface {
	Connect(ctx context.Context) (Connection, error)
	ConnectWithRetry(ctx context.Context, opts RetryConfig) (Connection, error)
	Config() Config
	Close() error
}
