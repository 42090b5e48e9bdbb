package connector

import (
	"context"

	"github.com/Konsultn-Engineering/esql/dialect"
)

// Provider opens connections for one driver. Providers register themselves
// from an init function, see providers/postgres and providers/sqlite.
type Provider interface {
	Connect(ctx context.Context, config Config) (Connection, error)
	Dialect() dialect.Dialect
	HealthCheck(ctx context.Context, conn Connection) error
}
