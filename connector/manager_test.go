package connector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/esql/database"
	"github.com/Konsultn-Engineering/esql/dialect"
)

type fakeConnection struct{ cfg Config }

func (c *fakeConnection) Database() database.Database      { return nil }
func (c *fakeConnection) Dialect() dialect.Dialect         { return dialect.NewSQLiteDialect() }
func (c *fakeConnection) Health(ctx context.Context) error { return nil }
func (c *fakeConnection) Stats() ConnectionStats           { return ConnectionStats{} }
func (c *fakeConnection) Close() error                     { return nil }

// flakyProvider fails the first failures connects.
type flakyProvider struct {
	failures int
	calls    int
}

func (p *flakyProvider) Connect(ctx context.Context, cfg Config) (Connection, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, errors.New("connection refused")
	}
	return &fakeConnection{cfg: cfg}, nil
}

func (p *flakyProvider) Dialect() dialect.Dialect { return dialect.NewSQLiteDialect() }

func (p *flakyProvider) HealthCheck(ctx context.Context, conn Connection) error {
	return conn.Health(ctx)
}

func TestOpen(t *testing.T) {
	p := &flakyProvider{}
	Register("fake-open", p)

	conn, err := Open(context.Background(), Config{Driver: "FAKE-OPEN", Database: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", conn.(*fakeConnection).cfg.Database)
	assert.Contains(t, Providers(), "fake-open")
}

func TestOpenRetries(t *testing.T) {
	p := &flakyProvider{failures: 2}
	Register("fake-retry", p)

	cfg := Config{
		Driver: "fake-retry",
		Retry:  &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond},
	}
	_, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestOpenGivesUp(t *testing.T) {
	p := &flakyProvider{failures: 5}
	Register("fake-giveup", p)

	cfg := Config{
		Driver: "fake-giveup",
		Retry:  &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond},
	}
	_, err := Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 2, p.calls)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "nope"})
	assert.ErrorContains(t, err, "provider nope not registered")

	_, err = Open(context.Background(), Config{})
	assert.ErrorContains(t, err, "driver is required")
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	connect := func(context.Context) (Connection, error) {
		calls++
		cancel()
		return nil, errors.New("down")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := retryConnect(ctx, RetryConfig{MaxRetries: 5, BaseDelay: time.Hour}, logger, connect)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
