package connector

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

type standardConnector struct {
	provider Provider
	config   Config
	logger   *slog.Logger
}

var globalManager = &Manager{
	providers: make(map[string]Provider),
}

type Manager struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// Register makes a provider available under name. Registering the same
// name twice replaces the earlier provider.
func Register(name string, provider Provider) {
	globalManager.mu.Lock()
	defer globalManager.mu.Unlock()
	globalManager.providers[strings.ToLower(name)] = provider
}

// Providers lists the registered driver names.
func Providers() []string {
	globalManager.mu.RLock()
	defer globalManager.mu.RUnlock()
	names := make([]string, 0, len(globalManager.providers))
	for name := range globalManager.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func New(name string, config Config) (Connector, error) {
	globalManager.mu.RLock()
	provider, ok := globalManager.providers[strings.ToLower(name)]
	globalManager.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %s not registered (have %s)", name, strings.Join(Providers(), ", "))
	}
	return &standardConnector{provider: provider, config: config, logger: slog.Default()}, nil
}

// Open validates cfg and connects through the provider named by
// cfg.Driver, retrying when cfg.Retry is set.
func Open(ctx context.Context, cfg Config) (Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c, err := New(cfg.Driver, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if cfg.Retry != nil {
		conn, err := c.ConnectWithRetry(ctx, *cfg.Retry)
		if err != nil {
			return nil, fmt.Errorf("failed to connect after %d retries: %w", cfg.Retry.MaxRetries, err)
		}
		return conn, nil
	}
	return c.Connect(ctx)
}

func (c *standardConnector) Connect(ctx context.Context) (Connection, error) {
	return c.provider.Connect(ctx, c.config)
}

func (c *standardConnector) ConnectWithRetry(ctx context.Context, opts RetryConfig) (Connection, error) {
	return retryConnect(ctx, opts, c.logger, c.Connect)
}

func (c *standardConnector) Config() Config { return c.config }

func (c *standardConnector) Close() error {
	return nil
}
