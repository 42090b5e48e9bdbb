package connector

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultBaseDelay = time.Second
	defaultBackoff   = 2.0
)

// retryConnect calls connectFn up to opts.MaxRetries times (at least once),
// multiplying the delay by opts.Backoff after every failure. The last
// connection error is returned.
func retryConnect(ctx context.Context, opts RetryConfig, logger *slog.Logger, connectFn func(context.Context) (Connection, error)) (Connection, error) {
	delay := opts.BaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}
	backoff := opts.Backoff
	if backoff < 1 {
		backoff = defaultBackoff
	}
	attempts := max(opts.MaxRetries, 1)

	var err error
	for i := range attempts {
		var conn Connection
		conn, err = connectFn(ctx)
		if err == nil {
			return conn, nil
		}
		if i == attempts-1 {
			break
		}
		logger.Warn("connect failed, retrying", "attempt", i+1, "of", attempts, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * backoff)
		if opts.MaxDelay > 0 && delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
	return nil, err
}
