package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// doWithRetry runs fn until it succeeds, reports a non-retryable error, or
// the configured backoff schedule is exhausted. fn reports whether its
// error is worth retrying. The wait is context-aware so a caller's timeout
// cuts the schedule short.
func (c *Client) doWithRetry(ctx context.Context, operation string, fn func() (retryable bool, err error)) error {
	attempt := 0
	for {
		attempt++
		retryable, err := fn()
		if err == nil {
			return nil
		}
		if !retryable || attempt > len(c.cfg.RetryBackoff) {
			return err
		}

		backoff := c.cfg.RetryBackoff[attempt-1]
		if c.metrics != nil {
			c.metrics.RecordRetry()
		}
		c.logger.Info("gateway request failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
