package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/claim-console/internal/logging"
)

// retryPolicy bounds how often a session store operation is attempted.
type retryPolicy struct {
	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Loads fall back to the default URL on failure, so only writes are retried.
var (
	storePolicy = retryPolicy{attempts: 3, initialBackoff: 50 * time.Millisecond, maxBackoff: time.Second}
	loadPolicy  = retryPolicy{attempts: 1}
)

// withRetry runs a session store operation under policy, backing off exponentially between
// transient failures. Calls to the claims API never go through here.
func (r *Registry) withRetry(ctx context.Context, policy retryPolicy, sessionID, operation string, fn func() error) error {
	if policy.attempts <= 1 {
		return logging.NewOperationError(operation, sessionID, fn())
	}

	backoff := policy.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, sessionID)
	var err error
	for attempt := 0; attempt < policy.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, sessionID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= policy.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("session store operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == policy.attempts-1 {
			if !errors.Is(err, ErrCacheMiss) {
				opLogger.Error("session store operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			}
			return logging.NewOperationError(operation, sessionID, err)
		}

		opLogger.Warn("transient session store error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, sessionID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
