// utils/retry.go
package utils

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// RetryConfig is the single retry policy applied at the store boundary.
// Every repository shares one configuration instead of per-call-site retry
// loops.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryConfig retries transient store errors up to 3 times with a
// doubling backoff starting at 100ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Delay:    100 * time.Millisecond,
		MaxDelay: 2 * time.Second,
	}
}

// WithRetry runs op, retrying only transient store errors. Validation and
// state-machine errors are returned immediately so a bad write is never
// replayed. The last error is wrapped as transient_store_error when all
// attempts are exhausted.
func WithRetry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	delay := cfg.Delay

	var err error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == cfg.Attempts {
			break
		}
		log.Printf("transient store error (attempt %d/%d), retrying in %v: %v", attempt, cfg.Attempts, delay, err)
		select {
		case <-ctx.Done():
			return WrapError(ErrKindTransientStore, "retry aborted", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return WrapError(ErrKindTransientStore, "store operation failed after retries", err)
}

// IsTransient reports whether err is worth retrying. Duplicate keys, missing
// documents and any classified AppError other than transient_store_error are
// permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == ErrKindTransientStore
	}
	if errors.Is(err, mongo.ErrNoDocuments) || mongo.IsDuplicateKeyError(err) {
		return false
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
