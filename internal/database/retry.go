package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// RetryDelay is the pause before retrying a failed storage call.
var RetryDelay = 100 * time.Millisecond

// isPermanent reports errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func newBackOff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(RetryDelay), constants.StorageRetries), ctx)
}

// WithRetry runs op, retrying once on failure. Errors that survive the retry
// are wrapped with ErrStorageUnavailable; permanent errors are returned as is.
func WithRetry(ctx context.Context, op func() error) error {
	_, err := WithRetryValue(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// WithRetryValue is WithRetry for operations returning a value.
func WithRetryValue[T any](ctx context.Context, op func() (T, error)) (T, error) {
	res, err := backoff.RetryWithData(func() (T, error) {
		res, err := op()
		if err != nil && isPermanent(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, newBackOff(ctx))
	if err == nil {
		return res, nil
	}
	if isPermanent(err) {
		return res, err
	}
	return res, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
