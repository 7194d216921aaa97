package apperrors

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultRetries = 3

// Retry runs op again only while it fails with StorageUnavailable. Callers must only
// wrap idempotent operations.
func Retry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(func() error {
		err := op()
		if err == nil || IsStorage(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, defaultRetries), ctx))
}
