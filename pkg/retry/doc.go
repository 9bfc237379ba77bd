// Package retry runs operations again after transient failures.
//
// Typed errors from pkg/errors decide whether an attempt is retried, and a
// server-requested RetryAfter overrides a shorter backoff delay:
//
//	page, err := retry.DoWithResult(func() ([]byte, error) {
//		return client.get(ctx, url)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		Context:     ctx,
//		Logger:      log,
//	})
package retry
