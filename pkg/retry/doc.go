// Package retry provides backoff and retry logic for transient failures in
// calls against the remote feature service.
//
// The service embeds application errors inside 200 OK bodies and also fails
// with plain network errors and 5xx responses; all of those are retried with
// linear backoff (sleep = base x attempt number) up to a configured number
// of attempts. Response-shape errors are never retried.
//
// Basic usage:
//
//	err := retry.Do(func() error {
//		return client.Ping()
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     &retry.LinearBackoff{BaseDelay: time.Second, Increment: time.Second},
//		RetryIf:     retry.DefaultRetryIf,
//	}
//	err := retry.Do(operation, cfg)
package retry
