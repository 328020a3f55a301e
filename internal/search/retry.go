package search

import (
	"context"
	"math/rand"
	"net/http"
	"time"
)

// Retry policy for transient provider failures. The dispatcher never
// retries; retries live inside the provider call.
const (
	retryBaseBackoff = 250 * time.Millisecond
	retryMaxBackoff  = 2 * time.Second
)

// RetryConfig bounds the provider-internal retry loop.
type RetryConfig struct {
	MaxRetries int
}

// doWithRetry performs an HTTP GET with limited retries and jittered
// exponential backoff. Only transport errors and retryable status codes
// (429, 5xx) are retried; everything else returns immediately.
func doWithRetry(ctx context.Context, client *http.Client, req *http.Request, cfg RetryConfig) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; ; attempt++ {
		resp, err = client.Do(req.Clone(ctx))
		if err == nil && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return resp, nil
		}
		if attempt >= cfg.MaxRetries || ctx.Err() != nil {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoffDelay(attempt)):
		}
	}
}

// backoffDelay computes the jittered sleep before the next attempt. The
// jittered value never exceeds the backoff cap.
func backoffDelay(attempt int) time.Duration {
	backoff := retryBaseBackoff << attempt
	if backoff > retryMaxBackoff {
		backoff = retryMaxBackoff
	}
	// Full jitter
	sleep := time.Duration(rand.Int63n(int64(backoff))) + backoff/2
	if sleep > retryMaxBackoff {
		sleep = retryMaxBackoff
	}
	return sleep
}
