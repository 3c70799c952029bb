package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v62/github"
)

// retryPolicy bounds the attempts made for a single request. Only transient
// network failures and 5xx responses are retried; every 4xx response,
// including rate limits, fails immediately.
type retryPolicy struct {
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

var defaultRetryPolicy = retryPolicy{
	maxRetries:     3,
	initialBackoff: 500 * time.Millisecond,
	maxBackoff:     8 * time.Second,
}

// do runs fn until it succeeds, fails permanently, or the attempt budget is
// exhausted.
func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoffDelay(attempt - 1)):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", p.maxRetries+1, err)
}

// backoffDelay grows exponentially and carries 10-50% jitter to avoid
// thundering herds.
func (p retryPolicy) backoffDelay(attempt int) time.Duration {
	delay := p.initialBackoff << attempt
	if delay > p.maxBackoff || delay <= 0 {
		delay = p.maxBackoff
	}
	jitter := time.Duration((0.1 + 0.4*rand.Float64()) * float64(delay))
	return delay + jitter
}

func isRetryable(err error) bool {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return false
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return respErr.Response != nil && respErr.Response.StatusCode >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
