package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{
			name:      "404 response is permanent",
			err:       &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}},
			retryable: false,
		},
		{
			name:      "422 response is permanent",
			err:       &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusUnprocessableEntity}},
			retryable: false,
		},
		{
			name:      "503 response is retryable",
			err:       &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}},
			retryable: true,
		},
		{
			name:      "network error is retryable",
			err:       &url.Error{Op: "Get", URL: "https://api.github.com", Err: errors.New("connection reset by peer")},
			retryable: true,
		},
		{
			name:      "rate limit is permanent",
			err:       &github.RateLimitError{},
			retryable: false,
		},
		{
			name:      "secondary rate limit is permanent",
			err:       &github.AbuseRateLimitError{},
			retryable: false,
		},
		{
			name:      "unknown error is permanent",
			err:       errors.New("something else"),
			retryable: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retryable, isRetryable(tc.err))
		})
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	policy := retryPolicy{maxRetries: 2, initialBackoff: time.Millisecond, maxBackoff: 4 * time.Millisecond}
	transient := &url.Error{Op: "Get", URL: "https://api.github.com", Err: errors.New("timeout")}

	t.Run("transient error then success runs the work exactly twice", func(t *testing.T) {
		calls := 0
		err := policy.do(context.Background(), func() error {
			calls++
			if calls == 1 {
				return transient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("permanent error is returned without retrying", func(t *testing.T) {
		calls := 0
		permanent := &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}}
		err := policy.do(context.Background(), func() error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausted budget surfaces the last error", func(t *testing.T) {
		calls := 0
		err := policy.do(context.Background(), func() error {
			calls++
			return transient
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "giving up")
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 3, calls)
	})

	t.Run("cancelled context stops further attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := policy.do(ctx, func() error {
			calls++
			return transient
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
