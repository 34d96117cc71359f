package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps test backoffs negligible.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoValSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetry(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("connection dropped"))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls, "must succeed on the third attempt, no fourth call")
}

func TestDoValExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(), func(ctx context.Context) (string, error) {
		calls++
		return "", NewTransientError(errors.New("timeout"))
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("HTTP 400: bad request")
	calls := 0
	err := Do(context.Background(), fastRetry(), func(ctx context.Context) error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "semantic errors must fail immediately")
}

func TestDoRespectsShouldRetryOverride(t *testing.T) {
	cfg := fastRetry()
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "again" }

	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return fmt.Errorf("again")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, fastRetry(), func(ctx context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("timeout"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoInvokesOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetry()
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(errors.New("timeout"))
	})

	assert.Equal(t, []int{1, 2}, attempts, "no callback after the final attempt")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped transient", NewTransientError(errors.New("x")), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"reset by message", errors.New("read tcp: connection reset by peer"), true},
		{"dns failure", errors.New("dial tcp: lookup api.example: no such host"), true},
		{"io timeout", errors.New("dial tcp: i/o timeout"), true},
		{"wrapped eof", fmt.Errorf("execute request: %w", io.EOF), true},
		{"wrapped unexpected eof", fmt.Errorf("execute request: %w", io.ErrUnexpectedEOF), true},
		{"unexpected eof by message", errors.New("Post \"https://api\": unexpected EOF"), true},
		{"semantic error", errors.New("HTTP 422: invalid payload"), false},
		{"plain error", errors.New("boom"), false},
		{"eof substring in server detail", errors.New("HTTP 400: field eof_marker is invalid"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2.0,
	})

	assert.Equal(t, 1*time.Second, backoff(0, cfg))
	assert.Equal(t, 2*time.Second, backoff(1, cfg))
	assert.Equal(t, 4*time.Second, backoff(2, cfg))
	assert.Equal(t, 8*time.Second, backoff(3, cfg))
	assert.Equal(t, 8*time.Second, backoff(10, cfg), "capped at max")
}
