package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func newTestPolicy(t *testing.T, cfg Config) *Policy {
	t.Helper()
	p := NewPolicy(cfg, nil)
	// Avoid real sleeps in tests.
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestDelayMonotonicAndClamped(t *testing.T) {
	p := newTestPolicy(t, Config{
		MaxRetries: 10,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	})

	prev := time.Duration(0)
	for i := 0; i < 10; i++ {
		d := p.Delay(i)
		// Upper bound includes the 10% jitter on the clamped delay.
		assert.LessOrEqual(t, d, 2*time.Second+200*time.Millisecond, "attempt %d", i)
		base := float64(100*time.Millisecond) * float64(int(1)<<uint(i))
		if base < float64(2*time.Second) && float64(prev) < float64(2*time.Second) {
			assert.GreaterOrEqual(t, d, prev, "attempt %d", i)
		}
		prev = d
	}
}

func TestDelayConstantWithoutBackoff(t *testing.T) {
	off := false
	p := newTestPolicy(t, Config{
		MaxRetries:            3,
		BaseDelay:             time.Second,
		UseExponentialBackoff: &off,
	})
	for i := 0; i < 5; i++ {
		assert.Equal(t, time.Second, p.Delay(i))
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	p := newTestPolicy(t, Config{MaxRetries: 3})

	calls := 0
	err := p.Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls <= 2 {
			return &googleapi.Error{Code: 503, Message: "backend unavailable"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustionOn429(t *testing.T) {
	p := newTestPolicy(t, Config{MaxRetries: 2})

	calls := 0
	cause := &googleapi.Error{Code: 429, Message: "quota"}
	err := p.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return cause
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "expected max_retries+1 invocations")
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 3, rle.Attempts)
	assert.ErrorIs(t, err, error(cause))
}

func TestDoNonRetryableInvokedOnce(t *testing.T) {
	p := newTestPolicy(t, Config{MaxRetries: 5})

	calls := 0
	cause := errors.New("bad request semantics")
	err := p.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return cause
	})
	assert.Equal(t, 1, calls)
	// The original error comes back unmodified.
	assert.Same(t, cause, err)
}

func TestDoNonRetryableStatusInvokedOnce(t *testing.T) {
	p := newTestPolicy(t, Config{MaxRetries: 5})

	calls := 0
	cause := &googleapi.Error{Code: 404, Message: "not found"}
	err := p.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return cause
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, error(cause), err)
}

func TestShouldRetryClassification(t *testing.T) {
	p := newTestPolicy(t, Config{})

	assert.False(t, p.ShouldRetry(nil))
	assert.True(t, p.ShouldRetry(&googleapi.Error{Code: 500}))
	assert.True(t, p.ShouldRetry(&StatusError{Code: 502, Err: errors.New("proxy")}))
	assert.False(t, p.ShouldRetry(&googleapi.Error{Code: 403}))
	assert.False(t, p.ShouldRetry(errors.New("logic error")))
}

func TestShouldRetryCustomStatusCodes(t *testing.T) {
	p := newTestPolicy(t, Config{RetryStatusCodes: []int{418}})
	assert.True(t, p.ShouldRetry(&googleapi.Error{Code: 418}))
	assert.False(t, p.ShouldRetry(&googleapi.Error{Code: 500}))
}

func TestMinimumCallSpacing(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 0, APICallDelay: 30 * time.Millisecond}, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Do(context.Background(), "spaced", func(context.Context) error { return nil }))
	}
	// Two gaps of at least the configured floor between three calls.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 5, BaseDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, "test", func(context.Context) error {
		return &googleapi.Error{Code: 503}
	})
	assert.ErrorIs(t, err, context.Canceled)
}
