package reconciler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/reconciler"
)

func TestSelectBatchPolicy(t *testing.T) {
	public := reconciler.BatchPolicy{Size: 3, Delay: time.Second}
	keyed := reconciler.BatchPolicy{Size: 10, Delay: 100 * time.Millisecond}

	got := reconciler.SelectBatchPolicy(domain.NetworkConfig{}, public, keyed)
	assert.Equal(t, public, got)

	got = reconciler.SelectBatchPolicy(domain.NetworkConfig{APIKey: "k"}, public, keyed)
	assert.Equal(t, keyed, got)

	got = reconciler.SelectBatchPolicy(domain.NetworkConfig{}, reconciler.BatchPolicy{}, keyed)
	assert.Equal(t, 1, got.Size, "zero size is normalized")
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := reconciler.RetryPolicy{BaseDelay: 500 * time.Millisecond, MaxDelay: 3 * time.Second}
	assert.Equal(t, 500*time.Millisecond, p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 3*time.Second, p.Backoff(3))
	assert.Equal(t, 3*time.Second, p.Backoff(10))
}

func fastRetry(attempts int) reconciler.RetryPolicy {
	return reconciler.RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_RetriesRetryableUpToCeiling(t *testing.T) {
	var calls atomic.Int32
	_, err := reconciler.Do(context.Background(), fastRetry(4), "op", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, domain.ErrRateLimited
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(4), calls.Load())
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	var calls atomic.Int32
	perm := errors.New("boom")
	_, err := reconciler.Do(context.Background(), fastRetry(4), "op", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, perm
	})
	assert.ErrorIs(t, err, perm)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_ReturnsValueAfterTransientFailures(t *testing.T) {
	var calls atomic.Int32
	v, err := reconciler.Do(context.Background(), fastRetry(4), "op", func(ctx context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", domain.ErrTransient
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDo_CallTimeoutIsRetryable(t *testing.T) {
	p := fastRetry(2)
	p.CallTimeout = 5 * time.Millisecond

	var calls atomic.Int32
	_, err := reconciler.Do(context.Background(), p, "op", func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reconciler.Do(ctx, fastRetry(5), "op", func(ctx context.Context) (int, error) {
		return 0, domain.ErrTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
}
