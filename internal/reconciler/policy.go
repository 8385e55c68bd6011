package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// BatchPolicy bounds the fan-out of ledger reads: at most Size requests in
// flight, and Delay between consecutive groups.
type BatchPolicy struct {
	Size  int
	Delay time.Duration
}

// Profiles for the public gateway and for an API key with a higher quota.
var (
	PublicBatch = BatchPolicy{Size: 3, Delay: 1500 * time.Millisecond}
	KeyedBatch  = BatchPolicy{Size: 10, Delay: 200 * time.Millisecond}
)

// SelectBatchPolicy picks keyed when the network has an API key configured.
func SelectBatchPolicy(network domain.NetworkConfig, public, keyed BatchPolicy) BatchPolicy {
	if network.HasAPIKey() {
		return keyed.normalized()
	}
	return public.normalized()
}

func (p BatchPolicy) normalized() BatchPolicy {
	if p.Size <= 0 {
		p.Size = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// RetryPolicy retries rate-limited and transient reads with exponential
// backoff. CallTimeout, when set, bounds every single attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		CallTimeout: 15 * time.Second,
	}
}

// Backoff returns the wait before retry number attempt (0-based):
// BaseDelay × 2^attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs fn under the policy. Only errors classified by domain.IsRetryable
// are retried; anything else, or cancellation of ctx, returns immediately.
func Do[T any](ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := callWithTimeout(ctx, p.CallTimeout, fn)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		if !domain.IsRetryable(err) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		if attempt == attempts-1 {
			break
		}

		wait := p.Backoff(attempt)
		slog.Debug("retrying ledger read", "op", op, "attempt", attempt+1, "wait", wait, "err", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
	return zero, fmt.Errorf("%s: giving up after %d attempts: %w", op, attempts, lastErr)
}

func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
