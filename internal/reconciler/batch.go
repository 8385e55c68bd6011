package reconciler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// runBatched calls fn for every item, policy.Size at a time, sleeping
// policy.Delay between groups. Cancellation is checked at every group
// boundary. fn reports soft failures itself and returns an error only to
// abort the whole run; the first such error is returned.
func runBatched[T any](ctx context.Context, policy BatchPolicy, items []T, fn func(ctx context.Context, i int, item T) error) error {
	policy = policy.normalized()
	for start := 0; start < len(items); start += policy.Size {
		if start > 0 && policy.Delay > 0 {
			select {
			case <-time.After(policy.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+policy.Size, len(items))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				return fn(gctx, i, items[i])
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}
