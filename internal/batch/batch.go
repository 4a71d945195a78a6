// Package batch runs a function over a slice with bounded concurrency.
// Import and bulk-delete paths use it to cap how many native-processing or
// storage calls are in flight at once, trading throughput for memory safety
// on constrained devices.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run applies fn to every item, with at most limit calls in flight (limit <= 0
// means unbounded). Results keep the input order. The first error cancels the
// group context and fails the whole run; there is no partial-success
// reporting.
func Run[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T, index int) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	eg, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}
	for i, item := range items {
		i, item := i, item
		eg.Go(func() error {
			r, err := fn(gctx, item, i)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
