package components

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut runs fn for indexes 0..n-1. With serial set tasks run one at a time,
// otherwise all at once. The first error cancels the context handed to the
// remaining tasks and is returned.
func fanOut(ctx context.Context, serial bool, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	if serial {
		g.SetLimit(1)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
