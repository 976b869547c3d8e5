package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEachLimit calls fn for every index in [0, n) with at most limit calls
// in flight and returns each call's error at its index. A failing call
// never cancels the rest.
func forEachLimit(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(max(limit, 1))

	for i := range n {
		g.Go(func() error {
			errs[i] = fn(ctx, i)
			return nil
		})
	}

	_ = g.Wait()

	return errs
}
