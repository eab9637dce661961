package retailer

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Gather runs fetch for every job index with at most limit in flight and
// concatenates the results in job order. A failed job is logged and contributes
// nothing; only cancellation of ctx fails the whole gather.
func Gather[T any](ctx context.Context, limit, jobs int, logger *logrus.Entry, fetch func(ctx context.Context, job int) ([]T, error)) ([]T, error) {
	if limit < 1 {
		limit = 1
	}

	results := make([][]T, jobs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := 0; i < jobs; i++ {
		i := i
		g.Go(func() error {
			items, err := fetch(gctx, i)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.WithError(err).WithField("job", i).Warn("fetch failed, continuing with fewer items")
				return nil
			}
			results[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []T
	for _, items := range results {
		all = append(all, items...)
	}
	return all, nil
}
