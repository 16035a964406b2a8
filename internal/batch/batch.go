// Package batch runs independent units of work under a fixed permit pool
// and returns their results in submission order.
package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the permit pool size used when none is given.
const DefaultConcurrency = 3

// ProgressFunc is told after each unit finishes. Calls are serialized and
// completed increases by one each time.
type ProgressFunc func(completed, total int)

// Run applies work to every item with at most limit units in flight.
// Work reports failure through its result, so one bad item never stops the
// others. results[i] always belongs to items[i].
func Run[T, R any](ctx context.Context, items []T, limit int, work func(context.Context, T) R, progress ProgressFunc) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var (
		g         errgroup.Group
		mu        sync.Mutex
		completed int
	)
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			results[i] = work(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			completed++
			if progress != nil {
				progress(completed, len(items))
			}
			return nil
		})
	}
	g.Wait()
	return results
}
